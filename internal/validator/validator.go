// Package validator checks and repairs the authored metadata of gallery items.
//
// Validate is pure: it reports errors and warnings for one meta.json and, when
// a repair was applied, the canonical bytes to persist. ValidateGallery runs it
// over every folder, adds structural and cross-folder checks, and persists
// repairs only when asked to.
package validator

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/starford/galdr/internal/models"
)

// Result is the outcome of validating one folder's metadata.
type Result struct {
	Folder   string
	Metadata models.Metadata
	// LegacyFile holds the value of the deprecated "file" field, if any. It
	// is kept only so the assembler can fall back to a by-name asset lookup.
	LegacyFile string
	Errors     []string
	Warnings   []string
	// Parsed is set once the metadata decoded into a JSON object.
	Parsed bool
	// Repaired is set when an auto-repair changed the record; Canonical then
	// holds the rewritten file content.
	Repaired  bool
	Canonical []byte
}

// Valid reports whether the record has no errors.
func (r *Result) Valid() bool { return len(r.Errors) == 0 }

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf("[%s] ", r.Folder)+fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf("[%s] ", r.Folder)+fmt.Sprintf(format, args...))
}

// Validate parses raw meta.json content and checks every field constraint.
// All violations are reported, not only the first.
func Validate(folder string, raw []byte) Result {
	res := Result{Folder: folder}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		res.errorf("Invalid JSON in %s: %s", models.MetadataFile, err.Error())
		return res
	}
	if fields == nil {
		res.errorf("Invalid JSON in %s: expected an object", models.MetadataFile)
		return res
	}
	res.Parsed = true

	if v, ok := fields["file"]; ok {
		_ = json.Unmarshal(v, &res.LegacyFile)
		delete(fields, "file")
		res.Repaired = true
		res.warnf("Removed deprecated 'file' field " + repairedNote)
	}

	typeErrs := map[string]bool{}
	str := func(key string, dst *string, required bool) {
		v, ok := fields[key]
		if !ok {
			if required {
				// Presence is checked here; the field rules only see "".
				res.errorf("%s: is required", key)
				typeErrs[key] = true
			}
			return
		}
		if isNull(v) || json.Unmarshal(v, dst) != nil {
			res.errorf("%s: must be a string", key)
			typeErrs[key] = true
		}
	}

	m := &res.Metadata
	str("id", &m.ID, false)
	str("title", &m.Title, false)
	str("prompt", &m.Prompt, false)
	str("negativePrompt", &m.NegativePrompt, true)
	str("style", &m.Style, false)
	str("aspectRatio", &m.AspectRatio, false)
	str("size", &m.Size, false)
	str("orientation", &m.Orientation, false)
	str("description", &m.Description, false)

	if v, ok := fields["tags"]; ok {
		if isNull(v) || json.Unmarshal(v, &m.Tags) != nil {
			res.errorf("tags: must be a non-empty string array")
			typeErrs["tags"] = true
			m.Tags = nil
		}
	}

	res.Errors = append(res.Errors, fieldErrors(folder, validateFields(m, typeErrs))...)

	if res.Repaired {
		canonical, err := canonicalize(fields)
		if err != nil {
			res.errorf("cannot rewrite %s: %s", models.MetadataFile, err.Error())
			res.Repaired = false
		} else {
			res.Canonical = canonical
		}
	}
	return res
}

// fieldErrors renders rule violations in canonical key order.
func fieldErrors(folder string, errs map[string]error) []string {
	if len(errs) == 0 {
		return nil
	}
	rank := make(map[string]int, len(models.CanonicalKeys))
	for i, k := range models.CanonicalKeys {
		rank[k] = i
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := keyRank(rank, keys[i]), keyRank(rank, keys[j])
		if ri != rj {
			return ri < rj
		}
		return naturalLess(keys[i], keys[j])
	})
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("[%s] %s: %s", folder, k, errs[k].Error()))
	}
	return out
}

func keyRank(rank map[string]int, key string) int {
	if i := strings.IndexByte(key, '['); i >= 0 {
		key = key[:i]
	}
	if r, ok := rank[key]; ok {
		return r
	}
	return len(rank)
}

// naturalLess orders "tags[2]" before "tags[10]".
func naturalLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// canonicalize re-encodes the known fields in canonical key order. Values
// are written as authored; unknown keys are dropped. description is kept
// only when it is present and non-empty.
func canonicalize(fields map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, key := range models.CanonicalKeys {
		v, ok := fields[key]
		if !ok {
			continue
		}
		if key == "description" {
			t := bytes.TrimSpace(v)
			if isNull(v) || bytes.Equal(t, []byte(`""`)) || bytes.Equal(t, []byte("false")) {
				continue
			}
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		if err := json.Compact(&buf, v); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// FindImage returns the primary image file name among files, trying the
// accepted extensions in order. Matching is case-sensitive on the basename.
func FindImage(files []string) (string, bool) {
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		set[f] = struct{}{}
	}
	for _, ext := range models.ImageExtensions {
		name := models.ImageBasename + ext
		if _, ok := set[name]; ok {
			return name, true
		}
	}
	return "", false
}
