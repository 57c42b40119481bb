package validator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/starford/galdr/internal/apperr"
	"github.com/starford/galdr/internal/metrics"
	"github.com/starford/galdr/internal/models"
	"github.com/starford/galdr/internal/storage"
)

// Suffixes of the legacy field warning, depending on whether the repair was
// written back.
const (
	repairedNote = "(auto-fixed)"
	dryRunNote   = "(not rewritten: dry run)"
)

// Options controls a gallery-wide validation pass.
type Options struct {
	// Persist writes repaired records back to disk.
	Persist bool
	Logger  *slog.Logger
}

// Report aggregates a gallery-wide validation pass.
type Report struct {
	// Items counts folders whose metadata could be parsed.
	Items    int
	Results  []Result
	Errors   []string
	Warnings []string
}

// OK reports whether the pass found no errors. Warnings never fail a pass.
func (r *Report) OK() bool { return len(r.Errors) == 0 }

// Summary returns the one-line outcome of the pass.
func (r *Report) Summary() string {
	if r.OK() {
		return fmt.Sprintf("Gallery OK: %d item(s) validated", r.Items)
	}
	return fmt.Sprintf("Validation failed: %d error(s)", len(r.Errors))
}

// Print writes warnings (always first) to out and errors to errOut, followed
// by the summary line on the stream matching the outcome.
func (r *Report) Print(out, errOut io.Writer) {
	if len(r.Warnings) > 0 {
		fmt.Fprintln(out, "Warnings:")
		for _, w := range r.Warnings {
			fmt.Fprintln(out, " -", w)
		}
		fmt.Fprintln(out)
	}
	if !r.OK() {
		fmt.Fprintln(errOut, "Errors:")
		for _, e := range r.Errors {
			fmt.Fprintln(errOut, " -", e)
		}
		fmt.Fprintln(errOut)
		fmt.Fprintln(errOut, r.Summary())
		return
	}
	fmt.Fprintln(out, r.Summary())
}

// Err returns nil for a passing report and apperr.ErrValidationFailed otherwise.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%w: %d error(s)", apperr.ErrValidationFailed, len(r.Errors))
}

// ValidateGallery validates every item folder in store. Problems with a
// single folder are recorded in the report and never stop the pass; the
// returned error is reserved for failures to enumerate the gallery itself.
func ValidateGallery(ctx context.Context, store storage.Provider, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	folders, err := store.Folders()
	if err != nil {
		return nil, fmt.Errorf("validator: %w", err)
	}

	rep := &Report{}
	type seenID struct{ id, folder string }
	var ids []seenID

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := CheckFolder(store, folder)
		if res.Parsed {
			rep.Items++
			if id := strings.TrimSpace(res.Metadata.ID); id != "" {
				ids = append(ids, seenID{id: res.Metadata.ID, folder: folder})
			}
		}

		if res.Repaired && !opts.Persist {
			for i, w := range res.Warnings {
				res.Warnings[i] = strings.Replace(w, repairedNote, dryRunNote, 1)
			}
		}
		if res.Repaired && opts.Persist {
			if err := store.Write(storage.Join(folder, models.MetadataFile), res.Canonical); err != nil {
				res.errorf("failed to write repaired %s: %s", models.MetadataFile, err.Error())
			} else {
				logger.Info("validator: repaired metadata", slog.String("folder", folder))
			}
		}

		rep.Warnings = append(rep.Warnings, res.Warnings...)
		rep.Errors = append(rep.Errors, res.Errors...)
		rep.Results = append(rep.Results, res)
	}

	// Uniqueness is only known once every folder has been read.
	first := make(map[string]string, len(ids))
	for _, it := range ids {
		if prev, ok := first[it.id]; ok {
			rep.Errors = append(rep.Errors,
				fmt.Sprintf("Duplicate id: '%s' in folders '%s' and '%s'", it.id, prev, it.folder))
			continue
		}
		first[it.id] = it.folder
	}

	metrics.ValidationRunsTotal.Inc()
	metrics.ValidationErrors.Add(float64(len(rep.Errors)))
	metrics.ValidationWarnings.Add(float64(len(rep.Warnings)))

	logger.Debug("validator: pass complete",
		slog.Int("folders", len(folders)),
		slog.Int("errors", len(rep.Errors)),
		slog.Int("warnings", len(rep.Warnings)))
	return rep, nil
}

// CheckFolder validates a single folder: metadata presence and syntax,
// field constraints, and source image presence. It never writes.
func CheckFolder(store storage.Provider, folder string) Result {
	res := Result{Folder: folder}

	files, err := store.Files(folder)
	if err != nil {
		res.errorf("Cannot list folder: %s", err.Error())
		return res
	}

	raw, err := store.Read(storage.Join(folder, models.MetadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			res.errorf("Missing %s", models.MetadataFile)
		} else {
			res.errorf("Cannot read %s: %s", models.MetadataFile, err.Error())
		}
	} else {
		res = Validate(folder, raw)
	}

	if _, ok := FindImage(files); !ok {
		exts := make([]string, len(models.ImageExtensions))
		for i, e := range models.ImageExtensions {
			exts[i] = strings.TrimPrefix(e, ".")
		}
		res.errorf("No image found. Add %s.{%s}", models.ImageBasename, strings.Join(exts, "|"))
	}
	return res
}
