package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/galdr/internal/models"
)

// Field bounds, measured in code points on the trimmed value.
const (
	TitleMin          = 3
	TitleMax          = 120
	PromptMin         = 10
	PromptMax         = 1500
	NegativePromptMax = 1500
	TagsMin           = 1
	TagsMax           = 10
	TagMin            = 1
	TagMax            = 32
)

var aspectRatioRe = regexp.MustCompile(`^\d+\s*:\s*\d+$`)

// notBlank rejects empty and whitespace-only strings.
var notBlank = validation.By(func(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("validation_required", "is required and cannot be blank")
	}
	return nil
})

// trimmedLength checks the code-point length of a trimmed string.
type trimmedLength struct {
	min, max int
}

func (r trimmedLength) Validate(value any) error {
	s, _ := value.(string)
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	if n >= r.min && n <= r.max {
		return nil
	}
	if r.min == 0 {
		return validation.NewError("validation_length_too_long",
			fmt.Sprintf("too long (max %d, got %d)", r.max, n))
	}
	return validation.NewError("validation_length_out_of_range",
		fmt.Sprintf("length must be %d-%d chars (got %d)", r.min, r.max, n))
}

type aspectRatio struct{}

func (aspectRatio) Validate(value any) error {
	s, _ := value.(string)
	if !aspectRatioRe.MatchString(strings.TrimSpace(s)) {
		return validation.NewError("validation_aspect_ratio", `should look like "5:7" or "16:9"`)
	}
	return nil
}

// validateFields applies every field constraint to m and returns the
// violations keyed by JSON field name. Fields listed in skip are not
// checked (they already failed a type check).
func validateFields(m *models.Metadata, skip map[string]bool) validation.Errors {
	out := validation.Errors{}

	err := validation.ValidateStruct(m,
		validation.Field(&m.ID, notBlank),
		validation.Field(&m.Title, notBlank, trimmedLength{TitleMin, TitleMax}),
		validation.Field(&m.Prompt, notBlank, trimmedLength{PromptMin, PromptMax}),
		validation.Field(&m.NegativePrompt, trimmedLength{0, NegativePromptMax}),
		validation.Field(&m.Style, notBlank),
		validation.Field(&m.AspectRatio, aspectRatio{}),
		validation.Field(&m.Size, notBlank),
		validation.Field(&m.Orientation,
			validation.In(models.OrientationPortrait, models.OrientationLandscape).
				Error("must be 'portrait' or 'landscape'"),
			validation.Required.Error("must be 'portrait' or 'landscape'"),
		),
		validation.Field(&m.Tags,
			validation.Required.Error("must be a non-empty string array"),
			validation.Length(TagsMin, TagsMax).
				Error(fmt.Sprintf("too many tags (max %d, got %d)", TagsMax, len(m.Tags))),
		),
	)
	if errs, ok := err.(validation.Errors); ok {
		for k, v := range errs {
			if v != nil && !skip[k] {
				out[k] = v
			}
		}
	} else if err != nil {
		out["_"] = err
	}

	// Per-tag bounds are checked independently of the tag count.
	if !skip["tags"] {
		if err := validation.Validate(m.Tags, validation.Each(trimmedLength{TagMin, TagMax})); err != nil {
			if errs, ok := err.(validation.Errors); ok {
				for idx, v := range errs {
					out["tags["+idx+"]"] = v
				}
			}
		}
	}
	return out
}
