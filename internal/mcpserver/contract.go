package mcpserver

import (
	"fmt"

	"github.com/starford/galdr/internal/validator"
)

// MetadataFormatContract describes the authored meta.json format that LLM
// consumers should follow when writing or reviewing gallery items.
var MetadataFormatContract = fmt.Sprintf(`# Galdr Metadata Contract

Every gallery item is a folder holding one source image and one meta.json.

## Folder layout

`+"```"+`
<folder>/
  image.jpg | image.jpeg | image.png | image.webp   # REQUIRED, first match wins
  meta.json                                         # REQUIRED, authored
  meta.generated.json                               # written by "galdr derive"
  image-1200w.jpg image-800w.jpg image-400w.jpg     # written by "galdr derive"
`+"```"+`

## meta.json

`+"```"+`json
{
  "id": "42",
  "title": "Harbour at dawn",
  "prompt": "a quiet harbour at dawn, soft light, film grain",
  "negativePrompt": "",
  "style": "photo",
  "aspectRatio": "4:3",
  "size": "1200x900",
  "orientation": "landscape",
  "tags": ["harbour", "dawn"],
  "description": "optional"
}
`+"```"+`

## Rules

Lengths are counted in characters after trimming surrounding whitespace.

1. **id** is required, non-blank and unique across the gallery. Numeric ids sort numerically.
2. **title** is %d-%d characters.
3. **prompt** is %d-%d characters.
4. **negativePrompt** must be present; it may be empty and is at most %d characters.
5. **style** and **size** are non-blank. size reads like "1200x900".
6. **aspectRatio** looks like "5:7" or "16:9".
7. **orientation** is "portrait" or "landscape".
8. **tags** is an array of %d-%d strings, each %d-%d characters. Tags are matched case-insensitively.
9. **description** is optional.
10. The legacy **file** field is removed automatically by "galdr validate --write".

Keys are rewritten in the order shown above. Unknown keys are dropped on repair.
`,
	validator.TitleMin, validator.TitleMax,
	validator.PromptMin, validator.PromptMax,
	validator.NegativePromptMax,
	validator.TagsMin, validator.TagsMax, validator.TagMin, validator.TagMax)
