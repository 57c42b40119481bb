// Package models defines the domain types for galdr.
package models

import (
	"strconv"
	"strings"
)

// File layout of an item folder.
const (
	MetadataFile  = "meta.json"
	DerivedFile   = "meta.generated.json"
	ImageBasename = "image"
)

// ImageExtensions lists accepted source image extensions in lookup order.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// Orientations.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// Metadata is the authored record stored in an item's meta.json.
// Field order is the canonical key order used when a record is rewritten.
type Metadata struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Prompt         string   `json:"prompt"`
	NegativePrompt string   `json:"negativePrompt"`
	Style          string   `json:"style"`
	AspectRatio    string   `json:"aspectRatio"`
	Size           string   `json:"size"`
	Orientation    string   `json:"orientation"`
	Tags           []string `json:"tags"`
	Description    string   `json:"description,omitempty"`
}

// CanonicalKeys is the key order of a repaired meta.json.
var CanonicalKeys = []string{
	"id", "title", "prompt", "negativePrompt", "style",
	"aspectRatio", "size", "orientation", "tags", "description",
}

// Variant is one downscaled rendition of an item's source image.
// URL is relative to the item folder as written by the deriver.
type Variant struct {
	Width int    `json:"width"`
	URL   string `json:"url"`
}

// DerivedAsset is the computed record stored in meta.generated.json.
type DerivedAsset struct {
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
	Variants    []Variant `json:"variants,omitempty"`
}

// Item is an assembled gallery entry. Items are never modified after assembly.
type Item struct {
	ID             string    `json:"id"`
	Folder         string    `json:"folder"`
	Src            string    `json:"src"`
	SrcSet         string    `json:"srcSet,omitempty"`
	Width          int       `json:"width,omitempty"`
	Height         int       `json:"height,omitempty"`
	Placeholder    string    `json:"placeholder,omitempty"`
	Variants       []Variant `json:"variants,omitempty"`
	Title          string    `json:"title"`
	Prompt         string    `json:"prompt"`
	NegativePrompt string    `json:"negativePrompt"`
	Style          string    `json:"style"`
	AspectRatio    string    `json:"aspectRatio"`
	Size           string    `json:"size"`
	Orientation    string    `json:"orientation"`
	Tags           []string  `json:"tags"`
	Description    string    `json:"description,omitempty"`
}

// FormatSrcSet renders variants as a responsive descriptor:
// "<url> <width>w" entries joined by ", ". Variants must already be sorted.
func FormatSrcSet(variants []Variant) string {
	parts := make([]string, 0, len(variants))
	for _, v := range variants {
		parts = append(parts, v.URL+" "+strconv.Itoa(v.Width)+"w")
	}
	return strings.Join(parts, ", ")
}

// VariantName returns the file name of the variant of the given width.
func VariantName(width int, ext string) string {
	return ImageBasename + "-" + strconv.Itoa(width) + "w" + ext
}
