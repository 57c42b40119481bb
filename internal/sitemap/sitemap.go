// Package sitemap renders the sitemap.xml of the public site: the home page,
// configured static pages and one detail page per item folder.
package sitemap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/starford/galdr/internal/models"
	"github.com/starford/galdr/internal/storage"
)

// Namespace is the sitemap protocol namespace.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// DefaultStaticPaths are listed when no static paths are configured.
var DefaultStaticPaths = []string{"/about", "/privacy", "/terms", "/disclaimer"}

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr"`
	URLs    []location `xml:"url"`
}

type location struct {
	Loc string `xml:"loc"`
}

// Paths returns the sorted, de-duplicated site paths: "/", staticPaths and
// "/p/<folder>" for every folder holding a meta.json.
func Paths(store storage.Provider, staticPaths []string) ([]string, error) {
	folders, err := store.Folders()
	if err != nil {
		return nil, fmt.Errorf("sitemap: %w", err)
	}
	set := map[string]struct{}{"/": {}}
	for _, p := range staticPaths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		set[p] = struct{}{}
	}
	for _, f := range folders {
		if store.Exists(storage.Join(f, models.MetadataFile)) {
			set["/p/"+url.PathEscape(f)] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Build renders the sitemap with every path prefixed by siteURL.
func Build(store storage.Provider, siteURL string, staticPaths []string) ([]byte, error) {
	paths, err := Paths(store, staticPaths)
	if err != nil {
		return nil, err
	}
	base := strings.TrimRight(siteURL, "/")
	set := urlSet{Xmlns: Namespace}
	for _, p := range paths {
		set.URLs = append(set.URLs, location{Loc: base + p})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("sitemap: encode: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
