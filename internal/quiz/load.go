package quiz

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the document syntax accepted by Parse.
type Format string

const (
	// FormatJSON parses JSON documents.
	FormatJSON Format = "json"
	// FormatYAML parses YAML documents.
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the document format from a file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	}
	return "", false
}

type document struct {
	ID    string             `json:"id"`
	Title string             `json:"title"`
	Start string             `json:"start"`
	Nodes map[string]rawNode `json:"nodes"`
}

type rawNode struct {
	Type       string       `json:"type"`
	Text       string       `json:"text"`
	Options    []rawOption  `json:"options"`
	Title      string       `json:"title"`
	Diagnosis  string       `json:"diagnosis"`
	Actions    []string     `json:"actions"`
	Products   []rawProduct `json:"products"`
	Fertilizer string       `json:"fertilizer"`
}

type rawOption struct {
	Text string   `json:"text"`
	Next string   `json:"next"`
	Tags []string `json:"tags"`
}

type rawProduct struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Links       []rawLink `json:"links"`
}

type rawLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Parse decodes a quiz document, checks it against the schema and the
// structural invariants, and returns the immutable tree. Every failure wraps
// ErrInvalidTree.
func Parse(data []byte, format Format) (*Tree, error) {
	raw := data
	if format == FormatYAML {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &ValidationError{Problems: []Problem{{Reason: "malformed YAML: " + err.Error()}}}
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, &ValidationError{Problems: []Problem{{Reason: "YAML is not representable as JSON: " + err.Error()}}}
		}
		raw = converted
	}

	if err := checkSchema(raw); err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ValidationError{Source: doc.ID, Problems: []Problem{{Reason: "decode: " + err.Error()}}}
	}

	tree := doc.build()
	if err := Validate(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// LoadFile reads and parses a quiz document; the format follows the extension.
func LoadFile(path string) (*Tree, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return nil, fmt.Errorf("quiz: unsupported file extension %q", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("quiz: read %s: %w", path, err)
	}
	tree, err := Parse(data, format)
	if err != nil {
		if verr, ok := err.(*ValidationError); ok && verr.Source == "" {
			verr.Source = filepath.Base(path)
		}
		return nil, err
	}
	return tree, nil
}

func (d document) build() *Tree {
	t := &Tree{
		ID:    d.ID,
		Title: d.Title,
		Start: d.Start,
		Nodes: make(map[string]Node, len(d.Nodes)),
	}
	for id, rn := range d.Nodes {
		switch Kind(rn.Type) {
		case KindQuestion:
			q := &Question{Text: rn.Text, Options: make([]Option, 0, len(rn.Options))}
			for _, o := range rn.Options {
				q.Options = append(q.Options, Option{Text: o.Text, Next: o.Next, Tags: copyStrings(o.Tags)})
			}
			t.Nodes[id] = q
		case KindResult:
			r := &Result{
				Title:      rn.Title,
				Diagnosis:  rn.Diagnosis,
				Actions:    copyStrings(rn.Actions),
				Fertilizer: rn.Fertilizer,
			}
			for _, p := range rn.Products {
				prod := Product{Name: p.Name, Description: p.Description, Image: p.Image}
				for _, l := range p.Links {
					prod.Links = append(prod.Links, Link{Title: l.Title, URL: l.URL})
				}
				r.Products = append(r.Products, prod)
			}
			t.Nodes[id] = r
		}
	}
	return t
}

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}
