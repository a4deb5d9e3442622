package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Document is the editor's serialized state. It is kept as raw JSON so the
// key order produced by the editor survives storage and hashing unchanged.
type Document json.RawMessage

var errInvalidDocument = errors.New("document is not valid JSON")

func EmptyDocument() Document {
	return Document("{}")
}

// DocumentOf encodes any value as a Document.
func DocumentOf(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Document(b), nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(d) {
		return nil, errInvalidDocument
	}
	return d, nil
}

func (d *Document) UnmarshalJSON(b []byte) error {
	if d == nil {
		return errors.New("models.Document: UnmarshalJSON on nil pointer")
	}
	*d = append((*d)[0:0], b...)
	return nil
}

// String returns the compact serialized form used for comparisons.
func (d Document) String() string {
	b, err := d.MarshalJSON()
	if err != nil {
		return string(d)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return string(b)
	}
	return buf.String()
}

func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return append(Document(nil), d...)
}

type container struct {
	Children []json.RawMessage `json:"children"`
}

type leaf struct {
	Text *string `json:"text"`
}

func (d Document) root() (*container, bool) {
	var t struct {
		Root *container `json:"root"`
	}
	if err := json.Unmarshal(d, &t); err != nil || t.Root == nil {
		return nil, false
	}
	return t.Root, true
}

// SummaryText joins the text leaves of the first child of root.
func (d Document) SummaryText() string {
	root, ok := d.root()
	if !ok || len(root.Children) == 0 {
		return ""
	}

	var first container
	if err := json.Unmarshal(root.Children[0], &first); err != nil || first.Children == nil {
		return ""
	}

	var b strings.Builder
	for _, raw := range first.Children {
		var l leaf
		if err := json.Unmarshal(raw, &l); err != nil {
			continue
		}
		if l.Text != nil {
			b.WriteString(*l.Text)
		}
	}
	return b.String()
}

// PlainText flattens the whole tree: text leaves of each top-level block
// are concatenated and blocks are separated by newlines.
func (d Document) PlainText() string {
	root, ok := d.root()
	if !ok {
		return ""
	}

	blocks := make([]string, 0, len(root.Children))
	for _, raw := range root.Children {
		var b strings.Builder
		collectText(raw, &b)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n")
}

func collectText(raw json.RawMessage, b *strings.Builder) {
	var l leaf
	if err := json.Unmarshal(raw, &l); err == nil && l.Text != nil {
		b.WriteString(*l.Text)
	}
	var c container
	if err := json.Unmarshal(raw, &c); err != nil {
		return
	}
	for _, child := range c.Children {
		collectText(child, b)
	}
}

type textNode struct {
	Detail  int    `json:"detail"`
	Format  int    `json:"format"`
	Mode    string `json:"mode"`
	Style   string `json:"style"`
	Text    string `json:"text"`
	Type    string `json:"type"`
	Version int    `json:"version"`
}

type blockNode struct {
	Children  []textNode `json:"children"`
	Direction string     `json:"direction"`
	Format    string     `json:"format"`
	Indent    int        `json:"indent"`
	Type      string     `json:"type"`
	Version   int        `json:"version"`
}

type rootNode struct {
	Children  []blockNode `json:"children"`
	Direction string      `json:"direction"`
	Format    string      `json:"format"`
	Indent    int         `json:"indent"`
	Type      string      `json:"type"`
	Version   int         `json:"version"`
}

// DocumentFromText builds an editor tree with one paragraph per line.
func DocumentFromText(text string) Document {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	root := rootNode{Direction: "ltr", Type: "root", Version: 1, Children: make([]blockNode, 0, len(lines))}
	for _, line := range lines {
		p := blockNode{Direction: "ltr", Type: "paragraph", Version: 1, Children: []textNode{}}
		if line != "" {
			p.Children = append(p.Children, textNode{Mode: "normal", Text: line, Type: "text", Version: 1})
		}
		root.Children = append(root.Children, p)
	}

	b, _ := json.Marshal(struct {
		Root rootNode `json:"root"`
	}{root})
	return Document(b)
}
