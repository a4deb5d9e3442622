// Package models defines the Note entity and helpers for the editor's
// serialized document tree.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlaceholderTitle is used when a note is created without a title.
const PlaceholderTitle = "Untitled"

// now is the clock used for timestamps; tests replace it.
var now = func() time.Time { return time.Now().UTC() }

// Note is a user-authored document. ID and DateCreated never change after
// construction; DateLastModified moves forward on every mutation and is
// never earlier than DateCreated.
type Note struct {
	ID               string
	Title            string
	Content          Document
	DateCreated      time.Time
	DateLastModified time.Time
}

// NoteParams are the optional inputs of NewNote. Zero values are filled in.
type NoteParams struct {
	ID               string
	Title            string
	Content          Document
	DateCreated      time.Time
	DateLastModified time.Time
}

func NewNote(p NoteParams) *Note {
	n := &Note{
		ID:               p.ID,
		Title:            p.Title,
		Content:          p.Content,
		DateCreated:      p.DateCreated.UTC(),
		DateLastModified: p.DateLastModified.UTC(),
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Title == "" {
		n.Title = PlaceholderTitle
	}
	if len(n.Content) == 0 || string(n.Content) == "null" {
		n.Content = EmptyDocument()
	}

	ts := now()
	if p.DateCreated.IsZero() {
		n.DateCreated = ts
	}
	if p.DateLastModified.IsZero() {
		n.DateLastModified = ts
	}
	if n.DateLastModified.Before(n.DateCreated) {
		n.DateLastModified = n.DateCreated
	}
	return n
}

// UpdateContent replaces the content without inspecting its shape.
func (n *Note) UpdateContent(content Document) {
	n.Content = content
	n.touch()
}

func (n *Note) UpdateTitle(title string) {
	n.Title = title
	n.touch()
}

func (n *Note) touch() {
	ts := now()
	if ts.Before(n.DateLastModified) {
		ts = n.DateLastModified
	}
	if ts.Before(n.DateCreated) {
		ts = n.DateCreated
	}
	n.DateLastModified = ts
}

// SummaryText is the plain text of the first paragraph, or "" when the
// content does not look like an editor tree.
func (n *Note) SummaryText() string {
	return n.Content.SummaryText()
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (n *Note) Clone() *Note {
	c := *n
	c.Content = n.Content.Clone()
	return &c
}

// NoteRecord is the persisted form of a Note.
type NoteRecord struct {
	ID               string   `json:"ID"`
	Title            string   `json:"title"`
	Content          Document `json:"content"`
	DateCreated      string   `json:"dateCreated"`
	DateLastModified string   `json:"dateLastModified"`
}

func (n *Note) Serialize() NoteRecord {
	return NoteRecord{
		ID:               n.ID,
		Title:            n.Title,
		Content:          n.Content,
		DateCreated:      formatTime(n.DateCreated),
		DateLastModified: formatTime(n.DateLastModified),
	}
}

// MarshalJSON encodes the note in its persisted form.
func (n *Note) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Serialize())
}

// Deserialize rebuilds a Note, keeping the record's ID, title and
// timestamps as stored. An empty stored title stays empty.
func Deserialize(r NoteRecord) (*Note, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("note record without ID")
	}

	var p NoteParams
	p.ID = r.ID
	p.Title = r.Title
	p.Content = r.Content

	var err error
	if r.DateCreated != "" {
		if p.DateCreated, err = parseTime(r.DateCreated); err != nil {
			return nil, fmt.Errorf("note %s: bad dateCreated: %w", r.ID, err)
		}
	}
	if r.DateLastModified != "" {
		if p.DateLastModified, err = parseTime(r.DateLastModified); err != nil {
			return nil, fmt.Errorf("note %s: bad dateLastModified: %w", r.ID, err)
		}
	}
	n := NewNote(p)
	n.Title = r.Title
	return n, nil
}

// ParseNote decodes a persisted payload. A record without a title field
// gets the placeholder title.
func ParseNote(data []byte) (*Note, error) {
	var r NoteRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode note: %w", err)
	}
	var fields struct {
		Title *string `json:"title"`
	}
	if err := json.Unmarshal(data, &fields); err == nil && fields.Title == nil {
		r.Title = PlaceholderTitle
	}
	return Deserialize(r)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
