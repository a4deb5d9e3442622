// Package services implements the note service: note CRUD over a
// store.Store, change detection and listing/search for the UI.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/notebook/internal/common"
	"github.com/dmitrijs2005/notebook/internal/logging"
	"github.com/dmitrijs2005/notebook/internal/models"
	"github.com/dmitrijs2005/notebook/internal/store"
)

// KeyPrefix namespaces note records in the store.
const KeyPrefix = "note-"

const (
	ReasonNoChange = "No change detected"
	ReasonChanged  = "Change detected"
)

// batchLimit bounds concurrent loads in CheckMultipleNotesChanges.
const batchLimit = 4

func NoteKey(id string) string {
	return KeyPrefix + id
}

// SaveResult reports what SaveNoteIfChanged did.
type SaveResult struct {
	ID     string
	Saved  bool
	Reason string
}

func (r SaveResult) String() string {
	return fmt.Sprintf("ID: %s Saved: %t Reason: %s", r.ID, r.Saved, r.Reason)
}

type StorageStats struct {
	NoteCount   int
	StorageSize int64
}

type NoteService interface {
	SaveNote(ctx context.Context, note *models.Note) error
	// LoadNote returns nil when the note is absent or unreadable.
	LoadNote(ctx context.Context, id string) *models.Note
	DeleteNote(ctx context.Context, id string) error
	CreateNote(ctx context.Context, title string) (*models.Note, error)
	GetAllNotes(ctx context.Context) []*models.Note
	SearchNotes(ctx context.Context, query string) []*models.Note
	NotesUpdatedBetween(ctx context.Context, start, end time.Time) []*models.Note
	HasNoteChanged(ctx context.Context, note *models.Note) bool
	HasNoteChangedByHash(ctx context.Context, note *models.Note) bool
	SaveNoteIfChanged(ctx context.Context, note *models.Note) (SaveResult, error)
	CheckMultipleNotesChanges(ctx context.Context, notes []*models.Note) map[string]bool
	GetStorageStats(ctx context.Context) StorageStats
	Purge(ctx context.Context) error
}

type noteService struct {
	store store.Store
	log   logging.Logger
}

func NewNoteService(st store.Store, log logging.Logger) NoteService {
	return &noteService{store: st, log: log}
}

func (s *noteService) SaveNote(ctx context.Context, note *models.Note) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("%w: failed to serialize note %s: %v", common.ErrorInvalidNote, note.ID, err)
	}
	if err := s.store.Save(ctx, NoteKey(note.ID), payload); err != nil {
		return fmt.Errorf("failed to save note %s: %w", note.ID, err)
	}
	return nil
}

func (s *noteService) LoadNote(ctx context.Context, id string) *models.Note {
	note, err := s.loadNote(ctx, id)
	if err != nil {
		s.log.Warn(ctx, "failed to load note", "id", id, "err", err)
		return nil
	}
	return note
}

// loadNote returns (nil, nil) for an absent note.
func (s *noteService) loadNote(ctx context.Context, id string) (*models.Note, error) {
	payload, err := s.store.Load(ctx, NoteKey(id))
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}
	return models.ParseNote(payload)
}

func (s *noteService) DeleteNote(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, NoteKey(id)); err != nil {
		return fmt.Errorf("failed to delete note %s: %w", id, err)
	}
	return nil
}

// CreateNote persists a fresh note titled with the trimmed title, or the
// placeholder when it is blank.
func (s *noteService) CreateNote(ctx context.Context, title string) (*models.Note, error) {
	note := models.NewNote(models.NoteParams{Title: strings.TrimSpace(title)})
	if err := s.SaveNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *noteService) GetAllNotes(ctx context.Context) []*models.Note {
	keys, err := s.store.Keys(ctx, KeyPrefix)
	if err != nil {
		s.log.Warn(ctx, "failed to list notes", "err", err)
		return []*models.Note{}
	}

	notes := make([]*models.Note, 0, len(keys))
	for _, key := range keys {
		note, err := s.loadNote(ctx, strings.TrimPrefix(key, KeyPrefix))
		if err != nil {
			s.log.Warn(ctx, "skipping unreadable note", "key", key, "err", err)
			continue
		}
		if note != nil {
			notes = append(notes, note)
		}
	}
	sortNotes(notes)
	return notes
}

// sortNotes orders newest-modified first, ties broken by ascending ID.
func sortNotes(notes []*models.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if !a.DateLastModified.Equal(b.DateLastModified) {
			return a.DateLastModified.After(b.DateLastModified)
		}
		return a.ID < b.ID
	})
}

// SearchNotes matches query case-insensitively against the title or the
// serialized content. An empty query matches everything.
func (s *noteService) SearchNotes(ctx context.Context, query string) []*models.Note {
	all := s.GetAllNotes(ctx)
	q := strings.ToLower(query)

	found := make([]*models.Note, 0, len(all))
	for _, n := range all {
		if strings.Contains(strings.ToLower(n.Title), q) ||
			strings.Contains(strings.ToLower(n.Content.String()), q) {
			found = append(found, n)
		}
	}
	return found
}

func (s *noteService) NotesUpdatedBetween(ctx context.Context, start, end time.Time) []*models.Note {
	records, err := s.store.ItemsByDateRange(ctx, start, end)
	if err != nil {
		s.log.Warn(ctx, "failed to list notes by date", "err", err)
		return []*models.Note{}
	}

	notes := make([]*models.Note, 0, len(records))
	for _, r := range records {
		if !strings.HasPrefix(r.Key, KeyPrefix) {
			continue
		}
		note, err := models.ParseNote(r.Payload)
		if err != nil {
			s.log.Warn(ctx, "skipping unreadable note", "key", r.Key, "err", err)
			continue
		}
		notes = append(notes, note)
	}
	sortNotes(notes)
	return notes
}

// HasNoteChanged compares title and serialized content with the stored
// copy. A missing or unreadable stored copy counts as changed.
func (s *noteService) HasNoteChanged(ctx context.Context, note *models.Note) bool {
	saved, err := s.loadNote(ctx, note.ID)
	if err != nil {
		s.log.Warn(ctx, "change check failed, assuming changed", "id", note.ID, "err", err)
		return true
	}
	if saved == nil {
		return true
	}
	return saved.Title != note.Title || saved.Content.String() != note.Content.String()
}

// HasNoteChangedByHash compares SHA-256 digests of {title, content}.
// Any failure counts as changed.
func (s *noteService) HasNoteChangedByHash(ctx context.Context, note *models.Note) bool {
	saved, err := s.loadNote(ctx, note.ID)
	if err != nil {
		s.log.Warn(ctx, "hash check failed, assuming changed", "id", note.ID, "err", err)
		return true
	}
	if saved == nil {
		return true
	}

	current, err := NoteHash(note)
	if err != nil {
		s.log.Warn(ctx, "failed to hash note, assuming changed", "id", note.ID, "err", err)
		return true
	}
	stored, err := NoteHash(saved)
	if err != nil {
		s.log.Warn(ctx, "failed to hash stored note, assuming changed", "id", note.ID, "err", err)
		return true
	}
	return current != stored
}

// NoteHash is the hex SHA-256 of the JSON encoding of {title, content}.
// It depends on the serialized key order of the content.
func NoteHash(note *models.Note) (string, error) {
	b, err := json.Marshal(struct {
		Title   string          `json:"title"`
		Content models.Document `json:"content"`
	}{note.Title, note.Content})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func (s *noteService) SaveNoteIfChanged(ctx context.Context, note *models.Note) (SaveResult, error) {
	res := SaveResult{ID: note.ID, Reason: ReasonNoChange}
	if !s.HasNoteChangedByHash(ctx, note) {
		s.log.Info(ctx, "note save skipped", "id", res.ID, "saved", res.Saved, "reason", res.Reason)
		return res, nil
	}

	if err := s.SaveNote(ctx, note); err != nil {
		return res, err
	}

	res.Saved = true
	res.Reason = ReasonChanged
	s.log.Info(ctx, "note saved", "id", res.ID, "saved", res.Saved, "reason", res.Reason)
	return res, nil
}

// CheckMultipleNotesChanges runs HasNoteChanged for each note with bounded
// concurrency. Each entry degrades on its own.
func (s *noteService) CheckMultipleNotesChanges(ctx context.Context, notes []*models.Note) map[string]bool {
	var (
		mu      sync.Mutex
		changed = make(map[string]bool, len(notes))
		g       errgroup.Group
	)
	g.SetLimit(batchLimit)

	for _, n := range notes {
		g.Go(func() error {
			c := s.HasNoteChanged(ctx, n)
			mu.Lock()
			changed[n.ID] = c
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return changed
}

func (s *noteService) GetStorageStats(ctx context.Context) StorageStats {
	info, err := s.store.Info(ctx, KeyPrefix)
	if err != nil {
		s.log.Warn(ctx, "failed to read storage stats", "err", err)
		return StorageStats{}
	}
	return StorageStats{NoteCount: info.ItemCount, StorageSize: info.StorageSize}
}

// Purge removes every record from the store, not only notes.
func (s *noteService) Purge(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to purge notes: %w", err)
	}
	s.log.Info(ctx, "storage purged")
	return nil
}
