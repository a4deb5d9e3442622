// Package editor decides when edits made in the editing surface reach the
// note service.
//
// A Binding tracks the note being edited. Content and title edits are
// debounced on separate timers; switching to another note flushes the
// previous one at once. A note reported as deleted is never written again:
// the deletion marker is checked whenever a flush or debounced save is
// about to be queued. All storage calls run in order on one worker
// goroutine, so input methods never wait for storage.
package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/dmitrijs2005/notebook/internal/debounce"
	"github.com/dmitrijs2005/notebook/internal/logging"
	"github.com/dmitrijs2005/notebook/internal/models"
	"github.com/dmitrijs2005/notebook/internal/services"
)

var ErrClosed = errors.New("editor binding is closed")

var errSkipped = errors.New("save skipped for deleted note")

// NoteSaver is the part of the note service the binding calls.
type NoteSaver interface {
	SaveNote(ctx context.Context, note *models.Note) error
	SaveNoteIfChanged(ctx context.Context, note *models.Note) (services.SaveResult, error)
	DeleteNote(ctx context.Context, id string) error
}

type Options struct {
	ContentDebounce  time.Duration
	TitleDebounce    time.Duration
	DeletedMarkerTTL time.Duration
}

func DefaultOptions() Options {
	return Options{
		ContentDebounce:  time.Second,
		TitleDebounce:    500 * time.Millisecond,
		DeletedMarkerTTL: 1500 * time.Millisecond,
	}
}

type Binding struct {
	mu   sync.Mutex
	svc  NoteSaver
	log  logging.Logger
	opts Options

	// current is the binding's own copy of the selected note.
	current *models.Note
	// editorState is the last content reported by the editor and not yet
	// applied to current.
	editorState models.Document
	titleValue  string
	titleDirty  bool

	// dirtyGen counts changes applied to current; savedGen is the newest
	// of them known to be stored.
	dirtyGen uint64
	savedGen uint64

	// storedDigest is the digest of the last copy of current known to be
	// in storage. inflight counts queued saves of current not yet finished;
	// storedDigest is only trusted while it is zero.
	storedDigest uint64
	inflight     int
	// session changes on every Select so late jobs of an earlier
	// selection cannot touch the bookkeeping of the current one.
	session uint64

	deletedID    string
	deletedGen   uint64
	deletedTimer *time.Timer

	content *debounce.Debouncer
	title   *debounce.Debouncer

	queue   *jobQueue
	closing bool
	done    chan struct{}
}

// New starts a binding whose worker runs storage calls with ctx.
func New(ctx context.Context, svc NoteSaver, log logging.Logger, opts Options) *Binding {
	b := &Binding{
		svc:     svc,
		log:     log.With("component", "editor"),
		opts:    opts,
		content: debounce.New(opts.ContentDebounce),
		title:   debounce.New(opts.TitleDebounce),
		queue:   newJobQueue(),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(b.done)
		b.queue.run(context.WithoutCancel(ctx))
	}()
	return b
}

// Select makes note the edited note; nil selects nothing. The previous
// note is flushed first unless it was just deleted.
func (b *Binding) Select(note *models.Note) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closing {
		return
	}
	if b.current != nil && note != nil && b.current.ID == note.ID {
		return
	}

	if b.current != nil {
		b.flushLocked()
	}
	b.content.Cancel()
	b.title.Cancel()

	b.resetLocked()
	if note == nil {
		return
	}
	b.current = note.Clone()
	b.titleValue = note.Title
	b.storedDigest = digest(note)
}

func (b *Binding) resetLocked() {
	b.current = nil
	b.editorState = nil
	b.titleValue = ""
	b.titleDirty = false
	b.dirtyGen = 0
	b.savedGen = 0
	b.storedDigest = 0
	b.inflight = 0
	b.session++
}

// cleanLocked reports whether current matches the stored copy with no save
// in flight, and if so records that nothing is left to flush.
func (b *Binding) cleanLocked() bool {
	if b.inflight > 0 || digest(b.current) != b.storedDigest {
		return false
	}
	b.savedGen = b.dirtyGen
	return true
}

// enqueueSaveLocked queues save for a snapshot of current and keeps the
// in-flight bookkeeping for it.
func (b *Binding) enqueueSaveLocked(what string, save func(ctx context.Context, n *models.Note) error) {
	id := b.current.ID
	gen := b.dirtyGen
	session := b.session
	snapshot := b.current.Clone()
	sum := digest(snapshot)
	b.inflight++

	b.queue.push(func(ctx context.Context) {
		var err error
		if b.isDeleted(id) {
			err = errSkipped
		} else if err = save(ctx, snapshot); err != nil {
			b.log.Error(ctx, "failed to save "+what, "id", id, "err", err)
		}
		b.finishSave(session, gen, sum, err)
	})
}

// flushLocked applies pending edits to current and queues a save of it.
func (b *Binding) flushLocked() {
	prev := b.current
	if prev.ID == b.deletedID {
		b.log.Debug(context.Background(), "skipping flush for deleted note", "id", prev.ID)
		return
	}

	if b.editorState != nil {
		prev.UpdateContent(b.editorState)
		b.editorState = nil
		b.dirtyGen++
	}
	if b.titleDirty && b.titleValue != prev.Title {
		prev.UpdateTitle(b.titleValue)
		b.dirtyGen++
	}
	b.titleDirty = false

	if b.dirtyGen == b.savedGen || b.cleanLocked() {
		return
	}

	snapshot := prev.Clone()
	b.queue.push(func(ctx context.Context) {
		if b.isDeleted(snapshot.ID) {
			return
		}
		res, err := b.svc.SaveNoteIfChanged(ctx, snapshot)
		if err != nil {
			b.log.Error(ctx, "failed to save previous note", "id", snapshot.ID, "err", err)
			return
		}
		b.log.Debug(ctx, res.String())
	})
}

// EditContent records the editor's latest state and (re)arms the content
// timer.
func (b *Binding) EditContent(doc models.Document) {
	b.mu.Lock()
	if b.current == nil || b.closing {
		b.mu.Unlock()
		return
	}
	b.editorState = doc.Clone()
	id := b.current.ID
	b.mu.Unlock()

	b.content.Trigger(func() { b.contentIdle(id) })
}

func (b *Binding) contentIdle(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx := context.Background()
	if b.deletedID == id {
		b.log.Debug(ctx, "skipping save for deleted note", "id", id)
		return
	}
	if b.current == nil || b.current.ID != id || b.editorState == nil {
		return
	}

	state := b.editorState
	b.editorState = nil
	if state.String() != b.current.Content.String() {
		b.current.UpdateContent(state)
		b.dirtyGen++
	}
	if b.cleanLocked() {
		b.log.Debug(ctx, "content matches stored copy", "id", id)
		return
	}
	if b.dirtyGen == b.savedGen {
		return
	}

	b.enqueueSaveLocked("note", func(ctx context.Context, n *models.Note) error {
		res, err := b.svc.SaveNoteIfChanged(ctx, n)
		if err == nil {
			b.log.Debug(ctx, res.String())
		}
		return err
	})
}

// EditTitle records the title field and (re)arms the title timer.
func (b *Binding) EditTitle(title string) {
	b.mu.Lock()
	if b.current == nil || b.closing {
		b.mu.Unlock()
		return
	}
	b.titleValue = title
	b.titleDirty = true
	id := b.current.ID
	b.mu.Unlock()

	b.title.Trigger(func() { b.titleIdle(id) })
}

func (b *Binding) titleIdle(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx := context.Background()
	if b.deletedID == id {
		b.log.Debug(ctx, "skipping title save for deleted note", "id", id)
		return
	}
	if b.current == nil || b.current.ID != id || !b.titleDirty {
		return
	}
	b.titleDirty = false
	if b.titleValue == b.current.Title {
		b.log.Debug(ctx, "no title change detected", "id", id)
		return
	}

	b.current.UpdateTitle(b.titleValue)
	b.dirtyGen++
	if b.cleanLocked() {
		return
	}

	b.enqueueSaveLocked("title", b.svc.SaveNote)
}

// finishSave settles the bookkeeping of a save queued in session.
func (b *Binding) finishSave(session, gen, sum uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil || b.session != session {
		return
	}
	b.inflight--
	if err != nil {
		return
	}
	b.storedDigest = sum
	if gen > b.savedGen {
		b.savedGen = gen
	}
}

func (b *Binding) isDeleted(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deletedID == id
}

// NoteDeleted signals that id is being deleted. Pending work for it is
// suppressed, and if it is the current note the binding lets go of it
// without flushing. The marker clears after Options.DeletedMarkerTTL.
func (b *Binding) NoteDeleted(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.deletedID = id
	b.deletedGen++
	gen := b.deletedGen
	if b.deletedTimer != nil {
		b.deletedTimer.Stop()
	}
	b.deletedTimer = time.AfterFunc(b.opts.DeletedMarkerTTL, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.deletedGen == gen {
			b.deletedID = ""
		}
	})

	if b.current != nil && b.current.ID == id {
		b.resetLocked()
	}
}

// DeleteNote signals the deletion and deletes id through the worker, after
// every save queued before it. It returns the service's error.
func (b *Binding) DeleteNote(ctx context.Context, id string) error {
	b.NoteDeleted(id)

	errc := make(chan error, 1)
	ok := b.queue.push(func(context.Context) {
		errc <- b.svc.DeleteNote(ctx, id)
	})
	if !ok {
		return ErrClosed
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns a copy of the edited note with pending edits applied,
// or nil.
func (b *Binding) Current() *models.Note {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return nil
	}
	n := b.current.Clone()
	if b.editorState != nil {
		n.Content = b.editorState.Clone()
	}
	if b.titleDirty {
		n.Title = b.titleValue
	}
	return n
}

// Drain waits until every save queued so far has run.
func (b *Binding) Drain(ctx context.Context) error {
	done := make(chan struct{})
	if !b.queue.push(func(context.Context) { close(done) }) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes the current note, stops the timers and waits for the
// worker to finish queued saves.
func (b *Binding) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closing {
		b.mu.Unlock()
		return nil
	}
	if b.current != nil {
		b.flushLocked()
	}
	b.content.Cancel()
	b.title.Cancel()
	b.resetLocked()
	if b.deletedTimer != nil {
		b.deletedTimer.Stop()
	}
	b.closing = true
	b.mu.Unlock()

	b.queue.close()
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// digest covers the fields a save compares: title and content.
func digest(n *models.Note) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(n.Title)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(n.Content.String())
	return d.Sum64()
}
