package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/notebook/internal/common"
	"github.com/dmitrijs2005/notebook/internal/models"
)

var (
	errNoOpenNote = errors.New("no note is open")
	errUsage      = errors.New("usage")
)

func (a *App) New(ctx context.Context, args []string) error {
	note, err := a.notes.CreateNote(ctx, strings.Join(args, " "))
	if err != nil {
		return a.fail(ctx, "failed to create note", err)
	}
	a.binding.Select(note)
	a.listing = append([]*models.Note{note}, a.listing...)
	a.printf("Created note %s (%s)\n", shortID(note.ID), note.Title)
	return nil
}

func (a *App) List(ctx context.Context) error {
	a.listing = a.notes.GetAllNotes(ctx)
	a.renderNotes(a.listing)
	return nil
}

func (a *App) Search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.printf("Usage: search <text>\n")
		return errUsage
	}
	a.listing = a.notes.SearchNotes(ctx, strings.Join(args, " "))
	a.renderNotes(a.listing)
	return nil
}

func (a *App) Recent(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.printf("Usage: recent <duration>, e.g. recent 48h\n")
		return errUsage
	}
	d, err := time.ParseDuration(args[0])
	if err != nil || d <= 0 {
		a.printf("Invalid duration %q\n", args[0])
		return errUsage
	}
	end := now()
	a.listing = a.notes.NotesUpdatedBetween(ctx, end.Add(-d), end)
	a.renderNotes(a.listing)
	return nil
}

// resolve maps "#n" to the n-th entry of the last listing and anything else
// to a note ID or a unique ID prefix from that listing.
func (a *App) resolve(ref string) (string, error) {
	if n, ok := strings.CutPrefix(ref, "#"); ok {
		i, err := strconv.Atoi(n)
		if err != nil || i < 1 || i > len(a.listing) {
			return "", fmt.Errorf("no entry %s in the last listing", ref)
		}
		return a.listing[i-1].ID, nil
	}

	var match string
	for _, n := range a.listing {
		if n.ID == ref {
			return ref, nil
		}
		if strings.HasPrefix(n.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", ref)
			}
			match = n.ID
		}
	}
	if match != "" {
		return match, nil
	}
	return ref, nil
}

func (a *App) Open(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.printf("Usage: open <#n|id>\n")
		return errUsage
	}
	id, err := a.resolve(args[0])
	if err != nil {
		a.printf("%v\n", err)
		return err
	}

	// pending saves of a note being reopened must land before it is read
	if err := a.binding.Drain(ctx); err != nil {
		return a.fail(ctx, "failed to wait for pending saves", err)
	}
	note := a.notes.LoadNote(ctx, id)
	if note == nil {
		a.printf("Note %s not found\n", args[0])
		return common.ErrorNotFound
	}
	a.binding.Select(note)
	a.printf("Opened %s\n", note.Title)
	return nil
}

func (a *App) Title(_ context.Context, args []string) error {
	if a.binding.Current() == nil {
		a.printf("Open a note first\n")
		return errNoOpenNote
	}
	a.binding.EditTitle(strings.Join(args, " "))
	return nil
}

func (a *App) Edit(_ context.Context) error {
	cur := a.binding.Current()
	if cur == nil {
		a.printf("Open a note first\n")
		return errNoOpenNote
	}
	if text := cur.Content.PlainText(); text != "" {
		a.printf("Current text:\n%s\n\n", text)
	}

	text, err := GetMultiline(a.reader, "Enter new text", a.out)
	if err != nil {
		return err
	}
	a.binding.EditContent(models.DocumentFromText(text))
	return nil
}

func (a *App) Show(_ context.Context) error {
	cur := a.binding.Current()
	if cur == nil {
		a.printf("Open a note first\n")
		return errNoOpenNote
	}

	text := cur.Content.PlainText()
	wc := models.CountWords(text)
	a.printf("%s\n%s\n", cur.Title, strings.Repeat("=", max(len([]rune(cur.Title)), 3)))
	a.printf("ID: %s\nCreated: %s\nModified: %s\n\n",
		cur.ID, cur.DateCreated.Local().Format(time.DateTime), cur.DateLastModified.Local().Format(time.DateTime))
	if text != "" {
		a.printf("%s\n\n", text)
	}
	a.printf("%d words, %d characters\n", wc.Words, wc.Characters)
	return nil
}

func (a *App) CloseNote(_ context.Context) error {
	a.binding.Select(nil)
	return nil
}

// Delete removes the referenced note, or the open one. On failure the
// listing is reloaded so it reflects what storage actually holds.
func (a *App) Delete(ctx context.Context, args []string) error {
	var id string
	switch len(args) {
	case 0:
		cur := a.binding.Current()
		if cur == nil {
			a.printf("Usage: delete <#n|id>\n")
			return errUsage
		}
		id = cur.ID
	case 1:
		var err error
		if id, err = a.resolve(args[0]); err != nil {
			a.printf("%v\n", err)
			return err
		}
	default:
		a.printf("Usage: delete <#n|id>\n")
		return errUsage
	}

	if err := a.binding.DeleteNote(ctx, id); err != nil {
		a.listing = a.notes.GetAllNotes(ctx)
		return a.fail(ctx, "failed to delete note", err)
	}

	kept := a.listing[:0]
	for _, n := range a.listing {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	a.listing = kept
	a.printf("Deleted %s\n", shortID(id))
	return nil
}

func (a *App) Stats(ctx context.Context) error {
	a.renderStats(a.notes.GetStorageStats(ctx))
	return nil
}

func (a *App) Export(ctx context.Context) error {
	if a.exporter == nil {
		a.printf("Export is not configured\n")
		return nil
	}
	if err := a.binding.Drain(ctx); err != nil {
		return a.fail(ctx, "failed to wait for pending saves", err)
	}
	loc, err := a.exporter.Export(ctx)
	if err != nil {
		return a.fail(ctx, "failed to export", err)
	}
	a.printf("Exported to %s\n", loc)
	return nil
}

func (a *App) Purge(ctx context.Context) error {
	answer, err := GetSimpleText(a.reader, `This deletes every note. Type "yes" to continue`, a.out)
	if err != nil {
		return err
	}
	if answer != "yes" {
		a.printf("Cancelled\n")
		return nil
	}

	if cur := a.binding.Current(); cur != nil {
		a.binding.NoteDeleted(cur.ID)
	}
	if err := a.binding.Drain(ctx); err != nil {
		return a.fail(ctx, "failed to wait for pending saves", err)
	}
	if err := a.notes.Purge(ctx); err != nil {
		return a.fail(ctx, "failed to purge", err)
	}
	a.listing = nil
	a.printf("All notes deleted\n")
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
