package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/notebook/internal/backup"
	"github.com/dmitrijs2005/notebook/internal/editor"
	"github.com/dmitrijs2005/notebook/internal/logging"
	"github.com/dmitrijs2005/notebook/internal/models"
	"github.com/dmitrijs2005/notebook/internal/services"
)

// shutdownTimeout bounds the final flush when the app exits.
const shutdownTimeout = 5 * time.Second

type App struct {
	notes    services.NoteService
	binding  *editor.Binding
	exporter *backup.Exporter
	log      logging.Logger

	reader *bufio.Reader
	out    io.Writer

	// listing is the last list shown to the user; "#n" refers into it.
	listing []*models.Note
}

// NewApp wires the front end. exporter may be nil when backups are off.
func NewApp(notes services.NoteService, binding *editor.Binding, exporter *backup.Exporter,
	log logging.Logger, in io.Reader, out io.Writer) *App {
	return &App{
		notes:    notes,
		binding:  binding,
		exporter: exporter,
		log:      log,
		reader:   bufio.NewReader(in),
		out:      out,
	}
}

// Run serves commands until the user quits, input ends or ctx is done,
// then flushes the open note.
func (a *App) Run(ctx context.Context) {
	a.log.Info(ctx, "notebook started")

	done := make(chan struct{})
	go func() {
		defer close(done)
		printlnFn(`Type "help" for commands.`)
		runREPL(ctx, a, a.status, a.reader)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.binding.Close(closeCtx); err != nil {
		a.log.Error(closeCtx, "failed to flush open note", "err", err)
	}
	a.log.Info(closeCtx, "notebook stopped")
}

func (a *App) status() string {
	cur := a.binding.Current()
	if cur == nil {
		return "no note"
	}
	return cur.Title
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) fail(ctx context.Context, msg string, err error) error {
	a.log.Error(ctx, msg, "err", err)
	a.printf("Error: %s: %v\n", msg, err)
	return err
}
