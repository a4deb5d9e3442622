package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. *App satisfies
// it; tests use a stub.
type execIface interface {
	New(ctx context.Context, args []string) error
	List(ctx context.Context) error
	Search(ctx context.Context, args []string) error
	Open(ctx context.Context, args []string) error
	Title(ctx context.Context, args []string) error
	Edit(ctx context.Context) error
	Show(ctx context.Context) error
	CloseNote(ctx context.Context) error
	Delete(ctx context.Context, args []string) error
	Stats(ctx context.Context) error
	Recent(ctx context.Context, args []string) error
	Export(ctx context.Context) error
	Purge(ctx context.Context) error
}

const helpText = `Available commands:
  new [title]        create a note and open it
  (l)ist             list notes, newest first
  search <text>      find notes by title or text
  recent <duration>  notes modified within e.g. 24h
  open <#n|id>       open a note from the last listing
  title <text>       rename the open note
  edit               replace the open note's text
  show               print the open note
  close              close the open note
  delete [#n|id]     delete a note (default: the open one)
  stats              storage statistics
  export             write a backup snapshot
  purge              delete everything
  exit | quit        leave`

// runREPL reads commands from reader until EOF, "exit"/"quit" or ctx is
// done. Handler errors are reported by the handlers themselves.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("nb [%s]> ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn(helpText)

		case "new":
			_ = a.New(ctx, args)

		case "l", "list":
			_ = a.List(ctx)

		case "search":
			_ = a.Search(ctx, args)

		case "recent":
			_ = a.Recent(ctx, args)

		case "open":
			_ = a.Open(ctx, args)

		case "title":
			_ = a.Title(ctx, args)

		case "edit":
			_ = a.Edit(ctx)

		case "show":
			_ = a.Show(ctx)

		case "close":
			_ = a.CloseNote(ctx)

		case "delete", "rm":
			_ = a.Delete(ctx, args)

		case "stats":
			_ = a.Stats(ctx)

		case "export":
			_ = a.Export(ctx)

		case "purge":
			_ = a.Purge(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
