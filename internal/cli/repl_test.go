package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	calls []string
}

func (f *fakeExec) rec(name string, args []string) error {
	f.calls = append(f.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return nil
}

func (f *fakeExec) New(ctx context.Context, args []string) error { return f.rec("new", args) }
func (f *fakeExec) List(ctx context.Context) error { return f.rec("list", nil) }
func (f *fakeExec) Search(ctx context.Context, args []string) error { return f.rec("search", args) }
func (f *fakeExec) Open(ctx context.Context, args []string) error { return f.rec("open", args) }
func (f *fakeExec) Title(ctx context.Context, args []string) error { return f.rec("title", args) }
func (f *fakeExec) Edit(ctx context.Context) error { return f.rec("edit", nil) }
func (f *fakeExec) Show(ctx context.Context) error { return f.rec("show", nil) }
func (f *fakeExec) CloseNote(ctx context.Context) error { return f.rec("close", nil) }
func (f *fakeExec) Delete(ctx context.Context, args []string) error { return f.rec("delete", args) }
func (f *fakeExec) Stats(ctx context.Context) error { return f.rec("stats", nil) }
func (f *fakeExec) Recent(ctx context.Context, args []string) error { return f.rec("recent", args) }
func (f *fakeExec) Export(ctx context.Context) error { return f.rec("export", nil) }
func (f *fakeExec) Purge(ctx context.Context) error { return f.rec("purge", nil) }

func silence(t *testing.T) *[]string {
	t.Helper()
	var printed []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		parts := make([]string, len(a))
		for i, v := range a {
			parts[i] = strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(toString(v)), "\n", " "))
		}
		printed = append(printed, strings.Join(parts, " "))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &printed
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	silence(t)

	input := strings.Join([]string{
		"help",
		"new Shopping list",
		"l",
		"search milk eggs",
		"recent 24h",
		"open #1",
		"title Groceries",
		"edit",
		"show",
		"",
		"close",
		"rm #2",
		"stats",
		"export",
		"purge",
		"exit",
		"list",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, bufio.NewReader(strings.NewReader(input)))

	assert.Equal(t, []string{
		"new Shopping list",
		"list",
		"search milk eggs",
		"recent 24h",
		"open #1",
		"title Groceries",
		"edit",
		"show",
		"close",
		"delete #2",
		"stats",
		"export",
		"purge",
	}, exec.calls)
}

func TestRunREPL_UnknownCommandAndEOF(t *testing.T) {
	printed := silence(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "no note" }, bufio.NewReader(strings.NewReader("frobnicate\nlist")))

	assert.Equal(t, []string{"list"}, exec.calls, "the last line is run even without a newline")
	assert.Contains(t, *printed, "Unknown command: frobnicate")
	assert.Contains(t, *printed, "nb [no note]>")
}

func TestRunREPL_StopsWhenContextDone(t *testing.T) {
	silence(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "" }, bufio.NewReader(strings.NewReader("list\n")))
	assert.Empty(t, exec.calls)
}
