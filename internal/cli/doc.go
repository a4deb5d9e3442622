// Package cli is the interactive front end of the notebook.
//
// It reads commands line by line, renders note lists with go-pretty and
// forwards every edit to an editor.Binding, which decides when changes
// reach storage. Start it with NewApp(...).Run(ctx).
package cli
