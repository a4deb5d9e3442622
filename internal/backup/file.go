package backup

import (
	"context"

	"github.com/dmitrijs2005/notebook/internal/filex"
)

// FileSink writes snapshots into a local directory, creating it on demand.
type FileSink struct {
	Dir string
}

func (s FileSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir, err := filex.EnsureDir(s.Dir)
	if err != nil {
		return "", err
	}
	return filex.WriteFileAtomic(dir, name, data)
}
