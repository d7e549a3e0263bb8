package roster

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// FileResult is the outcome of an asynchronous roster file read.
type FileResult struct {
	Names []string
	Err   error
}

// ReadFile opens and parses a roster file on its own goroutine. The returned
// channel yields exactly one result. Names must only be applied when Err is
// nil; on failure the caller keeps its current roster.
func ReadFile(ctx context.Context, open func(context.Context) (io.ReadCloser, error), limit int64) <-chan FileResult {
	out := make(chan FileResult, 1)
	go func() {
		defer close(out)
		out <- readFile(ctx, open, limit)
	}()
	return out
}

func readFile(ctx context.Context, open func(context.Context) (io.ReadCloser, error), limit int64) FileResult {
	rc, err := open(ctx)
	if err != nil {
		return FileResult{Err: fmt.Errorf("%w: %v", ErrFileRead, err)}
	}
	defer rc.Close()
	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return FileResult{Err: fmt.Errorf("%w: %v", ErrFileRead, err)}
	}
	if limit > 0 && int64(len(data)) > limit {
		return FileResult{Err: fmt.Errorf("%w: file exceeds %d bytes", ErrFileRead, limit)}
	}
	if err := ctx.Err(); err != nil {
		return FileResult{Err: fmt.Errorf("%w: %v", ErrFileRead, err)}
	}
	names, err := ParseFile(bytes.NewReader(data))
	return FileResult{Names: names, Err: err}
}
