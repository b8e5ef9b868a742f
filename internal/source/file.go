package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// File reads a capture file. With Follow set it keeps the file open and
// picks up appended lines on every write event until ctx ends, like tail -f.
type File struct {
	Path   string
	Follow bool
}

func (f *File) Run(ctx context.Context, onLine func(line string) error) error {
	fh, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer fh.Close()

	if !f.Follow {
		return ReadLines(ctx, fh, onLine)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", f.Path, err)
	}
	defer w.Close()
	if err := w.Add(f.Path); err != nil {
		return fmt.Errorf("watch %s: %w", f.Path, err)
	}

	t := &tailReader{r: bufio.NewReader(fh)}
	for {
		if err := t.drain(ctx, onLine); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				return fmt.Errorf("%s was removed while following", f.Path)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", f.Path, err)
		}
	}
}

// tailReader emits complete lines and carries a trailing partial line over
// to the next drain.
type tailReader struct {
	r       *bufio.Reader
	partial string
}

func (t *tailReader) drain(ctx context.Context, onLine func(line string) error) error {
	for ctx.Err() == nil {
		chunk, err := t.r.ReadString('\n')
		if err != nil {
			t.partial += chunk
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line := strings.TrimSpace(t.partial + chunk)
		t.partial = ""
		if line == "" {
			continue
		}
		if err := onLine(line); err != nil {
			return err
		}
	}
	return nil
}
