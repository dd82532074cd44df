// Package tail incrementally reads a file that another process is still
// appending to.
package tail

import (
	"bytes"
	"io"
	"os"
	"strings"
)

// Tailer tracks how far into the capture engine's fields file the pipeline
// has read. The producer keeps its own append handle open for the lifetime
// of the capture; every poll opens an independent read handle, so the two
// never contend over a shared descriptor.
type Tailer struct {
	path    string
	offset  int64
	partial []byte
}

func New(path string) *Tailer {
	return &Tailer{path: path}
}

// Offset reports the cumulative bytes consumed so far.
func (t *Tailer) Offset() int64 { return t.offset }

// Poll returns the complete lines appended since the previous call, oldest
// first. An unterminated trailing fragment is held back and prepended to
// the next read, so a record flushed across two polls still parses whole.
// Blank lines are dropped. A missing file (teardown removed it mid-cycle)
// is an empty poll, not an error.
func (t *Tailer) Poll() ([]string, error) {
	fi, err := os.Stat(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if fi.Size() <= t.offset {
		return nil, nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return nil, err
	}
	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	t.offset += int64(len(buf))

	data := append(t.partial, buf...)
	t.partial = nil

	var lines []string
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			// Dangling fragment: keep it for the next poll.
			t.partial = append([]byte(nil), data...)
			break
		}
		line := strings.TrimRight(string(data[:i]), "\r")
		data = data[i+1:]
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}
