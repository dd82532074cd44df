// Package sink fans a formatted hash out to the console and, unless
// suppressed, to append-only files under the output directory.
package sink

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/asreqsniff/asreqsniff/internal/roast"
)

// Sink multiplexes captured hashes. Console emission always happens; file
// emission is best-effort and never interrupts the capture loop.
type Sink struct {
	OutDir  string
	NoFiles bool
	Format  roast.Format
	Console io.Writer
}

func New(outDir string, noFiles bool, format roast.Format) *Sink {
	return &Sink{OutDir: outDir, NoFiles: noFiles, Format: format, Console: os.Stdout}
}

// Emit writes the capture notice and hash to the console, then appends the
// hash to the per-identity file and the aggregate file for the active
// format. Identical hashes are appended again on purpose: the files are a
// faithful record of what was observed, in capture order.
func (s *Sink) Emit(rec *roast.Record, hash string) {
	ts := rec.ObservedAt.Format("2006-01-02 15:04:05")
	color.New(color.FgGreen).Fprintf(s.Console,
		"[+] %s - Captured AS-REQ for %s@%s\n", ts, rec.Username, rec.Realm)
	fmt.Fprintln(s.Console, hash)

	if s.NoFiles {
		return
	}
	identity := fmt.Sprintf("%s_%s.txt", sanitize(rec.Username), sanitize(rec.Realm))
	s.appendLine(filepath.Join(s.OutDir, identity), hash)
	s.appendLine(filepath.Join(s.OutDir, fmt.Sprintf("all_hashes_%s.txt", s.Format)), hash)
}

func (s *Sink) appendLine(path, line string) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("[sink] Failed to open %s: %v", path, err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		log.Printf("[sink] Failed to append to %s: %v", path, err)
	}
}

// sanitize strips path separators and traversal dots from an identity
// component so a hostile principal name cannot write outside OutDir.
func sanitize(part string) string {
	part = strings.ReplaceAll(part, string(os.PathSeparator), "_")
	part = strings.ReplaceAll(part, "/", "_")
	for strings.Contains(part, "..") {
		part = strings.ReplaceAll(part, "..", "_")
	}
	return part
}
