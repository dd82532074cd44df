// Package capture owns the external tshark capture engine: invocation
// contract, preflight validation, process supervision, and the transient
// stream files the engine writes into.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/jcmturner/gokrb5/v8/iana/msgtype"

	"github.com/asreqsniff/asreqsniff/internal/roast"
)

// validateTimeout bounds the preflight test capture so a wedged engine
// cannot stall startup.
const validateTimeout = 5 * time.Second

// DisplayFilter selects pre-authenticated AS-REQ messages that carry all
// three fields the parser needs.
func DisplayFilter() string {
	return fmt.Sprintf(
		"kerberos.msg_type == %d && kerberos.CNameString && kerberos.realm && kerberos.cipher",
		msgtype.KRB_AS_REQ,
	)
}

// Handle is one running capture engine process plus its stream files.
type Handle struct {
	FieldsPath string // stdout: $-separated field lines, tailed by the pipeline
	DiagPath   string // stderr: engine diagnostics, read on failure, never parsed

	cmd     *exec.Cmd
	outFile *os.File
	errFile *os.File

	mu      sync.Mutex
	stopped bool

	exited sync.Once
	done   chan struct{}

	// waitErr is published by the waiter goroutine before done closes;
	// read it only after Done has been observed.
	waitErr error
}

// NewStubHandle builds a handle with no backing process, for tests that
// drive the pipeline with a synthetic producer.
func NewStubHandle(fieldsPath, diagPath string) *Handle {
	return &Handle{FieldsPath: fieldsPath, DiagPath: diagPath, done: make(chan struct{})}
}

// Done is closed when the engine process exits, however that happens.
func (h *Handle) Done() <-chan struct{} { return h.done }

// MarkExited closes the Done channel. Safe to call more than once.
func (h *Handle) MarkExited() { h.exited.Do(func() { close(h.done) }) }

// TsharkEngine launches tshark as the packet-capture collaborator.
type TsharkEngine struct {
	Path string // resolved tshark binary
}

// NewTsharkEngine resolves the tshark binary from PATH.
func NewTsharkEngine() (*TsharkEngine, error) {
	path, err := exec.LookPath("tshark")
	if err != nil {
		return nil, fmt.Errorf("tshark not found in PATH (install Wireshark/tshark): %w", err)
	}
	return &TsharkEngine{Path: path}, nil
}

// Args builds the capture invocation for the given interface: quiet, no
// name resolution, AS-REQ display filter, field projection restricted to
// the three kerberos fields with a $ separator, line-buffered flushing.
func (e *TsharkEngine) Args(iface string) []string {
	return []string{
		"-Q",
		"-n",
		"-i", iface,
		"-Y", DisplayFilter(),
		"-T", "fields",
		"-e", "kerberos.CNameString",
		"-e", "kerberos.realm",
		"-e", "kerberos.cipher",
		"-E", "separator=" + roast.FieldSeparator,
		"-l",
	}
}

// Validate attempts a bounded one-second test capture on the interface.
// Failure here is advisory: the caller logs a warning and captures anyway.
func (e *TsharkEngine) Validate(ctx context.Context, iface string) error {
	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, e.Path, "-Q", "-n", "-i", iface, "-a", "duration:1", "-c", "1")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("test capture on %s failed: %v: %s",
			iface, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Start launches the engine and wires its streams to transient files the
// tailer can poll while the process keeps appending to them.
func (e *TsharkEngine) Start(ctx context.Context, iface string) (*Handle, error) {
	outFile, err := os.CreateTemp("", "asreqsniff-*.fields")
	if err != nil {
		return nil, fmt.Errorf("create fields file: %w", err)
	}
	errFile, err := os.CreateTemp("", "asreqsniff-*.stderr")
	if err != nil {
		outFile.Close()
		os.Remove(outFile.Name())
		return nil, fmt.Errorf("create diagnostics file: %w", err)
	}

	cmd := exec.Command(e.Path, e.Args(iface)...)
	cmd.Stdout = outFile
	cmd.Stderr = errFile

	if err := cmd.Start(); err != nil {
		outFile.Close()
		errFile.Close()
		os.Remove(outFile.Name())
		os.Remove(errFile.Name())
		return nil, fmt.Errorf("launch %s: %w", e.Path, err)
	}

	h := &Handle{
		FieldsPath: outFile.Name(),
		DiagPath:   errFile.Name(),
		cmd:        cmd,
		outFile:    outFile,
		errFile:    errFile,
		done:       make(chan struct{}),
	}
	go func() {
		h.waitErr = cmd.Wait()
		h.MarkExited()
	}()
	log.Printf("[capture] tshark started (pid %d) on interface %s", cmd.Process.Pid, iface)
	return h, nil
}

// Stop asks the engine process to terminate. Non-blocking, idempotent, and
// safe to call from a signal handler while a poll is in flight or after the
// process already exited on its own.
func (e *TsharkEngine) Stop(h *Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped || h.cmd == nil {
		return nil
	}
	h.stopped = true

	select {
	case <-h.done:
		return nil // already exited on its own
	default:
	}
	if err := h.cmd.Process.Kill(); err != nil {
		// The process can finish between the done check and the kill.
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		log.Printf("[capture] Failed to stop tshark: %v", err)
		return err
	}
	return nil
}

// Diagnostics returns the process exit error plus whatever the engine
// wrote to stderr, for failure reporting only. Call only after the handle's
// Done channel has closed.
func (e *TsharkEngine) Diagnostics(h *Handle) string {
	var parts []string
	if h.waitErr != nil {
		parts = append(parts, h.waitErr.Error())
	}
	if data, err := os.ReadFile(h.DiagPath); err == nil {
		if msg := strings.TrimSpace(string(data)); msg != "" {
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, ": ")
}

// Cleanup closes and removes the transient stream files.
func (e *TsharkEngine) Cleanup(h *Handle) error {
	if h.outFile != nil {
		h.outFile.Close()
	}
	if h.errFile != nil {
		h.errFile.Close()
	}
	var firstErr error
	for _, p := range []string{h.FieldsPath, h.DiagPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Printf("[capture] Failed to remove %s: %v", p, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
