package capture

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayFilterSelectsPreauthASREQ(t *testing.T) {
	assert.Equal(t,
		"kerberos.msg_type == 10 && kerberos.CNameString && kerberos.realm && kerberos.cipher",
		DisplayFilter())
}

func TestArgsInvocationContract(t *testing.T) {
	e := &TsharkEngine{Path: "/usr/bin/tshark"}
	args := e.Args("eth0")
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-Q", "quiet mode")
	assert.Contains(t, joined, "-n", "no name resolution")
	assert.Contains(t, joined, "-i eth0")
	assert.Contains(t, joined, "-Y "+DisplayFilter())
	assert.Contains(t, joined, "-T fields")
	assert.Contains(t, joined, "-E separator=$")
	assert.Equal(t, "-l", args[len(args)-1], "line-buffered flushing")

	var fields []string
	for i, a := range args {
		if a == "-e" {
			fields = append(fields, args[i+1])
		}
	}
	assert.Equal(t,
		[]string{"kerberos.CNameString", "kerberos.realm", "kerberos.cipher"},
		fields, "exactly the three projected fields, in parse order")
}

func TestStopIsIdempotentWithoutProcess(t *testing.T) {
	e := &TsharkEngine{Path: "tshark"}
	h := NewStubHandle("fields", "diag")

	require.NoError(t, e.Stop(h))
	require.NoError(t, e.Stop(h))
}

func TestMarkExitedIsIdempotent(t *testing.T) {
	h := NewStubHandle("fields", "diag")
	assert.NotPanics(t, func() {
		h.MarkExited()
		h.MarkExited()
	})
	select {
	case <-h.Done():
	default:
		t.Fatal("Done channel not closed")
	}
}

func TestStopAfterProcessExitIsNotAnError(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	require.NoError(t, cmd.Wait())

	// The process is gone but nobody has marked the handle exited yet, so
	// Stop races past the done check and kills a finished process.
	h := &Handle{cmd: cmd, done: make(chan struct{})}
	e := &TsharkEngine{Path: "tshark"}
	assert.NoError(t, e.Stop(h))
}

func TestDiagnosticsReportsExitErrorAndStderr(t *testing.T) {
	diagPath := filepath.Join(t.TempDir(), "diag")
	require.NoError(t, os.WriteFile(diagPath, []byte("tshark: The capture session could not be initiated\n"), 0o644))

	h := NewStubHandle("fields", diagPath)
	h.waitErr = errors.New("exit status 2")
	h.MarkExited()

	e := &TsharkEngine{Path: "tshark"}
	diag := e.Diagnostics(h)
	assert.Contains(t, diag, "exit status 2")
	assert.Contains(t, diag, "could not be initiated")
}

func TestCleanupToleratesMissingFiles(t *testing.T) {
	e := &TsharkEngine{Path: "tshark"}
	h := NewStubHandle("/nonexistent/fields", "/nonexistent/diag")
	assert.NoError(t, e.Cleanup(h))
}
