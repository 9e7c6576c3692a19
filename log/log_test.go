package log

import (
	"bytes"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	ResetErrors()
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		IndentationLevel = 0
		Verbose = false
		ResetErrors()
	})
	return &buf
}

func TestLogIndentation(t *testing.T) {
	buf := capture(t)
	IndentationLevel = 2
	Log("Cloning '%s'.\n", "raylib")
	assert.Equal(t, "    Cloning 'raylib'.\n", buf.String())
}

func TestPrefixes(t *testing.T) {
	buf := capture(t)
	Success("done\n")
	Warning("careful\n")
	assert.Equal(t, "\033[32mSuccess: \033[0mdone\n\033[33mWarning: \033[0mcareful\n", buf.String())
	assert.False(t, ErrorOccured())
}

func TestErrorSetsFlag(t *testing.T) {
	buf := capture(t)
	Error("bad %d\n", 1)
	assert.Equal(t, "\033[31mError: \033[0mbad 1\n", buf.String())
	assert.True(t, ErrorOccured())
}

func TestDebugRequiresVerbose(t *testing.T) {
	buf := capture(t)
	Debug("hidden\n")
	assert.Empty(t, buf.String())

	Verbose = true
	Debug("shown\n")
	assert.Equal(t, "\033[36mDebug: \033[0mshown\n", buf.String())
}

func TestFatalExits(t *testing.T) {
	if os.Getenv("CHILD") == "1" {
		Fatal("boom\n")
		return
	}
	cmd := exec.Command(os.Args[0], "-test.run=TestFatalExits")
	cmd.Env = append(os.Environ(), "CHILD=1")
	err := cmd.Run()
	if e, ok := err.(*exec.ExitError); !ok || e.Success() {
		t.Fatalf("process ran with err %v, want exit status 1", err)
	}
}
