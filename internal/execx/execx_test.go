package execx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestRunSuccess(t *testing.T) {
	tool := writeScript(t, `echo "out $1"; echo "err" >&2`)

	res, err := Run(context.Background(), 0, tool, "x")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "out x" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("Stderr = %q", res.Stderr)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d", res.ExitCode)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	tool := writeScript(t, `echo "first" >&2; echo "boom" >&2; exit 3`)

	res, err := Run(context.Background(), 0, tool)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if exitErr.Code != 3 || res.ExitCode != 3 {
		t.Errorf("exit code = %d/%d, want 3", exitErr.Code, res.ExitCode)
	}
	if !strings.HasSuffix(exitErr.Error(), "boom") {
		t.Errorf("error should end with last stderr line: %q", exitErr.Error())
	}
}

func TestRunMissingBinary(t *testing.T) {
	_, err := Run(context.Background(), 0, filepath.Join(t.TempDir(), "absent"))
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Fatalf("missing binary must not be reported as exit error: %v", err)
	}
}

func TestRunTimeout(t *testing.T) {
	tool := writeScript(t, `sleep 5`)

	_, err := Run(context.Background(), 100*time.Millisecond, tool)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDecodeReplacesInvalidBytes(t *testing.T) {
	got := Decode([]byte{'o', 'k', 0xff, 0xfe})
	if got != "ok�" {
		t.Errorf("Decode() = %q", got)
	}
}
