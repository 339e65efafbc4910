// Package execx запускает внешние инструменты с захватом stdout/stderr.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result содержит результат запуска процесса.
type Result struct {
	// Stdout - захваченный stdout (невалидные байты UTF-8 заменены).
	Stdout string

	// Stderr - захваченный stderr (невалидные байты UTF-8 заменены).
	Stderr string

	// ExitCode - код выхода (-1, если процесс не запустился или был убит).
	ExitCode int

	// Duration - время выполнения.
	Duration time.Duration
}

// ExitError возвращается, когда процесс завершился с ненулевым кодом.
type ExitError struct {
	// Command - имя команды.
	Command string

	// Code - код выхода.
	Code int

	// Stderr - вывод stderr процесса.
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s завершился с кодом %d", e.Command, e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

// Run запускает name с аргументами args и ждёт завершения.
// timeout <= 0 означает отсутствие таймаута.
// Ненулевой код выхода возвращается как *ExitError, ошибки запуска - как есть.
func Run(ctx context.Context, timeout time.Duration, name string, args ...string) (*Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	res := &Result{
		Stdout:   Decode(stdout.Bytes()),
		Stderr:   Decode(stderr.Bytes()),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("%s прерван: %w", name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return res, &ExitError{Command: name, Code: res.ExitCode, Stderr: res.Stderr}
		}
		return res, fmt.Errorf("не удалось запустить %s: %w", name, err)
	}

	return res, nil
}

// Decode превращает вывод процесса в строку, заменяя невалидные последовательности.
func Decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// CommandLine склеивает команду для отладочного лога.
func CommandLine(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
