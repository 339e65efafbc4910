package converter

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/HugoSmits86/nativewebp"

	"github.com/artemshloyda/webp2gif/internal/capability"
	"github.com/artemshloyda/webp2gif/internal/codec"
	"github.com/artemshloyda/webp2gif/internal/config"
)

type fakeStrategy struct {
	kind       string
	applicable bool
	write      bool
	err        error
	panics     bool
	calls      *[]string
}

func (f *fakeStrategy) Kind() string { return f.kind }

func (f *fakeStrategy) Applicable(capability.Availability) bool { return f.applicable }

func (f *fakeStrategy) Attempt(_ context.Context, task *Task) error {
	*f.calls = append(*f.calls, f.kind)
	if f.panics {
		panic("boom")
	}
	if f.write {
		if err := os.WriteFile(task.OutputPath, []byte("GIF89a"), 0o644); err != nil {
			return err
		}
	}
	return f.err
}

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func writeStaticWebP(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range 4 {
		img.SetNRGBA(i, i, color.NRGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeAnimatedWebP(t *testing.T, dir, name string) string {
	t.Helper()
	r := image.Rect(0, 0, 4, 4)
	frames := []image.Image{image.NewNRGBA(r), image.NewNRGBA(r)}
	frames[1].(*image.NRGBA).SetNRGBA(1, 1, color.NRGBA{B: 255, A: 255})
	var buf bytes.Buffer
	ani := &nativewebp.Animation{Images: frames, Durations: []uint{100, 200}, Disposals: []uint{0, 0}}
	if err := nativewebp.EncodeAll(&buf, ani, nil); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func resultEntries(t *testing.T, src string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(filepath.Dir(src), config.ResultDirName))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestKindOf(t *testing.T) {
	err := newError(KindEmptyFile, "/a.webp", errors.New("пусто"))
	wrapped := errors.Join(errors.New("outer"), err)

	if KindOf(err) != KindEmptyFile {
		t.Errorf("KindOf() = %q", KindOf(err))
	}
	if KindOf(wrapped) != KindEmptyFile {
		t.Errorf("KindOf(wrapped) = %q", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain error should have no kind")
	}
	if !strings.Contains(err.Error(), "EmptyFile") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestCascadeOrderAndFirstSuccess(t *testing.T) {
	dir := t.TempDir()
	src := writeStaticWebP(t, dir, "a.webp")

	var calls []string
	strategies := []Strategy{
		&fakeStrategy{kind: "external", applicable: false, calls: &calls},
		&fakeStrategy{kind: "library", applicable: true, err: errors.New("bridge failed"), calls: &calls},
		&fakeStrategy{kind: "native", applicable: true, write: true, calls: &calls},
		&fakeStrategy{kind: "never", applicable: true, write: true, calls: &calls},
	}
	logger, _ := testLogger()

	task := NewCascadeWith(strategies, logger).Convert(context.Background(), src, capability.Availability{})

	if task.Status != StatusSuccess {
		t.Fatalf("Status = %s, err = %v", task.Status, task.Err)
	}
	if task.Strategy != "native" {
		t.Errorf("Strategy = %q, want native", task.Strategy)
	}
	if strings.Join(calls, ",") != "library,native" {
		t.Errorf("calls = %v, want [library native]", calls)
	}
	if len(task.Messages) == 0 || !strings.Contains(task.Messages[0], "bridge failed") {
		t.Errorf("failure of library strategy should be noted: %v", task.Messages)
	}
}

func TestCascadeSuccessWithoutOutputIsFailure(t *testing.T) {
	dir := t.TempDir()
	src := writeStaticWebP(t, dir, "a.webp")

	var calls []string
	strategies := []Strategy{
		&fakeStrategy{kind: config.StrategyExternal, applicable: true, calls: &calls},
	}
	logger, _ := testLogger()

	task := NewCascadeWith(strategies, logger).Convert(context.Background(), src, capability.Availability{})

	if task.Status != StatusFailed {
		t.Fatalf("Status = %s, want failed", task.Status)
	}
	if KindOf(task.Err) != KindExternalToolFailed {
		t.Errorf("kind = %q, want ExternalToolFailed", KindOf(task.Err))
	}
}

func TestCascadeRecoversPanic(t *testing.T) {
	dir := t.TempDir()
	src := writeStaticWebP(t, dir, "a.webp")

	var calls []string
	strategies := []Strategy{
		&fakeStrategy{kind: "external", applicable: true, panics: true, calls: &calls},
		&fakeStrategy{kind: "native", applicable: true, write: true, calls: &calls},
	}
	logger, buf := testLogger()

	task := NewCascadeWith(strategies, logger).Convert(context.Background(), src, capability.Availability{})

	if task.Status != StatusSuccess || task.Strategy != "native" {
		t.Fatalf("Status = %s, Strategy = %q", task.Status, task.Strategy)
	}
	if !strings.Contains(buf.String(), "stack=") {
		t.Error("stack trace should be logged at debug level")
	}
}

func TestCascadePanicOnlyStrategy(t *testing.T) {
	dir := t.TempDir()
	src := writeStaticWebP(t, dir, "a.webp")

	var calls []string
	strategies := []Strategy{&fakeStrategy{kind: "native", applicable: true, panics: true, calls: &calls}}
	logger, _ := testLogger()

	task := NewCascadeWith(strategies, logger).Convert(context.Background(), src, capability.Availability{})
	if KindOf(task.Err) != KindUnhandledException {
		t.Errorf("kind = %q, want UnhandledException", KindOf(task.Err))
	}
}

func TestCascadeRemovesStaleOutput(t *testing.T) {
	dir := t.TempDir()
	src := writeStaticWebP(t, dir, "a.webp")
	out := config.OutputPath(src)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(out, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls []string
	strategies := []Strategy{&fakeStrategy{kind: "external", applicable: true, calls: &calls}}
	logger, _ := testLogger()

	task := NewCascadeWith(strategies, logger).Convert(context.Background(), src, capability.Availability{})

	if task.Status != StatusFailed {
		t.Fatalf("stale output must not count as success, Status = %s", task.Status)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("stale output should be removed, stat err = %v", err)
	}
}

func TestPreconditions(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "c.webp")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	blocked := filepath.Join(dir, "blocked")
	if err := os.MkdirAll(blocked, 0o755); err != nil {
		t.Fatal(err)
	}
	blockedSrc := writeStaticWebP(t, blocked, "x.webp")
	if err := os.WriteFile(filepath.Join(blocked, config.ResultDirName), []byte("file"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want Kind
	}{
		{"missing", filepath.Join(dir, "absent.webp"), KindMissingFile},
		{"empty", empty, KindEmptyFile},
		{"directory", dir, KindMissingFile},
		{"output dir is a file", blockedSrc, KindOutputDirError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			strategies := []Strategy{&fakeStrategy{kind: "native", applicable: true, write: true, calls: &calls}}
			logger, _ := testLogger()

			task := NewCascadeWith(strategies, logger).Convert(context.Background(), tt.path, capability.Availability{})

			if task.Status != StatusFailed {
				t.Fatalf("Status = %s, want failed", task.Status)
			}
			if KindOf(task.Err) != tt.want {
				t.Errorf("kind = %q, want %q", KindOf(task.Err), tt.want)
			}
			if len(calls) != 0 {
				t.Errorf("no strategy should be attempted, got %v", calls)
			}
			if task.Strategy != "" {
				t.Errorf("Strategy = %q, want empty", task.Strategy)
			}
		})
	}
}

func TestMimeMismatchIsWarningOnly(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.webp")
	if err := os.WriteFile(src, []byte("just some text, not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls []string
	strategies := []Strategy{&fakeStrategy{kind: "native", applicable: true, write: true, calls: &calls}}
	logger, buf := testLogger()

	task := NewCascadeWith(strategies, logger).Convert(context.Background(), src, capability.Availability{})

	if task.Status != StatusSuccess {
		t.Fatalf("mime mismatch must not block conversion, Status = %s", task.Status)
	}
	if !strings.Contains(buf.String(), string(KindMimeMismatch)) {
		t.Errorf("expected MimeMismatch warning in log:\n%s", buf.String())
	}
}

func TestExternalStrategyUsedWhenAvailable(t *testing.T) {
	dir := t.TempDir()
	src := writeStaticWebP(t, dir, "d.webp")
	ffmpeg := writeStub(t, t.TempDir(), "ffmpeg", `[ "$1" = "-y" ] && [ "$2" = "-i" ] || exit 9
printf 'GIF89a-from-ffmpeg' > "$4"`)

	cfg := config.DefaultConfig()
	cfg.Bridge = config.BridgeImaging
	logger, _ := testLogger()
	av := capability.Availability{
		ExternalTranscoder: true,
		FFmpeg:             capability.ToolInfo{Name: "ffmpeg", Path: ffmpeg},
		LibraryBridge:      true,
		BridgeBackend:      capability.BackendImaging,
	}

	task := NewCascade(cfg, logger).Convert(context.Background(), src, av)

	if task.Status != StatusSuccess {
		t.Fatalf("Status = %s, err = %v", task.Status, task.Err)
	}
	if task.Strategy != config.StrategyExternal {
		t.Errorf("Strategy = %q, want external", task.Strategy)
	}
	names := resultEntries(t, src)
	if len(names) != 1 || names[0] != "d.gif" {
		t.Errorf("result dir = %v, want only d.gif (no temporary PNG)", names)
	}
}

func TestExternalToolLiedFallsBackToNative(t *testing.T) {
	dir := t.TempDir()
	src := writeStaticWebP(t, dir, "e.webp")
	ffmpeg := writeStub(t, t.TempDir(), "ffmpeg", `echo "pretending" >&2; exit 0`)

	cfg := config.DefaultConfig()
	cfg.Strategies = []string{config.StrategyExternal, config.StrategyNative}
	logger, buf := testLogger()
	av := capability.Availability{ExternalTranscoder: true, FFmpeg: capability.ToolInfo{Path: ffmpeg}}

	task := NewCascade(cfg, logger).Convert(context.Background(), src, av)

	if task.Status != StatusSuccess || task.Strategy != config.StrategyNative {
		t.Fatalf("Status = %s, Strategy = %q, err = %v", task.Status, task.Strategy, task.Err)
	}
	if !strings.Contains(buf.String(), "pretending") {
		t.Error("stderr of external tool should be logged at debug")
	}
	if !strings.Contains(buf.String(), string(KindExternalToolFailed)) {
		t.Error("tool-lied failure should be logged")
	}
}

func TestExternalOnlyUnavailable(t *testing.T) {
	dir := t.TempDir()
	src := writeStaticWebP(t, dir, "f.webp")

	cfg := config.DefaultConfig()
	cfg.Strategies = []string{config.StrategyExternal}
	logger, _ := testLogger()

	task := NewCascade(cfg, logger).Convert(context.Background(), src, capability.Availability{})

	if task.Status != StatusFailed {
		t.Fatalf("Status = %s, want failed", task.Status)
	}
	if KindOf(task.Err) != KindExternalToolUnavailable {
		t.Errorf("kind = %q, want ExternalToolUnavailable", KindOf(task.Err))
	}
}

func TestLibraryBridgeFailureFallsBack(t *testing.T) {
	dir := t.TempDir()
	src := writeStaticWebP(t, dir, "g.webp")
	dwebp := writeStub(t, t.TempDir(), "dwebp", `echo "cannot decode" >&2; exit 1`)

	cfg := config.DefaultConfig()
	cfg.Strategies = []string{config.StrategyLibrary, config.StrategyNative}
	logger, _ := testLogger()
	av := capability.Availability{
		LibraryBridge: true,
		BridgeBackend: capability.BackendDwebp,
		Dwebp:         capability.ToolInfo{Path: dwebp},
	}

	task := NewCascade(cfg, logger).Convert(context.Background(), src, av)

	if task.Status != StatusSuccess || task.Strategy != config.StrategyNative {
		t.Fatalf("Status = %s, Strategy = %q, err = %v", task.Status, task.Strategy, task.Err)
	}
	if len(task.Messages) == 0 || !strings.Contains(task.Messages[0], string(KindLibraryBridgeDecodeFailed)) {
		t.Errorf("expected bridge decode failure note, got %v", task.Messages)
	}
	for _, name := range resultEntries(t, src) {
		if strings.HasPrefix(name, "temp_") {
			t.Errorf("temporary file left behind: %s", name)
		}
	}
}

func TestLibraryBridgeEmptyPNG(t *testing.T) {
	dir := t.TempDir()
	src := writeStaticWebP(t, dir, "h.webp")
	dwebp := writeStub(t, t.TempDir(), "dwebp", `: > "$3"`)

	cfg := config.DefaultConfig()
	cfg.Strategies = []string{config.StrategyLibrary}
	logger, _ := testLogger()
	av := capability.Availability{LibraryBridge: true, BridgeBackend: capability.BackendDwebp, Dwebp: capability.ToolInfo{Path: dwebp}}

	task := NewCascade(cfg, logger).Convert(context.Background(), src, av)

	if KindOf(task.Err) != KindLibraryBridgeDecodeFailed {
		t.Errorf("kind = %q, want LibraryBridgeDecodeFailed", KindOf(task.Err))
	}
	if _, err := os.Stat(TempPath(task)); !os.IsNotExist(err) {
		t.Errorf("temporary PNG should be removed, stat err = %v", err)
	}
}

func TestLibraryBridgeImagingSuccess(t *testing.T) {
	dir := t.TempDir()
	src := writeStaticWebP(t, dir, "i.webp")

	cfg := config.DefaultConfig()
	cfg.Strategies = []string{config.StrategyLibrary, config.StrategyNative}
	logger, _ := testLogger()
	av := capability.Availability{LibraryBridge: true, BridgeBackend: capability.BackendImaging}

	task := NewCascade(cfg, logger).Convert(context.Background(), src, av)

	if task.Status != StatusSuccess || task.Strategy != config.StrategyLibrary {
		t.Fatalf("Status = %s, Strategy = %q, err = %v", task.Status, task.Strategy, task.Err)
	}
	names := resultEntries(t, src)
	if len(names) != 1 || names[0] != "i.gif" {
		t.Errorf("result dir = %v, want only i.gif", names)
	}
}

func TestLibrarySkipsAnimatedInput(t *testing.T) {
	dir := t.TempDir()
	src := writeAnimatedWebP(t, dir, "j.webp")

	cfg := config.DefaultConfig()
	cfg.Strategies = []string{config.StrategyLibrary, config.StrategyNative}
	logger, _ := testLogger()
	av := capability.Availability{LibraryBridge: true, BridgeBackend: capability.BackendImaging}

	task := NewCascade(cfg, logger).Convert(context.Background(), src, av)

	if task.Status != StatusSuccess || task.Strategy != config.StrategyNative {
		t.Fatalf("animated input should reach native strategy, Status = %s, Strategy = %q", task.Status, task.Strategy)
	}
}

func TestNativeFrameReadFailed(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "k.webp")
	if err := os.WriteFile(src, []byte("RIFF\x10\x00\x00\x00WEBPVP8L\x04\x00\x00\x00\x00\x00"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Strategies = []string{config.StrategyNative}
	logger, _ := testLogger()

	task := NewCascade(cfg, logger).Convert(context.Background(), src, capability.Availability{})

	if KindOf(task.Err) != KindFrameReadFailed {
		t.Errorf("kind = %q, want FrameReadFailed", KindOf(task.Err))
	}
	if _, err := os.Stat(task.OutputPath); !os.IsNotExist(err) {
		t.Errorf("no output should be written, stat err = %v", err)
	}
}

func TestNativeRejectsOversizedImage(t *testing.T) {
	dir := t.TempDir()
	huge := writeAnimatedWebP(t, dir, "huge.webp")
	data, err := os.ReadFile(huge)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[12:16]) != "VP8X" {
		t.Fatalf("expected VP8X at offset 12, got %q", data[12:16])
	}
	// Холст 20000x20000 при кадрах 4x4.
	for _, off := range []int{24, 27} {
		data[off], data[off+1], data[off+2] = 0x1f, 0x4e, 0x00
	}
	if err := os.WriteFile(huge, data, 0o644); err != nil {
		t.Fatal(err)
	}
	small := writeAnimatedWebP(t, dir, "small.webp")

	tests := []struct {
		name      string
		src       string
		maxPixels int64
	}{
		{"patched canvas with default limit", huge, config.DefaultConfig().MaxPixels},
		{"small animation with tight limit", small, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Strategies = []string{config.StrategyNative}
			cfg.MaxPixels = tt.maxPixels
			logger, _ := testLogger()

			task := NewCascade(cfg, logger).Convert(context.Background(), tt.src, capability.Availability{})

			if task.Status != StatusFailed {
				t.Fatalf("Status = %s, want failed", task.Status)
			}
			if KindOf(task.Err) != KindFrameReadFailed {
				t.Errorf("kind = %q, want FrameReadFailed", KindOf(task.Err))
			}
			if !errors.Is(task.Err, codec.ErrImageTooLarge) {
				t.Errorf("expected ErrImageTooLarge, got %v", task.Err)
			}
			if _, err := os.Stat(task.OutputPath); !os.IsNotExist(err) {
				t.Errorf("no output should be written, stat err = %v", err)
			}
		})
	}
}

func TestMissingBridgeDecoderIsLogged(t *testing.T) {
	dir := t.TempDir()
	src := writeStaticWebP(t, dir, "m.webp")

	cfg := config.DefaultConfig()
	cfg.Strategies = []string{config.StrategyLibrary, config.StrategyNative}
	logger, buf := testLogger()

	task := NewCascade(cfg, logger).Convert(context.Background(), src, capability.Availability{})

	if task.Status != StatusSuccess || task.Strategy != config.StrategyNative {
		t.Fatalf("Status = %s, Strategy = %q, err = %v", task.Status, task.Strategy, task.Err)
	}
	out := buf.String()
	if !strings.Contains(out, "промежуточный декодер не выбран") || !strings.Contains(out, "level=DEBUG") {
		t.Errorf("bridge selection error should be logged at debug:\n%s", out)
	}
}

func TestTaskSucceedRecordsStrategyOnce(t *testing.T) {
	task := NewTask("/x/a.webp")
	task.succeed("external")
	task.succeed("native")
	if task.Strategy != "external" {
		t.Errorf("Strategy = %q, want external", task.Strategy)
	}
	if task.OutputPath != filepath.Join("/x", "result", "a.gif") {
		t.Errorf("OutputPath = %q", task.OutputPath)
	}
}
