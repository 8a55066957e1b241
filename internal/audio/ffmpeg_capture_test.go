package audio

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"speakdrill/internal/domain"
	"speakdrill/internal/ports"
)

func TestFFMPEGCaptureDeliversFlushAfterStop(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\ntrap 'printf tail; exit 0' INT\nprintf 'hello'\nwhile true; do sleep 0.05; done\n")
	capture := NewFFMPEGCapture(script, zerolog.Nop())

	stream, err := capture.Acquire(context.Background(), ports.CaptureConfig{})
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer stream.Close()

	buf := make([]byte, 5)
	if _, err := io.ReadFull(stream, buf); err != nil || string(buf) != "hello" {
		t.Fatalf("unexpected first bytes: %q err=%v", string(buf), err)
	}

	if err := stream.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	rest, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("read after stop failed: %v", err)
	}
	if string(rest) != "tail" {
		t.Fatalf("expected flushed bytes before EOF, got %q", string(rest))
	}
	if err := stream.Stop(); err != nil {
		t.Fatalf("second stop must be a no-op: %v", err)
	}
}

func TestFFMPEGCaptureEarlyExitIsPermissionDenied(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'device busy' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Acquire(ctx, ports.CaptureConfig{})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if !strings.Contains(err.Error(), "device busy") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestFFMPEGCaptureMissingBinaryIsPermissionDenied(t *testing.T) {
	t.Parallel()

	capture := NewFFMPEGCapture(filepath.Join(t.TempDir(), "missing-ffmpeg"), zerolog.Nop())
	_, err := capture.Acquire(context.Background(), ports.CaptureConfig{})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestCaptureArgsEncodeWebMOpus(t *testing.T) {
	t.Parallel()

	args := captureArgs(ports.CaptureConfig{InputFormat: "alsa", InputDevice: "hw:1"})
	joined := strings.Join(args, " ")
	for _, want := range []string{"-f alsa", "-i hw:1", "-ar 48000", "-ac 1", "-c:a libopus", "-f webm"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args: %s", want, joined)
		}
	}
	if args[len(args)-1] != "-" {
		t.Fatalf("expected output to stdout: %v", args)
	}
	if !slices.Contains(args, "-nostdin") {
		t.Fatalf("expected -nostdin: %v", args)
	}
}

func TestNormalizeStopErrExitErrorIsIgnored(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-c", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := normalizeStopErr(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
