package runner

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/embassy-watch/embassy-eye/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGate(t *testing.T, skips int) *Gate {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cooldown.json")
	return NewGate(config.CooldownConfig{Path: path, RequiredSkips: skips}, testLogger())
}

func TestGateSkipsConfiguredRuns(t *testing.T) {
	g := newTestGate(t, 2)

	if g.ShouldSkip() {
		t.Fatal("fresh gate should not skip")
	}

	if err := g.Arm(); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if !g.ShouldSkip() {
		t.Error("first run after captcha should skip")
	}
	if !g.ShouldSkip() {
		t.Error("second run after captcha should skip")
	}
	if g.ShouldSkip() {
		t.Error("third run should proceed")
	}
	if _, err := os.Stat(g.path); !os.IsNotExist(err) {
		t.Error("cooldown record should be removed once skips are served")
	}

	if g.ShouldSkip() {
		t.Error("gate should stay open after cooldown completes")
	}
}

func TestGateRearms(t *testing.T) {
	g := newTestGate(t, 1)

	g.Arm()
	if !g.ShouldSkip() {
		t.Fatal("armed gate should skip")
	}
	if g.ShouldSkip() {
		t.Fatal("gate should open after one skip")
	}

	g.Arm()
	if !g.ShouldSkip() {
		t.Error("re-armed gate should skip again")
	}
}

func TestGateUnreadableRecord(t *testing.T) {
	g := newTestGate(t, 2)

	// A directory at the record path makes the read fail without the
	// file being absent.
	if err := os.Mkdir(g.path, 0o755); err != nil {
		t.Fatalf("mkdir at record path: %v", err)
	}
	if g.ShouldSkip() {
		t.Error("unreadable record should not block the run")
	}
	if _, err := os.Stat(g.path); !os.IsNotExist(err) {
		t.Error("unreadable record should be removed")
	}
}

func TestGateCorruptedRecord(t *testing.T) {
	g := newTestGate(t, 2)

	if err := os.WriteFile(g.path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupted record: %v", err)
	}
	if g.ShouldSkip() {
		t.Error("corrupted record should not block the run")
	}
	if _, err := os.Stat(g.path); !os.IsNotExist(err) {
		t.Error("corrupted record should be removed")
	}
}
