package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/embassy-watch/embassy-eye/config"
)

// cooldownRecord is the on-disk state the gate keeps between process
// invocations.
type cooldownRecord struct {
	DetectedAt  time.Time `json:"detected_at"`
	SkippedRuns int       `json:"skipped_runs"`
}

// Gate skips a fixed number of runs after a captcha detection so the
// site's suspicion can settle before the next attempt.
type Gate struct {
	path          string
	requiredSkips int
	log           *slog.Logger
}

// NewGate builds a cooldown gate backed by the record file in cfg.
func NewGate(cfg config.CooldownConfig, log *slog.Logger) *Gate {
	return &Gate{path: cfg.Path, requiredSkips: cfg.RequiredSkips, log: log}
}

// Arm writes a fresh cooldown record, starting the skip countdown.
func (g *Gate) Arm() error {
	rec := cooldownRecord{DetectedAt: time.Now().UTC()}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode cooldown record: %w", err)
	}
	if err := os.WriteFile(g.path, data, 0o644); err != nil {
		return fmt.Errorf("write cooldown record: %w", err)
	}
	g.log.Info("captcha cooldown armed", slog.String("path", g.path), slog.Int("skips", g.requiredSkips))
	return nil
}

// ShouldSkip decides whether this run sits out the cooldown. Each call
// during an active cooldown counts as one skipped run. Once enough runs
// are skipped the record is removed and checks resume. A missing or
// unreadable record always lets the run proceed.
func (g *Gate) ShouldSkip() bool {
	data, err := os.ReadFile(g.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	if err != nil {
		g.log.Warn("cooldown record unreadable, removing", slog.String("error", err.Error()))
		os.Remove(g.path)
		return false
	}

	var rec cooldownRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		g.log.Warn("cooldown record corrupted, removing", slog.String("error", err.Error()))
		os.Remove(g.path)
		return false
	}

	if rec.SkippedRuns >= g.requiredSkips {
		g.log.Info("captcha cooldown complete, resuming checks",
			slog.Time("detected_at", rec.DetectedAt),
			slog.Int("skipped_runs", rec.SkippedRuns))
		os.Remove(g.path)
		return false
	}

	rec.SkippedRuns++
	if out, err := json.Marshal(rec); err == nil {
		if err := os.WriteFile(g.path, out, 0o644); err != nil {
			g.log.Warn("cooldown record not updated", slog.String("error", err.Error()))
		}
	}
	g.log.Info("captcha cooldown active, skipping run",
		slog.Time("detected_at", rec.DetectedAt),
		slog.Int("skipped_runs", rec.SkippedRuns),
		slog.Int("required_skips", g.requiredSkips))
	return true
}
