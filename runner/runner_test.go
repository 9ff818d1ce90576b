package runner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/embassy-watch/embassy-eye/config"
	"github.com/embassy-watch/embassy-eye/detect"
	"github.com/embassy-watch/embassy-eye/models"
)

type fakeStore struct {
	runs           []models.RunRecord
	slots          []models.SlotRecord
	blocked        []models.BlockedIP
	alreadyBlocked bool
}

func (f *fakeStore) RecordRun(r models.RunRecord) (int64, error) {
	f.runs = append(f.runs, r)
	return int64(len(f.runs)), nil
}

func (f *fakeStore) RecordSlotFound(r models.SlotRecord) (int64, error) {
	f.slots = append(f.slots, r)
	return int64(len(f.slots)), nil
}

func (f *fakeStore) RecordBlockedIP(r models.BlockedIP) (int64, error) {
	f.blocked = append(f.blocked, r)
	return int64(len(f.blocked)), nil
}

func (f *fakeStore) IsIPRecentlyBlocked(ip string, window time.Duration) (bool, error) {
	return f.alreadyBlocked, nil
}

type fakeNotifier struct {
	messages []string
	photos   int
	docs     int
}

func (f *fakeNotifier) Enabled() bool { return true }

func (f *fakeNotifier) SendMessage(ctx context.Context, text string) error {
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeNotifier) SendPhoto(ctx context.Context, caption string, png []byte) error {
	f.photos++
	return nil
}

func (f *fakeNotifier) SendDocument(ctx context.Context, caption, filename string, data []byte) error {
	f.docs++
	return nil
}

func newTestRunner(t *testing.T, attempt attemptFunc) (*Runner, *fakeStore, *fakeNotifier) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Target: config.TargetConfig{
			BookingURL: "https://booking.example.test/",
			Embassy:    "hungary",
			Consulates: []string{"Serbia - Subotica"},
		},
		Cooldown: config.CooldownConfig{
			Path:          filepath.Join(dir, "cooldown.json"),
			RequiredSkips: 2,
		},
		Dump: config.DumpConfig{Dir: filepath.Join(dir, "dumps")},
	}
	st := &fakeStore{}
	n := &fakeNotifier{}
	r := New(cfg, st, n, testLogger())
	r.attempt = attempt
	r.connectivity = func(ctx context.Context) error { return nil }
	return r, st, n
}

func countingAttempts(calls *int, att *Attempt) attemptFunc {
	return func(ctx context.Context, consulate string) (*Attempt, error) {
		*calls++
		return att, nil
	}
}

func TestRunConfirmsPositiveBeforeNotifying(t *testing.T) {
	var calls int
	att := &Attempt{
		Outcome:      detect.Outcome{Tag: models.OutcomeSlotsFound, SlotsAvailable: true},
		Signals:      &detect.Signals{},
		FieldsFilled: 9,
		PageHTML:     "<html><body>calendar</body></html>",
		Screenshot:   []byte{0x89, 'P', 'N', 'G'},
	}
	r, st, n := newTestRunner(t, countingAttempts(&calls, att))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 2 {
		t.Errorf("attempts = %d, want 2 (positive needs confirmation)", calls)
	}
	if len(st.runs) != 1 || st.runs[0].Outcome != models.OutcomeSlotsFound {
		t.Errorf("runs = %+v, want one slots_found record", st.runs)
	}
	if len(st.slots) != 1 {
		t.Errorf("slot records = %d, want 1", len(st.slots))
	}
	if n.photos != 1 {
		t.Errorf("photos sent = %d, want 1", n.photos)
	}
	if len(n.messages) != 0 {
		t.Errorf("messages = %v, photo delivery should suffice", n.messages)
	}
}

func TestRunModalBackedPositiveIsTerminal(t *testing.T) {
	var calls int
	att := &Attempt{
		Outcome:      detect.Outcome{Tag: models.OutcomeSlotsFound, SlotsAvailable: true},
		Signals:      &detect.Signals{AlertFound: true, AlertText: "your session will expire soon"},
		FieldsFilled: 9,
		PageHTML:     "<html><body>calendar</body></html>",
		Screenshot:   []byte{0x89, 'P', 'N', 'G'},
	}
	r, st, n := newTestRunner(t, countingAttempts(&calls, att))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Errorf("attempts = %d, want 1 (alert-backed positive needs no confirmation)", calls)
	}
	if len(st.runs) != 1 || st.runs[0].Outcome != models.OutcomeSlotsFound {
		t.Errorf("runs = %+v, want one slots_found record", st.runs)
	}
	if len(st.slots) != 1 {
		t.Errorf("slot records = %d, want 1", len(st.slots))
	}
	if n.photos != 1 {
		t.Errorf("photos sent = %d, want 1", n.photos)
	}
}

func TestRunWarnsWhenStructureShiftsBetweenAttempts(t *testing.T) {
	attempts := []*Attempt{
		{
			Outcome:      detect.Outcome{Tag: models.OutcomeSlotsFound, SlotsAvailable: true},
			Signals:      &detect.Signals{Fingerprint: 0x0000000000000001},
			FieldsFilled: 9,
		},
		{
			Outcome:      detect.Outcome{Tag: models.OutcomeNoSlots},
			Signals:      &detect.Signals{AlertFound: true, AlertText: "no appointments available", Fingerprint: ^uint64(0)},
			FieldsFilled: 9,
		},
	}
	var calls int
	r, st, _ := newTestRunner(t, func(ctx context.Context, consulate string) (*Attempt, error) {
		att := attempts[calls]
		calls++
		return att, nil
	})
	h := &recordingHandler{}
	r.log = slog.New(h)
	r.gate.log = r.log

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 2 {
		t.Fatalf("attempts = %d, want 2", calls)
	}
	if !h.contains("page structure shifted between attempts") {
		t.Errorf("log messages = %v, want a structure-shift warning", h.snapshot())
	}
	if len(st.runs) != 1 || st.runs[0].Outcome != models.OutcomeNoSlots {
		t.Errorf("runs = %+v, want one no_slots record", st.runs)
	}
}

type recordingHandler struct {
	mu       sync.Mutex
	messages []string
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.messages = append(h.messages, r.Message)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) contains(msg string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.messages {
		if m == msg {
			return true
		}
	}
	return false
}

func (h *recordingHandler) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...)
}

func TestRunZeroFieldsStopsAfterSecondAttempt(t *testing.T) {
	var calls int
	att := &Attempt{
		Outcome: detect.Outcome{Tag: models.OutcomeSlotsFound, SlotsAvailable: true},
		Signals: &detect.Signals{},
	}
	r, st, n := newTestRunner(t, countingAttempts(&calls, att))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 2 {
		t.Errorf("attempts = %d, want exactly 2", calls)
	}
	if len(st.runs) != 1 || st.runs[0].Outcome != models.OutcomeError {
		t.Errorf("runs = %+v, want one error record", st.runs)
	}
	if len(st.slots) != 0 {
		t.Error("broken page must not be recorded as a slot sighting")
	}
	if n.photos != 0 {
		t.Error("broken page must not produce a slots notification")
	}
	if len(n.messages) != 1 {
		t.Errorf("messages = %v, want one broken-form notice", n.messages)
	}
}

func TestRunNoSlotsRecordsWithoutRetry(t *testing.T) {
	var calls int
	att := &Attempt{
		Outcome:      detect.Outcome{Tag: models.OutcomeNoSlots},
		Signals:      &detect.Signals{AlertFound: true, AlertText: "no appointments available"},
		FieldsFilled: 9,
	}
	r, st, n := newTestRunner(t, countingAttempts(&calls, att))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Errorf("attempts = %d, want 1", calls)
	}
	if len(st.runs) != 1 || st.runs[0].Outcome != models.OutcomeNoSlots {
		t.Errorf("runs = %+v, want one no_slots record", st.runs)
	}
	if n.photos != 0 || len(n.messages) != 0 {
		t.Error("no_slots must not notify")
	}
}

func TestRunCaptchaArmsCooldown(t *testing.T) {
	var calls int
	att := &Attempt{
		Outcome:      detect.Outcome{Tag: models.OutcomeCaptcha, SpecialCase: detect.SpecialCaptchaRequired},
		Signals:      &detect.Signals{},
		FieldsFilled: 9,
	}
	r, st, n := newTestRunner(t, countingAttempts(&calls, att))

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Errorf("attempts = %d, want 1", calls)
	}
	if len(st.runs) != 1 || st.runs[0].Outcome != models.OutcomeCaptcha {
		t.Errorf("runs = %+v, want one captcha record", st.runs)
	}
	if len(n.messages) != 1 {
		t.Errorf("messages = %v, want one captcha alert", n.messages)
	}
	if _, err := os.Stat(r.gate.path); err != nil {
		t.Errorf("cooldown record should exist after captcha: %v", err)
	}

	// The cooldown must gate the next two runs.
	calls = 0
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run during cooldown: %v", err)
	}
	if calls != 0 {
		t.Errorf("attempts during cooldown = %d, want 0", calls)
	}
}

func TestRunIPBlockedReturnsSentinel(t *testing.T) {
	var calls int
	att := &Attempt{
		Outcome: detect.Outcome{Tag: models.OutcomeIPBlocked, SpecialCase: detect.SpecialIPBlocked},
		Signals: &detect.Signals{BlockedIP: "203.0.113.7"},
	}
	r, st, n := newTestRunner(t, countingAttempts(&calls, att))

	err := r.Run(context.Background())
	if !errors.Is(err, ErrIPBlocked) {
		t.Fatalf("err = %v, want ErrIPBlocked", err)
	}
	if calls != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on ip block)", calls)
	}
	if len(st.blocked) != 1 || st.blocked[0].IPAddress != "203.0.113.7" {
		t.Errorf("blocked = %+v, want one record for 203.0.113.7", st.blocked)
	}
	if len(n.messages) != 1 {
		t.Errorf("messages = %v, want one rotate-vpn alert", n.messages)
	}
}

func TestRunIPBlockedSuppressesDuplicateNotice(t *testing.T) {
	att := &Attempt{
		Outcome: detect.Outcome{Tag: models.OutcomeIPBlocked},
		Signals: &detect.Signals{BlockedIP: "203.0.113.7"},
	}
	var calls int
	r, st, n := newTestRunner(t, countingAttempts(&calls, att))
	st.alreadyBlocked = true

	err := r.Run(context.Background())
	if !errors.Is(err, ErrIPBlocked) {
		t.Fatalf("err = %v, want ErrIPBlocked", err)
	}
	if len(st.blocked) != 0 {
		t.Errorf("blocked = %+v, duplicate must not be recorded again", st.blocked)
	}
	if len(n.messages) != 0 {
		t.Errorf("messages = %v, duplicate must not notify", n.messages)
	}
}

func TestRunAttemptErrorIsRecorded(t *testing.T) {
	wantErr := models.NewCheckError(models.ErrCodeBrowserCrash, "browser went away", nil)
	r, st, _ := newTestRunner(t, func(ctx context.Context, consulate string) (*Attempt, error) {
		return nil, wantErr
	})

	err := r.Run(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want the attempt error", err)
	}
	if len(st.runs) != 1 || st.runs[0].Outcome != models.OutcomeError {
		t.Errorf("runs = %+v, want one error record", st.runs)
	}
}

func TestRunConnectivityFailureAborts(t *testing.T) {
	var calls int
	r, st, _ := newTestRunner(t, countingAttempts(&calls, &Attempt{}))
	r.connectivity = func(ctx context.Context) error {
		return models.NewCheckError(models.ErrCodeNavigation, "network connectivity check failed", nil)
	}

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected connectivity error")
	}
	if calls != 0 {
		t.Errorf("attempts = %d, want 0 when connectivity fails", calls)
	}
	if len(st.runs) != 1 || st.runs[0].Outcome != models.OutcomeError {
		t.Errorf("runs = %+v, want one error record", st.runs)
	}
}
