// Package runner orchestrates a full availability check: network probe,
// browser session, form fill, signal collection, classification and the
// follow-up actions each outcome requires.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/embassy-watch/embassy-eye/applicant"
	"github.com/embassy-watch/embassy-eye/browser"
	"github.com/embassy-watch/embassy-eye/config"
	"github.com/embassy-watch/embassy-eye/detect"
	"github.com/embassy-watch/embassy-eye/formfill"
	"github.com/embassy-watch/embassy-eye/models"
	"github.com/embassy-watch/embassy-eye/netcheck"
)

// ErrIPBlocked signals the egress address is banned by the booking site.
// The run subcommand maps it to a distinct exit code so a VPN rotation
// wrapper can react.
var ErrIPBlocked = errors.New("ip address blocked by booking site")

// blockedIPWindow is how far back duplicate blocked-IP notices are
// suppressed.
const blockedIPWindow = 24 * time.Hour

// maxAttempts bounds the per-consulate retry loop. One retry confirms a
// positive result or recovers from a page that rendered without fields.
const maxAttempts = 2

const serviceName = "visa_application"

// structureShiftBits is the hamming distance between two DOM fingerprints
// beyond which the page is considered restructured between attempts.
const structureShiftBits = 16

// Store is the persistence surface the runner needs.
type Store interface {
	RecordRun(models.RunRecord) (int64, error)
	RecordSlotFound(models.SlotRecord) (int64, error)
	RecordBlockedIP(models.BlockedIP) (int64, error)
	IsIPRecentlyBlocked(ip string, window time.Duration) (bool, error)
}

// Notifier delivers operator notifications. All sends are best-effort.
type Notifier interface {
	Enabled() bool
	SendMessage(ctx context.Context, text string) error
	SendPhoto(ctx context.Context, caption string, png []byte) error
	SendDocument(ctx context.Context, caption, filename string, data []byte) error
}

// Attempt is everything one browser pass against a consulate produced.
type Attempt struct {
	Outcome      detect.Outcome
	Signals      *detect.Signals
	FieldsFilled int
	PageHTML     string
	Screenshot   []byte
}

type attemptFunc func(ctx context.Context, consulate string) (*Attempt, error)

// Runner drives one complete check across the configured consulates.
type Runner struct {
	cfg          *config.Config
	store        Store
	notifier     Notifier
	gate         *Gate
	log          *slog.Logger
	phrases      detect.PhraseSet
	attempt      attemptFunc
	connectivity func(ctx context.Context) error
}

// New builds a runner using a real browser for each attempt.
func New(cfg *config.Config, st Store, n Notifier, log *slog.Logger) *Runner {
	r := &Runner{
		cfg:      cfg,
		store:    st,
		notifier: n,
		gate:     NewGate(cfg.Cooldown, log),
		log:      log,
		phrases:  detect.DefaultPhrases(),
	}
	r.attempt = r.browserAttempt
	r.connectivity = r.checkConnectivity
	return r
}

// Run executes the full check. It returns ErrIPBlocked (wrapped) when the
// site has banned the current egress address.
func (r *Runner) Run(ctx context.Context) error {
	if r.gate.ShouldSkip() {
		return nil
	}

	if err := r.connectivity(ctx); err != nil {
		r.recordRun("", models.OutcomeError, "", "network connectivity check failed")
		return err
	}

	for _, consulate := range r.cfg.Target.Consulates {
		if err := r.checkConsulate(ctx, consulate); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) checkConnectivity(ctx context.Context) error {
	checks := netcheck.Run(ctx, r.cfg.Target.BookingURL, r.cfg.Browser.Proxy)
	for _, c := range checks {
		r.log.Debug("connectivity probe", slog.String("name", c.Name), slog.Bool("ok", c.OK), slog.String("detail", c.Detail))
	}
	if !netcheck.Healthy(checks) {
		return models.NewCheckError(models.ErrCodeNavigation, "network connectivity check failed", nil)
	}
	return nil
}

func (r *Runner) checkConsulate(ctx context.Context, consulate string) error {
	r.log.Info("checking consulate", slog.String("consulate", consulate))

	var att *Attempt
	var prevFingerprint uint64
	for n := 1; n <= maxAttempts; n++ {
		var err error
		att, err = r.attempt(ctx, consulate)
		if err != nil {
			r.log.Error("attempt failed", slog.String("consulate", consulate), slog.Int("attempt", n), slog.String("error", err.Error()))
			r.recordRun(consulate, models.OutcomeError, "", err.Error())
			return err
		}
		if n > 1 && prevFingerprint != 0 && att.Signals != nil && att.Signals.Fingerprint != 0 &&
			detect.StructureChanged(prevFingerprint, att.Signals.Fingerprint, structureShiftBits) {
			r.log.Warn("page structure shifted between attempts",
				slog.String("consulate", consulate),
				slog.String("previous", fmt.Sprintf("%016x", prevFingerprint)),
				slog.String("current", fmt.Sprintf("%016x", att.Signals.Fingerprint)))
		}
		if n < maxAttempts && r.shouldRetry(att) {
			if att.Signals != nil {
				prevFingerprint = att.Signals.Fingerprint
			}
			r.log.Info("retrying attempt",
				slog.String("consulate", consulate),
				slog.String("outcome", att.Outcome.Tag),
				slog.Int("fields_filled", att.FieldsFilled))
			continue
		}
		break
	}
	return r.dispatch(ctx, consulate, att)
}

// shouldRetry asks for one more pass when the form rendered without any
// fillable fields, or when the result is positive without any modal-shaped
// element backing it. A positive confirmed by an explicit alert, red text
// or modal match is terminal on first occurrence.
func (r *Runner) shouldRetry(att *Attempt) bool {
	if att.FieldsFilled == 0 && att.Outcome.Tag != models.OutcomeIPBlocked {
		return true
	}
	return att.Outcome.Tag == models.OutcomeSlotsFound && !att.Signals.HasModalEvidence()
}

func (r *Runner) dispatch(ctx context.Context, consulate string, att *Attempt) error {
	tag := att.Outcome.Tag
	r.log.Info("run outcome",
		slog.String("consulate", consulate),
		slog.String("outcome", tag),
		slog.Int("fields_filled", att.FieldsFilled))

	// A page with no fillable fields produces no signals either, which
	// the classifier reads as a positive. That is a broken page, not an
	// open calendar.
	if att.FieldsFilled == 0 && tag == models.OutcomeSlotsFound {
		r.recordRun(consulate, models.OutcomeError, "", "page rendered without fillable fields")
		r.notifyText(ctx, fmt.Sprintf("Check at %s (%s) aborted: the booking form rendered without fillable fields, page source dumped.", consulate, r.cfg.Target.Embassy))
		return nil
	}

	switch tag {
	case models.OutcomeCaptcha:
		r.recordRun(consulate, tag, "", "captcha challenge shown")
		r.notifyText(ctx, fmt.Sprintf("Captcha challenge at %s (%s). Pausing checks to cool down.", consulate, r.cfg.Target.Embassy))
		if err := r.gate.Arm(); err != nil {
			r.log.Error("cooldown not armed", slog.String("error", err.Error()))
		}

	case models.OutcomeEmailVerification:
		r.recordRun(consulate, tag, "", "email verification step shown")
		r.notifyText(ctx, fmt.Sprintf("Email verification required at %s (%s). The site may have slots behind the verification step.", consulate, r.cfg.Target.Embassy))

	case models.OutcomeIPBlocked:
		ip := att.Signals.BlockedIP
		r.recordRun(consulate, tag, ip, "egress ip blocked by site")
		r.handleBlockedIP(ctx, ip)
		return fmt.Errorf("%w: %s", ErrIPBlocked, ip)

	case models.OutcomeSlotsFound:
		r.recordRun(consulate, tag, "", fmt.Sprintf("fields_filled=%d", att.FieldsFilled))
		if _, err := r.store.RecordSlotFound(models.SlotRecord{
			Embassy:  r.cfg.Target.Embassy,
			Location: consulate,
			Service:  serviceName,
			Notes:    att.Outcome.Diagnostics["url"],
		}); err != nil {
			r.log.Error("slot record not written", slog.String("error", err.Error()))
		}
		r.dumpPage("slots_found", att.PageHTML)
		r.notifySlots(ctx, consulate, att)

	default:
		// no_slots, form_reset and anything unexpected: record only.
		r.recordRun(consulate, tag, "", fmt.Sprintf("fields_filled=%d", att.FieldsFilled))
	}
	return nil
}

func (r *Runner) handleBlockedIP(ctx context.Context, ip string) {
	already, err := r.store.IsIPRecentlyBlocked(ip, blockedIPWindow)
	if err != nil {
		r.log.Error("blocked-ip lookup failed", slog.String("error", err.Error()))
	}
	if already {
		r.log.Info("ip already recorded as blocked", slog.String("ip", ip))
		return
	}
	if _, err := r.store.RecordBlockedIP(models.BlockedIP{
		IPAddress: ip,
		Country:   r.cfg.Target.Country,
		Embassy:   r.cfg.Target.Embassy,
	}); err != nil {
		r.log.Error("blocked-ip record not written", slog.String("error", err.Error()))
	}
	r.notifyText(ctx, fmt.Sprintf("IP %s is blocked by the booking site. Rotate the VPN endpoint.", ip))
}

func (r *Runner) notifySlots(ctx context.Context, consulate string, att *Attempt) {
	msg := fmt.Sprintf("Appointment slots may be available at %s (%s)! Check %s now.",
		consulate, r.cfg.Target.Embassy, r.cfg.Target.BookingURL)
	if len(att.Screenshot) > 0 {
		if err := r.sendNotify(r.notifier.SendPhoto(ctx, msg, att.Screenshot)); err == nil {
			return
		}
	}
	r.notifyText(ctx, msg)
}

func (r *Runner) notifyText(ctx context.Context, text string) {
	r.sendNotify(r.notifier.SendMessage(ctx, text))
}

func (r *Runner) sendNotify(err error) error {
	if !r.notifier.Enabled() {
		return nil
	}
	if err != nil {
		r.log.Error("notification not delivered", slog.String("error", err.Error()))
	}
	return err
}

func (r *Runner) recordRun(consulate, outcome, ip, notes string) {
	if _, err := r.store.RecordRun(models.RunRecord{
		Embassy:   r.cfg.Target.Embassy,
		Location:  consulate,
		Service:   serviceName,
		RunAt:     time.Now().UTC(),
		Outcome:   outcome,
		IPAddress: ip,
		Country:   r.cfg.Target.Country,
		Notes:     notes,
	}); err != nil {
		r.log.Error("run record not written", slog.String("error", err.Error()))
	}
}

// dumpPage writes the page source to the dump directory for offline
// inspection. Failures only log.
func (r *Runner) dumpPage(prefix, src string) {
	if src == "" || r.cfg.Dump.Dir == "" {
		return
	}
	if err := os.MkdirAll(r.cfg.Dump.Dir, 0o755); err != nil {
		r.log.Warn("dump dir not created", slog.String("error", err.Error()))
		return
	}
	name := fmt.Sprintf("%s_%s.html", prefix, time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(r.cfg.Dump.Dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		r.log.Warn("page dump not written", slog.String("error", err.Error()))
		return
	}
	r.log.Info("page source dumped", slog.String("path", path))
}

// browserAttempt runs one real pass: fresh session, navigate, fill,
// submit, collect and classify.
func (r *Runner) browserAttempt(ctx context.Context, consulate string) (*Attempt, error) {
	sess, err := browser.NewSession(r.cfg.Browser)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	if err := sess.Navigate(r.cfg.Target.BookingURL, r.cfg.Timing); err != nil {
		return nil, err
	}

	// Block pages render before any form does, so scan the landing page
	// first and skip the fill entirely if the address is banned.
	if src, err := sess.HTML(); err == nil {
		sig := detect.ScanHTML(src, r.phrases)
		if sig.BlockedIP != "" {
			return &Attempt{Outcome: detect.Classify(sig, r.phrases), Signals: sig, PageHTML: src}, nil
		}
	}

	data, err := applicant.Generate()
	if err != nil {
		return nil, models.NewCheckError(models.ErrCodeInternal, "generate applicant data", err)
	}

	filler := &formfill.Filler{
		CharDelay: r.cfg.Timing.CharDelay,
		Consulate: consulate,
		VisaType:  r.cfg.Target.VisaType,
	}
	filled := filler.Fill(sess.Page(), data)
	if filled == 0 {
		src, _ := sess.HTML()
		r.dumpPage("zero_fields", src)
		sig := detect.ScanHTML(src, r.phrases)
		return &Attempt{Outcome: detect.Classify(sig, r.phrases), Signals: sig, PageHTML: src}, nil
	}

	if err := filler.ClickNext(sess.Page()); err != nil {
		return nil, err
	}

	collector := &detect.Collector{
		Phrases:     r.phrases,
		ModalSettle: r.cfg.Timing.ModalSettle,
		AlertWait:   r.cfg.Timing.AlertWait,
	}
	sig := collector.Collect(sess.Page())
	outcome := detect.Classify(sig, r.phrases)

	att := &Attempt{
		Outcome:      outcome,
		Signals:      sig,
		FieldsFilled: filled,
	}
	if src, err := sess.HTML(); err == nil {
		att.PageHTML = src
	}
	if outcome.Tag == models.OutcomeSlotsFound {
		if shot, err := sess.Screenshot(); err != nil {
			r.log.Warn("screenshot failed", slog.String("error", err.Error()))
		} else {
			att.Screenshot = shot
		}
	}
	return att, nil
}
