// Package browser owns the Chrome session for one run: launch with
// anti-automation flags, fingerprint masking, navigation with connection
// retry, and guaranteed teardown.
package browser

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/embassy-watch/embassy-eye/config"
	"github.com/embassy-watch/embassy-eye/models"
	"github.com/embassy-watch/embassy-eye/profile"
)

// connectionErrors are the navigation failures worth retrying; anything
// else fails the run immediately.
var connectionErrors = []string{
	"err_connection_closed",
	"err_connection_reset",
	"err_connection_refused",
	"err_connection_timed_out",
	"err_network_changed",
	"net::err_connection",
	"connection closed",
	"connection reset",
}

// Session is one exclusive browser instance. Sessions are never shared or
// reused across runs so cookies and fingerprints do not leak between them.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	device   profile.Device
	cfg      config.BrowserConfig
}

// NewSession launches a fresh browser with a random device profile.
func NewSession(cfg config.BrowserConfig) (*Session, error) {
	device := profile.Random()

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "IsolateOrigins,site-per-process")
	l.Set(flags.Flag("disable-site-isolation-trials"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("user-agent"), device.UserAgent)
	l.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", device.Width, device.Height))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCheckError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "ua", device.UserAgent)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, models.NewCheckError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, models.NewCheckError(models.ErrCodeBrowserCrash, "failed to create page", err)
	}

	s := &Session{browser: b, launcher: l, page: page, device: device, cfg: cfg}
	s.applyStealth()
	return s, nil
}

// Page returns the session's single page.
func (s *Session) Page() *rod.Page {
	return s.page
}

// Device returns the device profile in effect for this session.
func (s *Session) Device() profile.Device {
	return s.device
}

// applyStealth installs the masking scripts and emulation overrides.
// Must run before the first navigation.
func (s *Session) applyStealth() {
	if _, err := s.page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}
	if _, err := s.page.EvalOnNewDocument(s.device.StealthScript()); err != nil {
		slog.Warn("fingerprint override injection failed", "error", err)
	}

	_ = proto.EmulationSetTimezoneOverride{TimezoneID: s.device.Timezone}.Call(s.page)

	lat := 40.0 + rand.Float64()*10.0
	lon := -5.0 + rand.Float64()*25.0
	accuracy := 100.0
	_ = proto.EmulationSetGeolocationOverride{
		Latitude:  &lat,
		Longitude: &lon,
		Accuracy:  &accuracy,
	}.Call(s.page)

	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: proto.NetworkHeaders{
			"Accept-Language": gson.New(strings.Join(s.device.Languages, ",")),
		},
	}.Call(s.page)
}

// Navigate loads the booking page, retrying transient connection errors
// with exponential backoff, then waits for the form to render.
func (s *Session) Navigate(url string, timing config.TimingConfig) error {
	// Human-ish pause before touching the site.
	sleepBetween(time.Second, 3*time.Second)

	var navErr error
	for attempt := 1; attempt <= timing.NavRetries; attempt++ {
		navErr = s.page.Navigate(url)
		if navErr == nil {
			break
		}
		if !isConnectionError(navErr) || attempt == timing.NavRetries {
			return models.NewCheckError(models.ErrCodeNavigation, "navigation to booking page failed", navErr)
		}
		backoff := time.Duration(1<<attempt)*time.Second + jitter(500*time.Millisecond, 1500*time.Millisecond)
		slog.Warn("connection error during navigation, retrying",
			"attempt", attempt, "backoff", backoff, "error", navErr)
		time.Sleep(backoff)
	}

	if _, err := s.page.Timeout(timing.PageLoadWait).Element("form"); err != nil {
		slog.Warn("form not found after page load, continuing anyway", "error", err)
	}
	sleepBetween(2*time.Second, 4*time.Second)
	return nil
}

// HTML returns the current page source.
func (s *Session) HTML() (string, error) {
	return s.page.HTML()
}

// Screenshot captures the full page as PNG, beyond the viewport.
// Falls back to a viewport shot if the full capture fails.
func (s *Session) Screenshot() ([]byte, error) {
	shot, err := proto.PageCaptureScreenshot{
		Format:                proto.PageCaptureScreenshotFormatPng,
		CaptureBeyondViewport: true,
	}.Call(s.page)
	if err == nil {
		return shot.Data, nil
	}
	slog.Warn("full-page screenshot failed, falling back to viewport", "error", err)

	data, vpErr := s.page.Screenshot(false, nil)
	if vpErr != nil {
		return nil, fmt.Errorf("viewport screenshot: %w", vpErr)
	}
	return data, nil
}

// Close tears the browser down. Safe to call multiple times and must run
// on every exit path, including the fatal IP-block abort.
func (s *Session) Close() {
	if s.browser == nil {
		return
	}
	if err := s.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	s.launcher.Kill()
	s.browser = nil
	slog.Info("browser session closed")
}

func isConnectionError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range connectionErrors {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func jitter(min, max time.Duration) time.Duration {
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func sleepBetween(min, max time.Duration) {
	time.Sleep(jitter(min, max))
}
