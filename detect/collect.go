package detect

import (
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
)

// Collector runs the live page probes and merges them with the static scan
// of the captured page source. Every probe degrades to "not found" on
// failure; a dead probe never aborts collection.
type Collector struct {
	Phrases PhraseSet
	// ModalSettle is slept before probing. Availability modals render
	// asynchronously after the submit click.
	ModalSettle time.Duration
	// AlertWait bounds the wait for a role="alert" element.
	AlertWait time.Duration
}

// Collect takes the signal snapshot for one check attempt.
func (c *Collector) Collect(page *rod.Page) *Signals {
	if c.ModalSettle > 0 {
		time.Sleep(c.ModalSettle)
	}

	src, err := page.HTML()
	if err != nil {
		slog.Warn("page source capture failed", "error", err)
		src = ""
	}
	sig := ScanHTML(src, c.Phrases)

	if info, infoErr := page.Info(); infoErr == nil {
		sig.URL = info.URL
		if sig.Title == "" {
			sig.Title = info.Title
		}
	}

	c.probeBody(page, sig)
	c.probeAlert(page, sig)
	c.probeRedText(page, sig)
	c.probeModalBodies(page, sig)
	c.probeSelectDateButton(page, sig)

	return sig
}

// probeBody refreshes BodyText from the live DOM. Rendered text can carry
// notices the static source misses.
func (c *Collector) probeBody(page *rod.Page, sig *Signals) {
	el, err := page.Timeout(2 * time.Second).Element("body")
	if err != nil {
		return
	}
	text, err := el.Text()
	if err != nil || text == "" {
		return
	}
	sig.BodyText = strings.ToLower(text)

	if sig.BlockedIP == "" {
		sig.BlockedIP = c.Phrases.extractBlockedIP(sig.BodyText)
	}
	if !sig.FormReset {
		sig.FormReset = c.Phrases.matchFormReset(sig.BodyText)
	}
}

func (c *Collector) probeAlert(page *rod.Page, sig *Signals) {
	el, err := page.Timeout(c.AlertWait).Element(`[role="alert"]`)
	if err != nil {
		return
	}
	visible, err := el.Visible()
	if err != nil || !visible {
		return
	}
	text, err := el.Text()
	if err != nil {
		return
	}
	sig.AlertFound = true
	sig.AlertText = strings.ToLower(strings.TrimSpace(text))
}

func (c *Collector) probeRedText(page *rod.Page, sig *Signals) {
	if sig.RedTextFound {
		return
	}
	els, err := page.Elements(`[style*="color:red"], [style*="color: red"]`)
	if err != nil {
		return
	}
	for _, el := range els {
		visible, visErr := el.Visible()
		if visErr != nil || !visible {
			continue
		}
		text, textErr := el.Text()
		if textErr != nil {
			continue
		}
		if _, ok := c.Phrases.matchNoSlots(strings.ToLower(text)); ok {
			sig.RedTextFound = true
			return
		}
	}
}

func (c *Collector) probeModalBodies(page *rod.Page, sig *Signals) {
	els, err := page.Elements(`div.modal-body`)
	if err != nil {
		return
	}
	for _, el := range els {
		visible, visErr := el.Visible()
		if visErr != nil || !visible {
			continue
		}
		text, textErr := el.Text()
		if textErr != nil {
			continue
		}
		lower := strings.ToLower(strings.TrimSpace(text))
		phrase, ok := c.Phrases.matchAny(lower)
		if !ok {
			continue
		}
		match := ModalMatch{Text: snippet(lower), Phrase: phrase}
		if !containsMatch(sig.ModalMatches, match) {
			sig.ModalMatches = append(sig.ModalMatches, match)
		}
	}
}

func (c *Collector) probeSelectDateButton(page *rod.Page, sig *Signals) {
	el, err := page.Timeout(2 * time.Second).ElementR("button", "/select.*date/i")
	if err != nil {
		sig.SelectDateButton = &ButtonState{Found: false}
		return
	}
	state := &ButtonState{Found: true}
	if text, textErr := el.Text(); textErr == nil {
		state.Text = strings.TrimSpace(text)
	}
	if prop, propErr := el.Property("disabled"); propErr == nil {
		state.Disabled = prop.Bool()
	}
	sig.SelectDateButton = state
}

func containsMatch(matches []ModalMatch, m ModalMatch) bool {
	for _, existing := range matches {
		if existing.Text == m.Text && existing.Phrase == m.Phrase {
			return true
		}
	}
	return false
}
