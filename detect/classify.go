package detect

import (
	"fmt"
	"strings"

	"github.com/embassy-watch/embassy-eye/models"
)

// Special cases carried alongside the outcome tag.
const (
	SpecialCaptchaRequired   = "captcha_required"
	SpecialEmailVerification = "email_verification"
	SpecialIPBlocked         = "ip_blocked"
)

// Outcome is the single classification result for one check attempt.
type Outcome struct {
	// Tag is one of the models.Outcome* constants.
	Tag string
	// SlotsAvailable is the availability verdict implied by the tag.
	SlotsAvailable bool
	// SpecialCase is set for outcomes needing distinct handling, else "".
	SpecialCase string
	// Diagnostics holds free-form facts for logging and notifications.
	// It never participates in control flow.
	Diagnostics map[string]string
}

// Classify maps a Signals snapshot to exactly one Outcome. It is a pure
// function with a fixed priority order; earlier checks win ties:
//
//	captcha > email verification > IP block > no-slots modal > form reset > slots found
//
// The default branch treats the absence of every negative signal as
// availability: the site only renders a blocking modal when no slots exist.
func Classify(sig *Signals, ps PhraseSet) Outcome {
	diag := diagnostics(sig)

	// 1. Captcha checkpoint. Only reachable when slots exist, so this wins
	// over everything, including a concurrent IP-block notice.
	if sig.containsPhrase(ps.Captcha) {
		return Outcome{
			Tag:            models.OutcomeCaptcha,
			SlotsAvailable: true,
			SpecialCase:    SpecialCaptchaRequired,
			Diagnostics:    diag,
		}
	}

	// 2. Email verification modal, same reasoning.
	if sig.containsPhrase(ps.EmailVerification) {
		return Outcome{
			Tag:            models.OutcomeEmailVerification,
			SlotsAvailable: true,
			SpecialCase:    SpecialEmailVerification,
			Diagnostics:    diag,
		}
	}

	// 3. IP block. A distinct failure mode, not a "no slots" state.
	if sig.BlockedIP != "" {
		diag["blocked_ip"] = sig.BlockedIP
		return Outcome{
			Tag:            models.OutcomeIPBlocked,
			SlotsAvailable: false,
			SpecialCase:    SpecialIPBlocked,
			Diagnostics:    diag,
		}
	}

	// 4. Explicit no-slots evidence.
	if sig.hasNoSlotsEvidence(ps) {
		return Outcome{
			Tag:            models.OutcomeNoSlots,
			SlotsAvailable: false,
			Diagnostics:    diag,
		}
	}

	// 5. Form reverted to its initial step. Absence of a modal here does
	// not mean slots are available.
	if sig.FormReset {
		return Outcome{
			Tag:            models.OutcomeFormReset,
			SlotsAvailable: false,
			Diagnostics:    diag,
		}
	}

	// 6. Default: no negative signal anywhere.
	return Outcome{
		Tag:            models.OutcomeSlotsFound,
		SlotsAvailable: true,
		Diagnostics:    diag,
	}
}

// containsPhrase checks the phrase against every captured text surface.
func (s *Signals) containsPhrase(phrase string) bool {
	if phrase == "" {
		return false
	}
	if strings.Contains(s.PageSource, phrase) || strings.Contains(s.BodyText, phrase) {
		return true
	}
	if s.AlertFound && strings.Contains(s.AlertText, phrase) {
		return true
	}
	for _, m := range s.ModalMatches {
		if m.Phrase == phrase {
			return true
		}
	}
	return false
}

// hasNoSlotsEvidence reports whether any probe produced a no-slots match.
func (s *Signals) hasNoSlotsEvidence(ps PhraseSet) bool {
	if s.RedTextFound {
		return true
	}
	if s.AlertFound {
		if _, ok := ps.matchNoSlots(s.AlertText); ok {
			return true
		}
	}
	for _, m := range s.ModalMatches {
		for _, phrase := range ps.NoSlots {
			if m.Phrase == phrase {
				return true
			}
		}
	}
	return false
}

func diagnostics(sig *Signals) map[string]string {
	diag := map[string]string{
		"url":   sig.URL,
		"title": sig.Title,
	}
	if sig.AlertFound {
		diag["alert_text"] = snippet(sig.AlertText)
	}
	if len(sig.ModalMatches) > 0 {
		diag["modal_matches"] = fmt.Sprintf("%d", len(sig.ModalMatches))
		diag["modal_text"] = sig.ModalMatches[0].Text
	}
	if sig.SelectDateButton != nil && sig.SelectDateButton.Found {
		diag["select_date_button"] = fmt.Sprintf("disabled=%v text=%q",
			sig.SelectDateButton.Disabled, sig.SelectDateButton.Text)
	}
	if sig.Fingerprint != 0 {
		diag["dom_fingerprint"] = fmt.Sprintf("%016x", sig.Fingerprint)
	}
	return diag
}
