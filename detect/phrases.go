// Package detect turns a rendered booking page into a single run outcome.
// Signal extraction and classification are separate steps: extraction reads
// the page (live probes or captured HTML) into an immutable Signals snapshot,
// and Classify maps that snapshot to exactly one outcome.
package detect

import (
	"regexp"
	"strings"
)

// PhraseSet holds the site-specific text markers the extractor matches
// against. All matching is case-insensitive substring search on lower-cased
// text; callers supply phrases in lower case.
//
// Substring matching is deliberately fragile: if the site changes language
// or wording, negative signals stop matching and classification degrades to
// the default positive branch. The set is injectable so a wording change is
// a config update, not a code change.
type PhraseSet struct {
	// NoSlots are the "all slots busy" modal texts.
	NoSlots []string
	// Captcha is the modal text shown when a slot attempt hits the hCaptcha
	// checkpoint. The checkpoint only renders when slots exist.
	Captcha string
	// EmailVerification is the modal text asking for an emailed code, shown
	// only when a booking attempt progressed past slot selection.
	EmailVerification string
	// FormReset are markers of the initial consulate-selection step,
	// indicating the form silently reverted instead of progressing.
	FormReset []string
	// IPBlocked extracts the blocked address from the site's block notice.
	// Must have one capture group containing the IPv4 address.
	IPBlocked *regexp.Regexp
}

// DefaultPhrases matches the konzinfobooking site's English wording.
func DefaultPhrases() PhraseSet {
	return PhraseSet{
		NoSlots: []string{
			"no appointments available",
			"currently no appointments",
			"no appointments",
		},
		Captcha:           "hcaptcha has to be checked",
		EmailVerification: "to proceed with your booking, you need to enter the code that is sent to the provided email address",
		FormReset: []string{
			"please choose an option from the list",
			"select the office where you wish to submit your application",
		},
		IPBlocked: regexp.MustCompile(`your ip \((\d{1,3}(?:\.\d{1,3}){3})\) has been blocked`),
	}
}

// matchNoSlots reports whether any no-slots phrase occurs in text.
// Text must already be lower-cased.
func (p PhraseSet) matchNoSlots(text string) (string, bool) {
	for _, phrase := range p.NoSlots {
		if strings.Contains(text, phrase) {
			return phrase, true
		}
	}
	return "", false
}

func (p PhraseSet) matchFormReset(text string) bool {
	for _, phrase := range p.FormReset {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// matchAny returns the first known phrase found in text, checking the
// captcha and email-verification phrases before the no-slots set.
func (p PhraseSet) matchAny(text string) (string, bool) {
	if p.Captcha != "" && strings.Contains(text, p.Captcha) {
		return p.Captcha, true
	}
	if p.EmailVerification != "" && strings.Contains(text, p.EmailVerification) {
		return p.EmailVerification, true
	}
	return p.matchNoSlots(text)
}

// extractBlockedIP returns the blocked IPv4 address mentioned in text, or "".
func (p PhraseSet) extractBlockedIP(text string) string {
	if p.IPBlocked == nil || text == "" {
		return ""
	}
	m := p.IPBlocked.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
