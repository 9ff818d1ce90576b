package detect

// ModalMatch records one visible modal-body container whose text matched a
// known phrase.
type ModalMatch struct {
	// Text is a snippet of the modal's visible text, lower-cased.
	Text string
	// Phrase is the phrase that matched.
	Phrase string
}

// ButtonState describes the date-selection button, captured for diagnostics.
type ButtonState struct {
	Found    bool
	Disabled bool
	Text     string
}

// Signals is an immutable snapshot of one rendered page, taken after the
// submit click and the modal settle delay. Absence of an element is a normal
// signal (zero value), never an error. Classify only reads it.
type Signals struct {
	// PageSource is the full page source, lower-cased.
	PageSource string
	// BodyText is the visible <body> text, lower-cased.
	BodyText string

	// AlertFound is set when a visible role="alert" element was present
	// within the alert wait window; AlertText carries its text, lower-cased.
	AlertFound bool
	AlertText  string

	// RedTextFound is set when a visible red-styled element contained a
	// no-slots phrase.
	RedTextFound bool

	// ModalMatches lists visible modal-body containers that matched a
	// known phrase, in document order.
	ModalMatches []ModalMatch

	// BlockedIP is the address extracted from the site's IP-block notice,
	// or "" when no notice was present.
	BlockedIP string

	// FormReset is set when the page shows its initial consulate-selection
	// step again after submission.
	FormReset bool

	// SelectDateButton is diagnostic only and never drives classification.
	SelectDateButton *ButtonState

	URL   string
	Title string

	// Fingerprint is a structural hash of the page DOM, recorded so
	// operators can spot site redesigns that would silently break the
	// phrase matching.
	Fingerprint uint64
}

// HasModalEvidence reports whether any explicit modal-shaped element backed
// the snapshot: an alert region, a red-text match, or a modal-body match.
// A positive classification without such evidence is weak and worth one
// reload before trusting it.
func (s *Signals) HasModalEvidence() bool {
	return s.AlertFound || s.RedTextFound || len(s.ModalMatches) > 0
}
