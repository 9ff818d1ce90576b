// Package formfill drives the booking form: consulate and visa-type
// dropdowns, the mapped text fields, consent checkboxes, and textareas.
// Every fill step is best-effort; a missing field is skipped, not an error.
package formfill

import (
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/embassy-watch/embassy-eye/applicant"
)

// fieldKind selects the fill strategy for one mapped field.
type fieldKind int

const (
	kindText fieldKind = iota
	kindBirthDate
	kindCheckbox
)

type field struct {
	id    string
	kind  fieldKind
	value func(*applicant.Data) string
}

// fieldMap lists the booking form's known fields by element id.
var fieldMap = []field{
	{"label4", kindText, func(d *applicant.Data) string { return d.Name }},
	{"birthDate", kindBirthDate, func(d *applicant.Data) string { return d.DateOfBirth }},
	{"label6", kindText, func(d *applicant.Data) string { return d.Applicants }},
	{"label9", kindText, func(d *applicant.Data) string { return d.Phone }},
	{"label10", kindText, func(d *applicant.Data) string { return d.Email }},
	{"label1000", kindText, func(d *applicant.Data) string { return d.ResidencePermit }},
	{"label1001", kindText, func(d *applicant.Data) string { return d.Citizenship }},
	{"label1002", kindText, func(d *applicant.Data) string { return d.Passport }},
	{"label1003", kindText, func(d *applicant.Data) string { return d.ResidentialCommunity }},
	{"slabel13", kindCheckbox, nil},
	{"label13", kindCheckbox, nil},
}

// Filler fills the booking form for one applicant.
type Filler struct {
	// CharDelay is the per-character typing delay.
	CharDelay time.Duration
	// Consulate is the radio option text in the consulate dropdown.
	Consulate string
	// VisaType is the option label text in the visa-type dropdown.
	VisaType string
}

// Fill fills every recognized field and returns the number filled. Zero
// means the form likely never rendered.
func (f *Filler) Fill(page *rod.Page, data *applicant.Data) int {
	f.selectConsulate(page)
	f.selectVisaType(page)
	f.fillSelects(page)

	filled := 0
	filled += f.fillReenterEmail(page, data.Email)
	for _, fld := range fieldMap {
		switch fld.kind {
		case kindCheckbox:
			filled += f.fillCheckbox(page, fld.id)
		case kindBirthDate:
			filled += f.fillBirthDate(page, data)
		default:
			filled += f.fillText(page, fld.id, fld.value(data))
		}
	}
	filled += f.fillRemainingCheckboxes(page)
	filled += f.fillTextareas(page, data.Message)
	return filled
}

// ClickNext clicks the form's submit button.
func (f *Filler) ClickNext(page *rod.Page) error {
	el, err := page.Timeout(5 * time.Second).ElementR("button", "/next|tovább/i")
	if err != nil {
		el, err = page.Timeout(3 * time.Second).Element(`button[type="submit"]`)
		if err != nil {
			return fmt.Errorf("next button not found: %w", err)
		}
	}
	if scrollErr := el.ScrollIntoView(); scrollErr != nil {
		slog.Debug("scroll to next button failed", "error", scrollErr)
	}
	pause(300*time.Millisecond, 700*time.Millisecond)
	if clickErr := el.Click(proto.InputMouseButtonLeft, 1); clickErr != nil {
		// Some overlays eat pointer events; a JS click bypasses them.
		if _, evalErr := el.Eval(`() => this.click()`); evalErr != nil {
			return fmt.Errorf("next button click failed: %w", clickErr)
		}
	}
	return nil
}

// selectConsulate opens the consulate dropdown and picks the configured
// office via its radio option.
func (f *Filler) selectConsulate(page *rod.Page) {
	dropdown, err := page.Timeout(3 * time.Second).Element(`[name*="ugyfelszolgalat"]`)
	if err != nil {
		slog.Debug("consulate dropdown not found", "error", err)
		return
	}
	jsClick(dropdown)
	time.Sleep(time.Second)

	radio := f.findRadioByLabel(page, f.Consulate)
	if radio == nil {
		slog.Warn("consulate option not found", "option", f.Consulate)
		return
	}
	jsClick(radio)
	pause(300*time.Millisecond, 600*time.Millisecond)
}

// selectVisaType opens the visa-type dropdown, checks the configured option
// and confirms with the Save button.
func (f *Filler) selectVisaType(page *rod.Page) {
	label, err := page.Timeout(3 * time.Second).ElementR("label", jsPattern(f.VisaType))
	if err != nil {
		slog.Debug("visa type label not found", "error", err)
		return
	}

	// The dropdown trigger sits in the label's closest dropdown ancestor.
	trigger, err := label.Eval(`() => {
		let node = this.closest('[class*="dropdown"], [aria-haspopup="true"], [aria-expanded]');
		if (!node) return false;
		const btn = node.querySelector('button, input[type="button"], [role="button"]');
		(btn || node).click();
		return true;
	}`)
	if err != nil || !trigger.Value.Bool() {
		slog.Debug("visa type dropdown trigger not found")
	}
	time.Sleep(1500 * time.Millisecond)

	forID, attrErr := label.Attribute("for")
	if attrErr != nil || forID == nil || *forID == "" {
		return
	}
	input, err := page.Timeout(2 * time.Second).Element("#" + cssEscape(*forID))
	if err != nil {
		slog.Debug("visa type input not found", "id", *forID)
		return
	}
	if checked, propErr := input.Property("checked"); propErr != nil || !checked.Bool() {
		jsClick(input)
	}
	pause(300*time.Millisecond, 600*time.Millisecond)

	if save, saveErr := page.Timeout(2 * time.Second).ElementR("button", "/save|mentés/i"); saveErr == nil {
		jsClick(save)
		time.Sleep(time.Second)
	}
}

// fillSelects picks the first real option of every plain <select>, skipping
// the placeholder.
func (f *Filler) fillSelects(page *rod.Page) {
	selects, err := page.Elements("select")
	if err != nil {
		return
	}
	for _, sel := range selects {
		_, evalErr := sel.Eval(`() => {
			if (this.options.length > 1) {
				this.selectedIndex = 1;
			} else if (this.options.length === 1) {
				this.selectedIndex = 0;
			} else {
				return;
			}
			this.dispatchEvent(new Event('change', { bubbles: true }));
		}`)
		if evalErr != nil {
			continue
		}
		pause(200*time.Millisecond, 500*time.Millisecond)
	}
}

// fillReenterEmail handles the paste-blocked confirmation field. The value
// is typed character by character and verified afterwards; dropped
// characters are topped up once.
func (f *Filler) fillReenterEmail(page *rod.Page, email string) int {
	label, err := page.Timeout(2 * time.Second).ElementR("label", "/re-?enter/i")
	if err != nil {
		return 0
	}
	forID, attrErr := label.Attribute("for")
	if attrErr != nil || forID == nil || *forID == "" {
		return 0
	}
	input, err := page.Timeout(2 * time.Second).Element("#" + cssEscape(*forID))
	if err != nil {
		return 0
	}
	if visible, visErr := input.Visible(); visErr != nil || !visible {
		return 0
	}

	if _, evalErr := input.Eval(`() => { this.removeAttribute('onpaste'); this.value = ''; }`); evalErr != nil {
		return 0
	}
	if focusErr := input.Focus(); focusErr != nil {
		slog.Debug("focus re-enter email failed", "error", focusErr)
	}

	f.typeChars(input, email)
	time.Sleep(300 * time.Millisecond)

	got, propErr := input.Property("value")
	if propErr != nil {
		return 0
	}
	if got.Str() == email {
		return 1
	}
	// Top up dropped characters once.
	if actual := got.Str(); len(actual) < len(email) && strings.HasPrefix(email, actual) {
		f.typeChars(input, email[len(actual):])
		time.Sleep(300 * time.Millisecond)
		if got, propErr = input.Property("value"); propErr == nil && got.Str() == email {
			return 1
		}
	}
	return 0
}

func (f *Filler) fillText(page *rod.Page, id, value string) int {
	input, err := page.Timeout(2 * time.Second).Element("#" + cssEscape(id))
	if err != nil {
		return 0
	}
	if visible, visErr := input.Visible(); visErr != nil || !visible {
		return 0
	}
	// Paste-blocked fields are handled by fillReenterEmail.
	if onpaste, attrErr := input.Attribute("onpaste"); attrErr == nil && onpaste != nil {
		return 0
	}

	if _, evalErr := input.Eval(`() => { this.value = ''; }`); evalErr != nil {
		return 0
	}
	if inputErr := input.Input(value); inputErr != nil {
		// Fallback: set the value directly and fire the framework events.
		if _, evalErr := input.Eval(`(v) => {
			this.value = v;
			this.dispatchEvent(new Event('input', { bubbles: true }));
			this.dispatchEvent(new Event('change', { bubbles: true }));
		}`, value); evalErr != nil {
			return 0
		}
	}
	pause(300*time.Millisecond, 700*time.Millisecond)
	return 1
}

func (f *Filler) fillBirthDate(page *rod.Page, data *applicant.Data) int {
	input, err := page.Timeout(2 * time.Second).Element("#birthDate")
	if err != nil {
		return 0
	}
	if _, evalErr := input.Eval(`() => { this.value = ''; }`); evalErr != nil {
		return 0
	}
	if inputErr := input.Input(data.DateOfBirth); inputErr != nil {
		return 0
	}
	// The visible input is backed by a date picker component holding the
	// ISO value.
	if picker, pickerErr := page.Timeout(time.Second).Element("#birthDateComponent"); pickerErr == nil {
		_, _ = picker.Eval(`(v) => {
			this.value = v;
			this.dispatchEvent(new Event('change', { bubbles: true }));
		}`, data.DateOfBirthISO)
	}
	pause(200*time.Millisecond, 400*time.Millisecond)
	return 1
}

func (f *Filler) fillCheckbox(page *rod.Page, id string) int {
	box, err := page.Timeout(2 * time.Second).Element("#" + cssEscape(id))
	if err != nil {
		return 0
	}
	if visible, visErr := box.Visible(); visErr != nil || !visible {
		return 0
	}
	if checked, propErr := box.Property("checked"); propErr == nil && checked.Bool() {
		return 0
	}
	if clickErr := box.Click(proto.InputMouseButtonLeft, 1); clickErr != nil {
		jsClick(box)
	}
	pause(200*time.Millisecond, 400*time.Millisecond)
	return 1
}

// fillRemainingCheckboxes ticks visible unchecked checkboxes the field map
// does not know about.
func (f *Filler) fillRemainingCheckboxes(page *rod.Page) int {
	known := make(map[string]bool, len(fieldMap))
	for _, fld := range fieldMap {
		known[fld.id] = true
	}

	boxes, err := page.Elements(`input[type="checkbox"]`)
	if err != nil {
		return 0
	}
	filled := 0
	for _, box := range boxes {
		id, attrErr := box.Attribute("id")
		if attrErr == nil && id != nil && known[*id] {
			continue
		}
		if visible, visErr := box.Visible(); visErr != nil || !visible {
			continue
		}
		if checked, propErr := box.Property("checked"); propErr != nil || checked.Bool() {
			continue
		}
		if clickErr := box.Click(proto.InputMouseButtonLeft, 1); clickErr != nil {
			continue
		}
		filled++
		pause(200*time.Millisecond, 400*time.Millisecond)
	}
	return filled
}

func (f *Filler) fillTextareas(page *rod.Page, message string) int {
	areas, err := page.Elements("textarea")
	if err != nil {
		return 0
	}
	filled := 0
	for _, area := range areas {
		if visible, visErr := area.Visible(); visErr != nil || !visible {
			continue
		}
		if _, evalErr := area.Eval(`() => { this.value = ''; }`); evalErr != nil {
			continue
		}
		if inputErr := area.Input(message); inputErr != nil {
			continue
		}
		filled++
		pause(200*time.Millisecond, 500*time.Millisecond)
	}
	return filled
}

// findRadioByLabel locates a radio input via its label text, falling back
// to scanning the radios' parent text.
func (f *Filler) findRadioByLabel(page *rod.Page, text string) *rod.Element {
	if label, err := page.Timeout(2 * time.Second).ElementR("label", jsPattern(text)); err == nil {
		if forID, attrErr := label.Attribute("for"); attrErr == nil && forID != nil && *forID != "" {
			if radio, radioErr := page.Timeout(time.Second).Element("#" + cssEscape(*forID)); radioErr == nil {
				return radio
			}
		}
	}

	radios, err := page.Elements(`input[type="radio"]`)
	if err != nil {
		return nil
	}
	for _, radio := range radios {
		res, evalErr := radio.Eval(`(t) => this.parentElement && this.parentElement.textContent.includes(t)`, text)
		if evalErr == nil && res.Value.Bool() {
			return radio
		}
	}
	return nil
}

func (f *Filler) typeChars(el *rod.Element, text string) {
	for _, r := range text {
		if err := el.Input(string(r)); err != nil {
			return
		}
		time.Sleep(f.CharDelay)
	}
}

func jsClick(el *rod.Element) {
	_, _ = el.Eval(`() => this.click()`)
}

// jsPattern builds a case-insensitive JS regex literal matching text.
func jsPattern(text string) string {
	return "/" + regexp.QuoteMeta(text) + "/i"
}

var reCSSUnsafe = regexp.MustCompile(`([^a-zA-Z0-9_-])`)

// cssEscape escapes an element id for use in a selector. The visa-type
// dropdowns use UUID ids which are safe, but ids are site-controlled.
func cssEscape(id string) string {
	return reCSSUnsafe.ReplaceAllString(id, `\$1`)
}

// pause sleeps a random duration in [min, max).
func pause(min, max time.Duration) {
	time.Sleep(min + time.Duration(rand.Int63n(int64(max-min))))
}
