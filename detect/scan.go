package detect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Precompiled element matchers.
var (
	selAlert = cascadia.MustCompile(`[role="alert"]`)
	selRed   = cascadia.MustCompile(`[style*="color:red"], [style*="color: red"]`)
	selModal = cascadia.MustCompile(`div.modal-body`)
	selDivs  = cascadia.MustCompile(`div[class*="modal"]`)
)

const snippetLen = 200

// ScanHTML builds a Signals snapshot from captured page source. It is a pure
// function and never fails: unparseable HTML degrades to text-only signals.
//
// Visibility cannot be computed from static HTML, so elements carrying an
// inline display:none are skipped and everything else counts as visible.
func ScanHTML(src string, ps PhraseSet) *Signals {
	sig := &Signals{
		PageSource:  strings.ToLower(src),
		Fingerprint: FingerprintPage(src),
	}
	sig.BodyText = strings.ToLower(visibleText(src))

	sig.BlockedIP = ps.extractBlockedIP(sig.PageSource)
	if sig.BlockedIP == "" {
		sig.BlockedIP = ps.extractBlockedIP(sig.BodyText)
	}
	sig.FormReset = ps.matchFormReset(sig.BodyText)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return sig
	}
	sig.Title = strings.TrimSpace(doc.Find("title").First().Text())

	// Alert probe.
	doc.FindMatcher(selAlert).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if inlineHidden(sel) {
			return true
		}
		sig.AlertFound = true
		sig.AlertText = strings.ToLower(strings.TrimSpace(sel.Text()))
		return false
	})

	// Red-text probe. Only phrase-bearing red elements count.
	doc.FindMatcher(selRed).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if inlineHidden(sel) {
			return true
		}
		if _, ok := ps.matchNoSlots(strings.ToLower(sel.Text())); ok {
			sig.RedTextFound = true
			return false
		}
		return true
	})

	// Modal-body probe.
	doc.FindMatcher(selModal).Each(func(_ int, sel *goquery.Selection) {
		if inlineHidden(sel) {
			return
		}
		appendModalMatch(sig, ps, sel)
	})

	// Fallback: body text carries a no-slots phrase but no modal-body
	// matched. Confirm against any modal-classed div before trusting it.
	if len(sig.ModalMatches) == 0 && !sig.RedTextFound {
		if _, ok := ps.matchNoSlots(sig.BodyText); ok {
			doc.FindMatcher(selDivs).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				if inlineHidden(sel) {
					return true
				}
				return !appendModalMatch(sig, ps, sel)
			})
		}
	}

	return sig
}

// appendModalMatch records the container if its text matches a known phrase.
func appendModalMatch(sig *Signals, ps PhraseSet, sel *goquery.Selection) bool {
	text := strings.ToLower(strings.TrimSpace(sel.Text()))
	if text == "" {
		return false
	}
	phrase, ok := ps.matchAny(text)
	if !ok {
		return false
	}
	sig.ModalMatches = append(sig.ModalMatches, ModalMatch{
		Text:   snippet(text),
		Phrase: phrase,
	})
	return true
}

func inlineHidden(sel *goquery.Selection) bool {
	style, _ := sel.Attr("style")
	style = strings.ToLower(style)
	return strings.Contains(style, "display:none") || strings.Contains(style, "display: none")
}

func snippet(text string) string {
	if len(text) <= snippetLen {
		return text
	}
	return text[:snippetLen]
}

// visibleText extracts the visible text from within <body>, stripping tags
// and <script>/<style> content.
func visibleText(src string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(src))
	var buf strings.Builder
	inBody := false
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return buf.String()
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "body":
				inBody = true
			case "script", "style", "noscript":
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if inBody && skipDepth == 0 {
				text := strings.TrimSpace(string(tokenizer.Text()))
				if text != "" {
					buf.WriteString(text)
					buf.WriteByte(' ')
				}
			}
		}
	}
}
