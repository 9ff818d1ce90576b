package detect

import (
	"testing"

	"github.com/embassy-watch/embassy-eye/models"
)

func TestClassifyPriority(t *testing.T) {
	ps := DefaultPhrases()

	tests := []struct {
		name        string
		sig         *Signals
		wantTag     string
		wantSlots   bool
		wantSpecial string
	}{
		{
			name:        "empty signals default to slots found",
			sig:         &Signals{},
			wantTag:     models.OutcomeSlotsFound,
			wantSlots:   true,
			wantSpecial: "",
		},
		{
			name: "captcha phrase in page source",
			sig: &Signals{
				PageSource: "something something hcaptcha has to be checked something",
			},
			wantTag:     models.OutcomeCaptcha,
			wantSlots:   true,
			wantSpecial: SpecialCaptchaRequired,
		},
		{
			name: "captcha phrase in alert text only",
			sig: &Signals{
				AlertFound: true,
				AlertText:  "the hcaptcha has to be checked before proceeding",
			},
			wantTag:     models.OutcomeCaptcha,
			wantSlots:   true,
			wantSpecial: SpecialCaptchaRequired,
		},
		{
			name: "captcha phrase in modal match only",
			sig: &Signals{
				ModalMatches: []ModalMatch{{Text: "...", Phrase: ps.Captcha}},
			},
			wantTag:     models.OutcomeCaptcha,
			wantSlots:   true,
			wantSpecial: SpecialCaptchaRequired,
		},
		{
			name: "captcha wins over ip block",
			sig: &Signals{
				PageSource: "hcaptcha has to be checked",
				BlockedIP:  "203.0.113.5",
			},
			wantTag:     models.OutcomeCaptcha,
			wantSlots:   true,
			wantSpecial: SpecialCaptchaRequired,
		},
		{
			name: "captcha wins over no-slots modal",
			sig: &Signals{
				PageSource:   "hcaptcha has to be checked",
				RedTextFound: true,
			},
			wantTag:     models.OutcomeCaptcha,
			wantSlots:   true,
			wantSpecial: SpecialCaptchaRequired,
		},
		{
			name: "email verification phrase",
			sig: &Signals{
				BodyText: "to proceed with your booking, you need to enter the code that is sent to the provided email address",
			},
			wantTag:     models.OutcomeEmailVerification,
			wantSlots:   true,
			wantSpecial: SpecialEmailVerification,
		},
		{
			name: "email verification wins over ip block",
			sig: &Signals{
				BodyText:  "to proceed with your booking, you need to enter the code that is sent to the provided email address",
				BlockedIP: "203.0.113.5",
			},
			wantTag:     models.OutcomeEmailVerification,
			wantSlots:   true,
			wantSpecial: SpecialEmailVerification,
		},
		{
			name: "ip block alone",
			sig: &Signals{
				BlockedIP: "203.0.113.5",
			},
			wantTag:     models.OutcomeIPBlocked,
			wantSlots:   false,
			wantSpecial: SpecialIPBlocked,
		},
		{
			name: "ip block wins over no-slots modal",
			sig: &Signals{
				BlockedIP:    "203.0.113.5",
				RedTextFound: true,
			},
			wantTag:     models.OutcomeIPBlocked,
			wantSlots:   false,
			wantSpecial: SpecialIPBlocked,
		},
		{
			name: "no-slots via alert text",
			sig: &Signals{
				AlertFound: true,
				AlertText:  "there are currently no appointments available",
			},
			wantTag:   models.OutcomeNoSlots,
			wantSlots: false,
		},
		{
			name: "no-slots via red text",
			sig: &Signals{
				RedTextFound: true,
			},
			wantTag:   models.OutcomeNoSlots,
			wantSlots: false,
		},
		{
			name: "no-slots via modal body match",
			sig: &Signals{
				ModalMatches: []ModalMatch{{Text: "no appointments available", Phrase: "no appointments available"}},
			},
			wantTag:   models.OutcomeNoSlots,
			wantSlots: false,
		},
		{
			name: "alert without negative phrase does not mean no slots",
			sig: &Signals{
				AlertFound: true,
				AlertText:  "your session will expire soon",
			},
			wantTag:   models.OutcomeSlotsFound,
			wantSlots: true,
		},
		{
			name: "form reset overrides the positive default",
			sig: &Signals{
				FormReset: true,
			},
			wantTag:   models.OutcomeFormReset,
			wantSlots: false,
		},
		{
			name: "no-slots evidence wins over form reset",
			sig: &Signals{
				RedTextFound: true,
				FormReset:    true,
			},
			wantTag:   models.OutcomeNoSlots,
			wantSlots: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.sig, ps)
			if got.Tag != tt.wantTag {
				t.Errorf("Tag = %q, want %q", got.Tag, tt.wantTag)
			}
			if got.SlotsAvailable != tt.wantSlots {
				t.Errorf("SlotsAvailable = %v, want %v", got.SlotsAvailable, tt.wantSlots)
			}
			if got.SpecialCase != tt.wantSpecial {
				t.Errorf("SpecialCase = %q, want %q", got.SpecialCase, tt.wantSpecial)
			}
			if got.Diagnostics == nil {
				t.Error("Diagnostics is nil, want a populated map")
			}
		})
	}
}

func TestClassifyBlockedIPDiagnostics(t *testing.T) {
	got := Classify(&Signals{BlockedIP: "203.0.113.5"}, DefaultPhrases())
	if got.Diagnostics["blocked_ip"] != "203.0.113.5" {
		t.Errorf("diagnostics blocked_ip = %q, want %q", got.Diagnostics["blocked_ip"], "203.0.113.5")
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	ps := DefaultPhrases()
	sig := &Signals{
		PageSource: "hcaptcha has to be checked",
		BlockedIP:  "198.51.100.7",
		FormReset:  true,
	}
	first := Classify(sig, ps)
	for i := 0; i < 5; i++ {
		if got := Classify(sig, ps); got.Tag != first.Tag {
			t.Fatalf("classification changed between calls: %q vs %q", got.Tag, first.Tag)
		}
	}
}

func TestHasModalEvidence(t *testing.T) {
	tests := []struct {
		name string
		sig  *Signals
		want bool
	}{
		{"empty", &Signals{}, false},
		{"alert", &Signals{AlertFound: true}, true},
		{"red text", &Signals{RedTextFound: true}, true},
		{"modal match", &Signals{ModalMatches: []ModalMatch{{}}}, true},
		{"page text only", &Signals{PageSource: "no appointments"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sig.HasModalEvidence(); got != tt.want {
				t.Errorf("HasModalEvidence() = %v, want %v", got, tt.want)
			}
		})
	}
}
