package applicant

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	d, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if !regexp.MustCompile(`^[A-Za-z]+ [A-Za-z]+$`).MatchString(d.Name) {
		t.Errorf("Name = %q, want two alphabetic words", d.Name)
	}

	handle := strings.ToLower(strings.ReplaceAll(d.Name, " ", "."))
	if !strings.HasPrefix(d.Email, handle) {
		t.Errorf("Email = %q, want prefix %q", d.Email, handle)
	}
	if !strings.Contains(d.Email, "@") {
		t.Errorf("Email = %q, missing @", d.Email)
	}

	if !regexp.MustCompile(`^\+361\d{7}$`).MatchString(d.Phone) {
		t.Errorf("Phone = %q, want +361 followed by 7 digits", d.Phone)
	}

	if !regexp.MustCompile(`^[A-Z]{2}\d{6}$`).MatchString(d.Passport) {
		t.Errorf("Passport = %q, want 2 letters + 6 digits", d.Passport)
	}

	if !regexp.MustCompile(`^\d{9}$`).MatchString(d.ResidencePermit) {
		t.Errorf("ResidencePermit = %q, want 9 digits", d.ResidencePermit)
	}

	dob, err := time.Parse("02/01/2006", d.DateOfBirth)
	if err != nil {
		t.Fatalf("DateOfBirth %q does not parse: %v", d.DateOfBirth, err)
	}
	if dob.Year() < 1960 || dob.Year() > 2002 {
		t.Errorf("DateOfBirth year = %d, want within [1960, 2002]", dob.Year())
	}
	if got := dob.Format("2006-01-02"); got != d.DateOfBirthISO {
		t.Errorf("DateOfBirthISO = %q, want %q", d.DateOfBirthISO, got)
	}

	if d.Applicants != "1" {
		t.Errorf("Applicants = %q, want %q", d.Applicants, "1")
	}
}

func TestGenerateVariesBetweenCalls(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		d, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		seen[d.Name+d.Email+d.Passport] = true
	}
	if len(seen) < 2 {
		t.Error("10 generated identities were all identical")
	}
}
