// Package applicant generates synthetic applicant identities for the
// booking form. Field values are randomized per run so repeated checks do
// not submit identical data.
package applicant

import (
	"fmt"
	"strings"
	"time"

	"github.com/mazen160/go-random"
)

var firstNames = []string{
	"Marko", "Nikola", "Jelena", "Mila", "Sara", "Luka", "Stefan", "Ana",
	"Ivana", "Petar", "Milan", "Dragan", "Zoran", "Dejan", "Nenad", "Bojan",
	"Vladimir", "Aleksandar", "Milos", "Dusan", "Jovana", "Milica", "Tamara",
	"Jasmina", "Snezana", "Natasa", "Marija", "Katarina", "Aleksandra",
	"Ivan", "Dmitri", "Alexander", "Sergei", "Andrei", "Mikhail", "Alexei",
	"Nikolai", "Pavel", "Yuri", "Maxim", "Anton", "Roman", "Igor", "Elena",
	"Maria", "Anna", "Olga", "Tatiana", "Natalia", "Svetlana", "Irina",
	"Ekaterina", "Yulia", "Anastasia", "Daria", "Victoria", "Kristina", "Marina",
}

var lastNames = []string{
	"Petrovic", "Jovanovic", "Markovic", "Nikolic", "Ilic", "Kovacevic",
	"Stankovic", "Milosevic", "Savic", "Filipovic", "Djordjevic", "Pavlovic",
	"Lazic", "Stefanovic", "Mitic", "Radic", "Popovic", "Tomic", "Vukovic",
	"Zivkovic", "Simic", "Maric", "Jankovic", "Ristic", "Mladenovic",
	"Stojanovic", "Bogdanovic", "Cvetkovic", "Kostic", "Djuric",
	"Ivanov", "Petrov", "Sidorov", "Smirnov", "Kuznetsov", "Popov", "Sokolov",
	"Lebedev", "Kozlov", "Novikov", "Morozov", "Volkov", "Alekseev", "Romanov",
	"Orlov", "Pavlov", "Semenov", "Stepanov", "Nikolaev", "Ivanova", "Petrova",
	"Smirnova", "Kuznetsova", "Popova", "Sokolova", "Lebedeva", "Novikova",
}

var emailDomains = []string{"example.com", "mail.com", "inbox.eu", "test.org"}

// Data is one synthetic applicant identity.
type Data struct {
	Name                 string
	Email                string
	Phone                string
	DateOfBirth          string // dd/mm/yyyy, as typed into the form
	DateOfBirthISO       string
	Passport             string
	ResidencePermit      string
	Citizenship          string
	ResidentialCommunity string
	Applicants           string
	Message              string
}

// Generate builds a fresh applicant identity.
func Generate() (*Data, error) {
	name := fmt.Sprintf("%s %s", pick(firstNames), pick(lastNames))

	handle := strings.ToLower(strings.ReplaceAll(name, " ", "."))
	suffix, err := random.IntRange(10, 10000)
	if err != nil {
		return nil, fmt.Errorf("generate email suffix: %w", err)
	}
	email := fmt.Sprintf("%s%d@%s", handle, suffix, pick(emailDomains))

	phoneDigits, err := fromCharset(digits, 7)
	if err != nil {
		return nil, fmt.Errorf("generate phone: %w", err)
	}

	passLetters, err := fromCharset(uppercase, 2)
	if err != nil {
		return nil, fmt.Errorf("generate passport letters: %w", err)
	}
	passDigits, err := fromCharset(digits, 6)
	if err != nil {
		return nil, fmt.Errorf("generate passport digits: %w", err)
	}

	permit, err := fromCharset(digits, 9)
	if err != nil {
		return nil, fmt.Errorf("generate residence permit: %w", err)
	}

	dob, err := randomBirthDate(1960, 2002)
	if err != nil {
		return nil, err
	}

	return &Data{
		Name:                 name,
		Email:                email,
		Phone:                "+361" + phoneDigits,
		DateOfBirth:          dob.Format("02/01/2006"),
		DateOfBirthISO:       dob.Format("2006-01-02"),
		Passport:             passLetters + passDigits,
		ResidencePermit:      permit,
		Citizenship:          "Russian Federation",
		ResidentialCommunity: "Novi Sad",
		Applicants:           "1",
		Message:              "Test message",
	}, nil
}

func randomBirthDate(startYear, endYear int) (time.Time, error) {
	start := time.Date(startYear, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(endYear, 12, 31, 0, 0, 0, 0, time.UTC)
	days := int(end.Sub(start).Hours() / 24)
	n, err := random.IntRange(0, days+1)
	if err != nil {
		return time.Time{}, fmt.Errorf("generate birth date: %w", err)
	}
	return start.AddDate(0, 0, n), nil
}

func pick(list []string) string {
	i, err := random.IntRange(0, len(list))
	if err != nil {
		return list[0]
	}
	return list[i]
}

const (
	digits    = "0123456789"
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

func fromCharset(charset string, length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := random.IntRange(0, len(charset))
		if err != nil {
			return "", err
		}
		b.WriteByte(charset[n])
	}
	return b.String(), nil
}
