package validate

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Echo adapts go-playground/validator to echo's Validator interface.
type Echo struct {
	v *validator.Validate
}

// NewEcho constructs the request validator used by the HTTP server.
func NewEcho() *Echo {
	return &Echo{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator.
func (e *Echo) Validate(i any) error {
	return e.v.Struct(i)
}

// Per-country phone formats. Numbers are normalized to E.164 before
// storage; a bare 10-digit NANP number is accepted and prefixed.
var phonePatterns = map[string]*regexp.Regexp{
	"CA": regexp.MustCompile(`^\+1[2-9]\d{9}$`),
	"US": regexp.MustCompile(`^\+1[2-9]\d{9}$`),
	"GB": regexp.MustCompile(`^\+44\d{10}$`),
	"AU": regexp.MustCompile(`^\+61\d{9}$`),
}

var nonPhone = regexp.MustCompile(`[\s().-]`)

// Phone normalizes and validates a phone number for the given country.
// It returns the E.164 form, or ok=false when the number does not match
// the country's pattern. An empty country defaults to CA.
func Phone(raw, country string) (string, bool) {
	if country == "" {
		country = "CA"
	}
	pattern, ok := phonePatterns[strings.ToUpper(country)]
	if !ok {
		return "", false
	}

	n := nonPhone.ReplaceAllString(strings.TrimSpace(raw), "")
	if n == "" {
		return "", false
	}
	if !strings.HasPrefix(n, "+") {
		if len(n) == 10 && (strings.ToUpper(country) == "CA" || strings.ToUpper(country) == "US") {
			n = "+1" + n
		} else {
			n = "+" + n
		}
	}
	if !pattern.MatchString(n) {
		return "", false
	}
	return n, true
}

var (
	usZip    = regexp.MustCompile(`^\d{5}$`)
	caPostal = regexp.MustCompile(`^[A-Z]\d[A-Z]\d[A-Z]\d$`)
)

// Postal normalizes a postal code (uppercase, spaces stripped) and
// reports whether it is a 5-digit ZIP or a Canadian A1A1A1 code.
func Postal(raw string) (string, bool) {
	p := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	if usZip.MatchString(p) || caPostal.MatchString(p) {
		return p, true
	}
	return "", false
}
