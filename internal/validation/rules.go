// Package validation checks form values before any mutating backend call.
// A Rule is a pure function of the value; rules other than Required,
// Password and Custom accept the empty string so optional fields pass.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Result is the verdict of one rule. Message is set even when IsValid is
// true so callers can show a hint; Validate clears it on success.
type Result struct {
	IsValid bool   `json:"is_valid"`
	Message string `json:"message,omitempty"`
}

// Rule validates a single field value.
type Rule func(value string) Result

// Clock returns the evaluation time for date rules.
type Clock func() time.Time

var (
	emailPattern     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneSeparators  = regexp.MustCompile(`[\s\-\(\)]`)
	phonePattern     = regexp.MustCompile(`^[\+]?[1-9][\d]{0,15}$`)
	urlPattern       = regexp.MustCompile(`^https?://.+`)
	upperPattern     = regexp.MustCompile(`[A-Z]`)
	lowerPattern     = regexp.MustCompile(`[a-z]`)
	digitPattern     = regexp.MustCompile(`\d`)
	specialPattern   = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

const minPasswordChars = 8

// dateLayouts covers RFC 3339 plus the values date and datetime-local
// inputs produce. Naive values are read in the rule's location.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func result(ok bool, message string) Result {
	return Result{IsValid: ok, Message: message}
}

// Required rejects the empty string.
func Required(value string) Result {
	return result(value != "", "This field is required")
}

func Email(value string) Result {
	return result(value == "" || emailPattern.MatchString(value), "Please enter a valid email address")
}

// Phone strips spaces, dashes and parentheses before matching a loose
// international digit pattern.
func Phone(value string) Result {
	if value == "" {
		return result(true, "Please enter a valid phone number")
	}
	stripped := phoneSeparators.ReplaceAllString(value, "")
	return result(phonePattern.MatchString(stripped), "Please enter a valid phone number")
}

// MinLength counts characters, not bytes.
func MinLength(n int) Rule {
	msg := fmt.Sprintf("Must be at least %d characters long", n)
	return func(value string) Result {
		return result(value == "" || len([]rune(value)) >= n, msg)
	}
}

func MaxLength(n int) Rule {
	msg := fmt.Sprintf("Must be no more than %d characters long", n)
	return func(value string) Result {
		return result(value == "" || len([]rune(value)) <= n, msg)
	}
}

// Pattern matches value against re. An empty message defaults to "Invalid format".
func Pattern(re *regexp.Regexp, message string) Rule {
	if message == "" {
		message = "Invalid format"
	}
	return func(value string) Result {
		return result(value == "" || re.MatchString(value), message)
	}
}

func Date(value string) Result {
	_, ok := ParseDate(value, time.Local)
	return result(value == "" || ok, "Please enter a valid date")
}

// FutureDate requires a parseable date strictly after clock(). Naive
// values are read in the clock's zone.
func FutureDate(clock Clock) Rule {
	now := clockOrNow(clock)
	return func(value string) Result {
		if value == "" {
			return result(true, "Date must be in the future")
		}
		current := now()
		t, ok := ParseDate(value, current.Location())
		return result(ok && t.After(current), "Date must be in the future")
	}
}

// PastDate requires a parseable date strictly before clock(), reading
// naive values in the clock's zone.
func PastDate(clock Clock) Rule {
	now := clockOrNow(clock)
	return func(value string) Result {
		if value == "" {
			return result(true, "Date must be in the past")
		}
		current := now()
		t, ok := ParseDate(value, current.Location())
		return result(ok && t.Before(current), "Date must be in the past")
	}
}

func Number(value string) Result {
	_, ok := parseNumber(value)
	return result(value == "" || ok, "Please enter a valid number")
}

func PositiveNumber(value string) Result {
	if value == "" {
		return result(true, "Please enter a positive number")
	}
	n, ok := parseNumber(value)
	return result(ok && n > 0, "Please enter a positive number")
}

func URL(value string) Result {
	return result(value == "" || urlPattern.MatchString(value), "Please enter a valid URL")
}

// Password requires upper and lower case letters, a digit, a special
// character and at least eight characters.
func Password(value string) Result {
	ok := upperPattern.MatchString(value) &&
		lowerPattern.MatchString(value) &&
		digitPattern.MatchString(value) &&
		specialPattern.MatchString(value) &&
		len([]rune(value)) >= minPasswordChars
	return result(ok, "Password must contain uppercase, lowercase, number, special character, and be at least 8 characters")
}

// ConfirmPassword compares against the value returned by match at
// evaluation time, so it follows edits to the password field.
func ConfirmPassword(match func() string) Rule {
	return func(value string) Result {
		return result(value == "" || value == match(), "Passwords do not match")
	}
}

// Custom wraps an arbitrary predicate. It is evaluated even for empty values.
func Custom(pred func(string) bool, message string) Rule {
	if message == "" {
		message = "Invalid value"
	}
	return func(value string) Result {
		return result(pred(value), message)
	}
}

// OneOf restricts a value to a fixed enumeration.
func OneOf(allowed ...string) Rule {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	msg := "Must be one of: " + strings.Join(allowed, ", ")
	return func(value string) Result {
		_, ok := set[value]
		return result(value == "" || ok, msg)
	}
}

// IntRange requires a whole number within [lo, hi].
func IntRange(lo, hi int) Rule {
	msg := fmt.Sprintf("Must be a whole number between %d and %d", lo, hi)
	return func(value string) Result {
		if value == "" {
			return result(true, msg)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		return result(err == nil && n >= lo && n <= hi, msg)
	}
}

// Validate applies rules in order and returns the first failure.
func Validate(value string, rules ...Rule) Result {
	for _, rule := range rules {
		if r := rule(value); !r.IsValid {
			return r
		}
	}
	return Result{IsValid: true}
}

// ParseDate parses RFC 3339 or a naive date/datetime in loc.
func ParseDate(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseNumber(value string) (float64, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, true
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func clockOrNow(clock Clock) Clock {
	if clock == nil {
		return time.Now
	}
	return clock
}
