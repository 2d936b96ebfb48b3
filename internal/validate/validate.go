// Package validate runs per-field rule tables over request payloads.
//
// A rule set is a plain slice of Rule values; Run evaluates every rule and
// collects the messages of those that fail, keyed by field name.
package validate

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Rule checks one field of a T.
type Rule[T any] struct {
	Field   string
	Check   func(T) bool
	Message string
}

// Errors maps a field name to its failure messages, in rule order.
type Errors map[string][]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f)
		b.WriteString(": ")
		b.WriteString(strings.Join(e[f], ", "))
	}
	return b.String()
}

// Run evaluates rules against v. It returns nil when every rule passes.
func Run[T any](v T, rules []Rule[T]) error {
	errs := Errors{}
	for _, r := range rules {
		if !r.Check(v) {
			errs[r.Field] = append(errs[r.Field], r.Message)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Required reports whether s has non-blank content.
func Required(s string) bool { return strings.TrimSpace(s) != "" }

// MaxLen reports whether s has at most n characters.
func MaxLen(s string, n int) bool { return utf8.RuneCountInString(s) <= n }

// IsUUID reports whether s is a canonical UUID.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// OneOf reports whether v is one of allowed.
func OneOf[T comparable](v T, allowed ...T) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// StrongPassword requires at least 8 characters with an upper-case
// letter, a lower-case letter and a digit.
func StrongPassword(s string) bool {
	if utf8.RuneCountInString(s) < 8 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}
