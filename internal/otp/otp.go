// Package otp resolves one-time passwords from the sources a script can name.
package otp

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind identifies where a code comes from.
type Kind string

const (
	KindEmail     Kind = "email"
	KindSMS       Kind = "sms"
	KindClipboard Kind = "clipboard"
	KindManual    Kind = "manual"
	KindFile      Kind = "file"
)

var (
	// ErrUnsupported is returned by sources that have no integration.
	ErrUnsupported = errors.New("otp source not supported")
	// ErrNoCode means the source produced text without a 4-8 digit code.
	ErrNoCode = errors.New("no otp code found")
	// ErrInvalidCode means a manually supplied code is not 4-8 digits.
	ErrInvalidCode = errors.New("otp code must be 4-8 digits")
)

// Source describes one OTP lookup. Code is set for KindManual, Path for KindFile.
type Source struct {
	Kind Kind
	Code string
	Path string
}

func (s Source) String() string {
	switch s.Kind {
	case KindManual:
		return "manual"
	case KindFile:
		return "file " + s.Path
	default:
		return string(s.Kind)
	}
}

// ParseKind maps a script keyword (EMAIL, SMS, CLIPBOARD, FILE) to a Kind.
// MANUAL is a separate verb and is not accepted here.
func ParseKind(word string) (Kind, error) {
	switch k := Kind(strings.ToLower(word)); k {
	case KindEmail, KindSMS, KindClipboard, KindFile:
		return k, nil
	default:
		return "", fmt.Errorf("unknown otp source %q, use EMAIL, SMS, CLIPBOARD or FILE", word)
	}
}

var (
	codeRun   = regexp.MustCompile(`\d{4,8}`)
	validCode = regexp.MustCompile(`^\d{4,8}$`)
)

// Extract returns the longest match of 4 to 8 digits in text, preferring the
// earliest on ties. A longer digit run contributes its leading 8 digits.
func Extract(text string) (string, error) {
	best := ""
	for _, run := range codeRun.FindAllString(text, -1) {
		if len(run) > len(best) {
			best = run
		}
	}
	if best == "" {
		return "", ErrNoCode
	}
	return best, nil
}

// ValidateCode checks a manually supplied code.
func ValidateCode(code string) error {
	if !validCode.MatchString(code) {
		return fmt.Errorf("%w: got %q", ErrInvalidCode, code)
	}
	return nil
}
