// Package validator checks text entering the agent and normalises model output.
package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// spaceRegexp is compiled once at package init and reused across all Sanitize calls.
var spaceRegexp = regexp.MustCompile(`[ \t\f\v]+`)

// blankLinesRegexp collapses runs of blank lines left over from email bodies.
var blankLinesRegexp = regexp.MustCompile(`\n{3,}`)

// DefaultMaxLength fits a formatted email with a generous body.
const DefaultMaxLength = 20000

type InputValidator struct {
	maxLength int
	minLength int
}

func NewInputValidator() *InputValidator {
	return &InputValidator{
		maxLength: DefaultMaxLength,
		minLength: 1,
	}
}

// NewInputValidatorWithLimits overrides the accepted length range.
func NewInputValidatorWithLimits(minLength, maxLength int) *InputValidator {
	v := NewInputValidator()
	if minLength > 0 {
		v.minLength = minLength
	}
	if maxLength > 0 {
		v.maxLength = maxLength
	}
	return v
}

func (v *InputValidator) Validate(query string) error {
	if !utf8.ValidString(query) {
		return errors.New("invalid UTF-8 encoding")
	}

	if strings.TrimSpace(query) == "" {
		return errors.New("query is empty")
	}

	if len(query) < v.minLength {
		return fmt.Errorf("query too short: minimum %d characters", v.minLength)
	}

	if len(query) > v.maxLength {
		return fmt.Errorf("query too long: maximum %d characters", v.maxLength)
	}

	return nil
}

// Sanitize trims the query and collapses horizontal whitespace. Line breaks
// are kept since email headers and bodies rely on them.
func (v *InputValidator) Sanitize(query string) string {
	query = strings.ReplaceAll(query, "\r\n", "\n")
	query = strings.ReplaceAll(query, "\r", "\n")

	lines := strings.Split(query, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRegexp.ReplaceAllString(line, " "))
	}
	query = strings.Join(lines, "\n")
	query = blankLinesRegexp.ReplaceAllString(query, "\n\n")
	return strings.TrimSpace(query)
}
