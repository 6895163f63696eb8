package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrInvalidFormat is returned when a prompt is not "<name> <quantity>".
	ErrInvalidFormat = errors.New("prompt must be a name followed by a quantity")
	// ErrEmptyName is returned when the prompt carries only a quantity.
	ErrEmptyName = fmt.Errorf("%w: customer name is empty", ErrInvalidFormat)
	// ErrMissingSelection is returned when a write names no product.
	ErrMissingSelection = errors.New("no product selected")
)

var promptPattern = regexp.MustCompile(`^(.*?)\s*(\d+)$`)

// Prompt is a parsed order-entry line.
type Prompt struct {
	Name     string
	Quantity int
}

// ParsePrompt parses "<name> <digits>". The trailing run of digits is the
// quantity and everything before it, trimmed, is the name. Only the first
// character of the name is upper-cased. A quantity of zero is accepted.
func ParsePrompt(text string) (Prompt, error) {
	m := promptPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Prompt{}, ErrInvalidFormat
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return Prompt{}, ErrEmptyName
	}
	qty, err := strconv.Atoi(m[2])
	if err != nil {
		return Prompt{}, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return Prompt{Name: capitalizeFirst(name), Quantity: qty}, nil
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
