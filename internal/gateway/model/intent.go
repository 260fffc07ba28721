package model

import (
	"fmt"
	"strings"
)

// Intent is the discrete category assigned to a user query. The set is
// closed: every turn resolves to exactly one member or fails with
// ErrUnknownIntent before any handler runs.
type Intent string

const (
	IntentBook     Intent = "book"
	IntentPersonal Intent = "personal"
	IntentWeather  Intent = "weather"
	IntentStock    Intent = "stock"
	IntentImage    Intent = "image"
	IntentNews     Intent = "news"
)

// Intents lists every member of the closed set, in classifier-prompt order.
func Intents() []Intent {
	return []Intent{IntentBook, IntentPersonal, IntentWeather, IntentStock, IntentImage, IntentNews}
}

// ErrUnknownIntent reports a classifier output outside the closed set.
type ErrUnknownIntent struct {
	Label string
}

func (e *ErrUnknownIntent) Error() string {
	return fmt.Sprintf("unrecognized intent label %q", e.Label)
}

// ParseIntent normalises a raw classifier output (whitespace trimmed,
// case-folded) and matches it against the closed set. Anything else is an
// ErrUnknownIntent, never a silent coercion.
func ParseIntent(raw string) (Intent, error) {
	label := strings.ToLower(strings.TrimSpace(raw))
	switch Intent(label) {
	case IntentBook:
		return IntentBook, nil
	case IntentPersonal:
		return IntentPersonal, nil
	case IntentWeather:
		return IntentWeather, nil
	case IntentStock:
		return IntentStock, nil
	case IntentImage:
		return IntentImage, nil
	case IntentNews:
		return IntentNews, nil
	default:
		return "", &ErrUnknownIntent{Label: label}
	}
}

// ToolEligible reports whether the intent goes through the tool-call
// round trip rather than a direct synthesis step.
func (i Intent) ToolEligible() bool {
	switch i {
	case IntentWeather, IntentStock, IntentImage:
		return true
	default:
		return false
	}
}

func (i Intent) String() string {
	return string(i)
}
