package template

import "fmt"

// MissingAction specifies how to handle placeholders whose path is absent.
type MissingAction int

const (
	// MissingKeep leaves the placeholder in the output. Default.
	MissingKeep MissingAction = iota

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty

	// MissingError keeps the placeholder and returns UndefinedVariableError.
	MissingError
)

// ParseMissingAction accepts "keep", "empty" or "error". Empty means keep.
func ParseMissingAction(s string) (MissingAction, error) {
	switch s {
	case "", "keep":
		return MissingKeep, nil
	case "empty":
		return MissingEmpty, nil
	case "error":
		return MissingError, nil
	default:
		return MissingKeep, fmt.Errorf("unknown missing action %q", s)
	}
}

// Option configures an Expander.
type Option func(*Expander)

// WithMissingAction sets how missing paths are handled.
func WithMissingAction(action MissingAction) Option {
	return func(e *Expander) {
		e.missingAction = action
	}
}
