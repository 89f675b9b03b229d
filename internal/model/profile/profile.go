package profile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("profile not found")
	ErrAlreadyExists = errors.New("profile already exists")
	ErrInvalidValue  = errors.New("parameter value must be true or false")
)

// Profile is a named set of boolean-valued permissions.
type Profile struct {
	ProfileName string            `json:"profileName"`
	Parameters  map[string]string `json:"parameters"`
}

// Clone returns a copy whose Parameters map does not alias p's.
func (p Profile) Clone() Profile {
	return Profile{ProfileName: p.ProfileName, Parameters: cloneParameters(p.Parameters)}
}

// Decision is the outcome of checking a single permission.
type Decision int

const (
	DecisionUndetermined Decision = iota
	DecisionFalse
	DecisionTrue
)

func (d Decision) String() string {
	switch d {
	case DecisionTrue:
		return "true"
	case DecisionFalse:
		return "false"
	default:
		return "undetermined"
	}
}

// Allowed reports whether the decision grants the permission.
func (d Decision) Allowed() bool { return d == DecisionTrue }

// ParseValue parses a permission value. Only "true" and "false" are accepted,
// case-insensitively and ignoring surrounding whitespace.
func ParseValue(raw string) (bool, error) {
	v := strings.TrimSpace(raw)
	switch {
	case strings.EqualFold(v, "true"):
		return true, nil
	case strings.EqualFold(v, "false"):
		return false, nil
	}
	return false, fmt.Errorf("%w: got %q", ErrInvalidValue, raw)
}

// FormatValue renders b in the canonical stored form.
func FormatValue(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// NormalizeParameters validates every value and returns a fresh map holding
// the canonical lowercase form. The input is never modified.
func NormalizeParameters(params map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(params))
	for key, raw := range params {
		b, err := ParseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", key, err)
		}
		out[key] = FormatValue(b)
	}
	return out, nil
}

// Seed provides the built-in profiles every store starts with.
func Seed() []Profile {
	return []Profile{
		{
			ProfileName: "Admin",
			Parameters:  map[string]string{"CanEdit": "true", "CanDelete": "true"},
		},
		{
			ProfileName: "User",
			Parameters:  map[string]string{"CanEdit": "false", "CanDelete": "false"},
		},
	}
}

func cloneParameters(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
