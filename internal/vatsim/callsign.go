package vatsim

import (
	"fmt"
	"strings"
)

// Callsign is a parsed 2- or 3-segment controller callsign: PREFIX[_INFIX]_SUFFIX.
// Only Prefix and Suffix key a callsign session (§3); Infix is informational.
type Callsign struct {
	Prefix string
	Infix  string // empty when the callsign has no infix
	Suffix string
}

// String reconstructs the underscore-delimited form.
func (c Callsign) String() string {
	if c.Infix == "" {
		return c.Prefix + "_" + c.Suffix
	}
	return c.Prefix + "_" + c.Infix + "_" + c.Suffix
}

// ErrInvalidCallsign is returned for callsigns that split into fewer than 2
// or more than 3 underscore-delimited segments (§4.6 rule 1, §8 boundary).
type ErrInvalidCallsign struct {
	Raw   string
	Parts int
}

func (e *ErrInvalidCallsign) Error() string {
	return fmt.Sprintf("callsign %q has %d segments, want 2 or 3", e.Raw, e.Parts)
}

// ParseCallsign splits raw into (prefix, infix, suffix). A 1- or 4+-segment
// callsign is rejected for that record only; the snapshot as a whole is
// still processed (§4.6 rule 1, §7).
func ParseCallsign(raw string) (Callsign, error) {
	parts := strings.Split(raw, "_")
	switch len(parts) {
	case 2:
		return Callsign{Prefix: parts[0], Suffix: parts[1]}, nil
	case 3:
		return Callsign{Prefix: parts[0], Infix: parts[1], Suffix: parts[2]}, nil
	default:
		return Callsign{}, &ErrInvalidCallsign{Raw: raw, Parts: len(parts)}
	}
}
