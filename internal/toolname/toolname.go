// Package toolname implements the validated tool identifier format used
// throughout the dispatch pipeline: "bundle/local", where both segments are
// non-empty and drawn from [a-z0-9_].
package toolname

import (
	"fmt"
	"regexp"
)

// segmentPattern matches one bundle or local segment.
var segmentPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Name is a validated, immutable tool identifier of the form "bundle/local".
// Equality is exact string equality; use Parse to construct one.
type Name struct {
	bundle string
	local  string
}

// Parse validates s and returns a Name, or an error if s is not of the form
// "bundle/local" with both segments matching [a-z0-9_]+.
func Parse(s string) (Name, error) {
	bundle, local, ok := splitOnce(s)
	if !ok {
		return Name{}, fmt.Errorf("toolname: %q must have exactly one '/' separating bundle and local", s)
	}
	if bundle == "" || !segmentPattern.MatchString(bundle) {
		return Name{}, fmt.Errorf("toolname: invalid bundle segment %q in %q", bundle, s)
	}
	if local == "" || !segmentPattern.MatchString(local) {
		return Name{}, fmt.Errorf("toolname: invalid local segment %q in %q", local, s)
	}
	return Name{bundle: bundle, local: local}, nil
}

// MustParse parses s and panics on error. Intended for static tool
// registrations, not for user input.
func MustParse(s string) Name {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

func splitOnce(s string) (before, after string, ok bool) {
	idx := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			if idx != -1 {
				return "", "", false // more than one '/'
			}
			idx = i
		}
	}
	if idx == -1 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}

// String renders the "bundle/local" form.
func (n Name) String() string {
	if n.bundle == "" && n.local == "" {
		return ""
	}
	return n.bundle + "/" + n.local
}

// Bundle returns the bundle segment.
func (n Name) Bundle() string { return n.bundle }

// Local returns the local segment.
func (n Name) Local() string { return n.local }

// IsZero reports whether n is the zero value (never produced by Parse).
func (n Name) IsZero() bool { return n.bundle == "" && n.local == "" }

// MarshalText implements encoding.TextMarshaler so Name can round-trip
// through JSON as a plain string.
func (n Name) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Name) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
