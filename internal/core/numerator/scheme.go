// Package numerator provides domain contracts for bill numbering.
//
// A bill number has the shape <ActorTag>/<ActorPrefix>/<NNNN>, e.g. U7/ALX/0042.
// The first two segments form the scope; the counter is monotonically
// increasing within a scope and zero-padded to at least four digits so that
// numbers of the same width sort lexicographically.
package numerator

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// ActorTagPrefix disambiguates actor ids from literal text.
	ActorTagPrefix = "U"

	// PrefixWidth is the exact rune length of the name segment.
	PrefixWidth = 3

	// PadRune fills short names on the right.
	PadRune = 'X'

	// MinDigits is the minimum width of the counter segment.
	MinDigits = 4

	// Separator joins the segments.
	Separator = "/"
)

// Scope identifies one numbering sequence: (ActorTag, ActorPrefix).
type Scope struct {
	Tag    string
	Prefix string
}

// NewScope derives the numbering scope of an actor.
// Empty id and empty name degrade to "U" and "XXX".
func NewScope(actorID, actorName string) Scope {
	return Scope{
		Tag:    ActorTagPrefix + strings.TrimSpace(actorID),
		Prefix: namePrefix(actorName),
	}
}

func namePrefix(name string) string {
	upper := cases.Upper(language.Und).String(strings.TrimSpace(name))
	upper = strings.ReplaceAll(upper, Separator, string(PadRune))

	runes := []rune(upper)
	if len(runes) > PrefixWidth {
		runes = runes[:PrefixWidth]
	}
	for len(runes) < PrefixWidth {
		runes = append(runes, PadRune)
	}
	return string(runes)
}

// Key returns the bill number prefix shared by every number of the scope,
// including the trailing separator (e.g. "U7/ALX/").
func (s Scope) Key() string {
	return s.Tag + Separator + s.Prefix + Separator
}

// String implements fmt.Stringer.
func (s Scope) String() string {
	return s.Key()
}

// Format renders counter n within the scope.
// Padding is a minimum: values above 9999 widen naturally.
func (s Scope) Format(n int64) string {
	return fmt.Sprintf("%s%0*d", s.Key(), MinDigits, n)
}

// ParseCounter extracts the trailing counter of a bill number.
// Returns 0 when the number has no parsable numeric tail.
func ParseCounter(billNumber string) int64 {
	idx := strings.LastIndex(billNumber, Separator)
	if idx < 0 || idx == len(billNumber)-1 {
		return 0
	}
	n, err := strconv.ParseInt(billNumber[idx+1:], 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
