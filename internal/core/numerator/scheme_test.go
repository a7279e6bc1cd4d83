package numerator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewScope(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		display string
		wantKey string
	}{
		{"empty actor", "", "", "U/XXX/"},
		{"short name padded", "7", "al", "U7/ALX/"},
		{"long name truncated", "3", "john", "U3/JOH/"},
		{"exact width", "12", "Bob", "U12/BOB/"},
		{"whitespace trimmed", " 5 ", "  ann ", "U5/ANN/"},
		{"separator in name", "9", "a/b", "U9/AXB/"},
		{"unicode upper", "4", "émile", "U4/ÉMI/"},
		{"missing id keeps name", "", "zoe", "U/ZOE/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKey, NewScope(tt.id, tt.display).Key())
		})
	}
}

func TestScope_Format(t *testing.T) {
	s := NewScope("7", "al")
	assert.Equal(t, "U7/ALX/0001", s.Format(1))
	assert.Equal(t, "U7/ALX/9999", s.Format(9999))
	assert.Equal(t, "U7/ALX/10000", s.Format(10000))
}

func TestParseCounter(t *testing.T) {
	tests := map[string]int64{
		"U7/ALX/0042":  42,
		"U7/ALX/10000": 10000,
		"U/XXX/0001":   1,
		"U7/ALX/":      0,
		"U7/ALX/abc":   0,
		"garbage":      0,
		"":             0,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseCounter(in), in)
	}
}

func TestFormatParse_RoundTrip(t *testing.T) {
	s := NewScope("3", "john")
	for _, n := range []int64{1, 99, 9999, 12345} {
		assert.Equal(t, n, ParseCounter(s.Format(n)))
	}
}
