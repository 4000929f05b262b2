package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/dossier-cli/internal/model"
)

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"(212) 555-0142", "+12125550142"},
		{"212-555-0142", "+12125550142"},
		{"212.555.0142", "+12125550142"},
		{"+1 212 555 0142", "+12125550142"},
		{"12125550142", "+12125550142"},
		// Unparseable numbers fall back to digits-only.
		{"ext 99", "99"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in), "input %q", tt.in)
	}
}

func TestNormalizePhoneFormatsCollide(t *testing.T) {
	t.Parallel()
	a := NormalizePhone("(212) 555-0142")
	b := NormalizePhone("212.555.0142")
	assert.Equal(t, a, b, "same number in different formats must normalize identically")
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Bob@Example.COM", "bob@example.com"},
		{"  jane@acme.io  ", "jane@acme.io"},
		{"no-at-sign", "no-at-sign"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeEmail(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeDispatch(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "+12125550142", Normalize(model.FactPhone, "(212) 555-0142"))
	assert.Equal(t, "bob@example.com", Normalize(model.FactEmail, "Bob@EXAMPLE.com"))
}
