package fusion

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/cases"

	"github.com/sells-group/dossier-cli/internal/model"
)

var foldCaser = cases.Fold()

// NormalizePhone reduces a phone number to a canonical comparison key.
// Numbers that parse as valid NANP get E.164 form; anything else falls back
// to digits-only so near-duplicates from sloppy providers still collide.
func NormalizePhone(raw string) string {
	num, err := phonenumbers.Parse(raw, "US")
	if err == nil && phonenumbers.IsValidNumber(num) {
		return phonenumbers.Format(num, phonenumbers.E164)
	}

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeEmail trims whitespace and case-folds the domain part. The local
// part is preserved byte-for-byte except for fold-casing: providers disagree
// on case but mail servers rarely do.
func NormalizeEmail(raw string) string {
	e := strings.TrimSpace(raw)
	at := strings.LastIndex(e, "@")
	if at < 0 {
		return foldCaser.String(e)
	}
	return foldCaser.String(e[:at]) + "@" + foldCaser.String(e[at+1:])
}

// Normalize returns the comparison key for a candidate value of the given
// fact type.
func Normalize(t model.FactType, raw string) string {
	switch t {
	case model.FactPhone:
		return NormalizePhone(raw)
	case model.FactEmail:
		return NormalizeEmail(raw)
	default:
		return strings.TrimSpace(strings.ToLower(raw))
	}
}
