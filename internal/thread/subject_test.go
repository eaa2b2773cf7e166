package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
)

func TestStripReplyPrefixes(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		expected string
	}{
		{"no prefix", "Quarterly report", "Quarterly report"},
		{"single re", "Re: Quarterly report", "Quarterly report"},
		{"uppercase re", "RE: Quarterly report", "Quarterly report"},
		{"stacked prefixes", "Re: RE: Fwd: Quarterly report", "Quarterly report"},
		{"fw prefix", "FW: Quarterly report", "Quarterly report"},
		{"no space after colon", "Re:Quarterly report", "Quarterly report"},
		{"keeps casing", "Re: QUARTERLY Report", "QUARTERLY Report"},
		{"re inside subject untouched", "Measure: Re-evaluation", "Measure: Re-evaluation"},
		{"surrounding whitespace", "  Re: Quarterly report  ", "Quarterly report"},
		{"empty subject", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripReplyPrefixes(tt.subject))
		})
	}
}

func TestNormalizeSubject(t *testing.T) {
	// All casing and prefix variants of one subject must collapse to the
	// same thread key.
	variants := []string{
		"Homework question",
		"Re: Homework question",
		"RE: homework question",
		"Fwd: Re: HOMEWORK QUESTION",
		"  re:  Homework Question",
	}

	for _, v := range variants {
		assert.Equal(t, "homework question", NormalizeSubject(v), "variant %q", v)
	}

	assert.NotEqual(t, NormalizeSubject("Homework question"), NormalizeSubject("Homework questions"))
}

func TestIsOwnAddress(t *testing.T) {
	account := &models.MailAccount{FromAddress: "support@example.com"}

	tests := []struct {
		name     string
		from     string
		expected bool
	}{
		{"bare match", "support@example.com", true},
		{"case variant", "Support@Example.COM", true},
		{"with display name", "Support Desk <support@example.com>", true},
		{"different address", "student@example.com", false},
		{"different domain", "support@other.com", false},
		{"empty from", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsOwnAddress(tt.from, account))
		})
	}

	assert.False(t, IsOwnAddress("support@example.com", nil), "nil account is never own")
}
