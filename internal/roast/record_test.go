package roast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidLine(t *testing.T) {
	rec, ok := Parse("alice$EXAMPLE.COM$a1b2c3")
	require.True(t, ok)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "EXAMPLE.COM", rec.Realm)
	assert.Equal(t, "a1b2c3", rec.Cipher)
	assert.False(t, rec.ObservedAt.IsZero())
}

func TestParseTrimsSurroundingWhitespace(t *testing.T) {
	rec, ok := Parse("  alice$EXAMPLE.COM$a1b2c3\r")
	require.True(t, ok)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "a1b2c3", rec.Cipher)
}

func TestParseRejectsWrongFieldCount(t *testing.T) {
	for _, line := range []string{
		"",
		"   ",
		"alice",
		"alice$EXAMPLE.COM",
		"alice$EXAMPLE.COM$cipher$extra",
		"a$b$c$d$e",
	} {
		rec, ok := Parse(line)
		assert.False(t, ok, "line %q must not parse", line)
		assert.Nil(t, rec)
	}
}

func TestParseAcceptsEmptySegments(t *testing.T) {
	// A structurally valid split parses even when a field is empty; the
	// parser never judges field content.
	rec, ok := Parse("bob$EXAMPLE.COM$")
	require.True(t, ok)
	assert.Equal(t, "bob", rec.Username)
	assert.Equal(t, "EXAMPLE.COM", rec.Realm)
	assert.Equal(t, "", rec.Cipher)
}
