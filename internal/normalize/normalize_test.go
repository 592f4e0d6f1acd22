package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Abbey Road", "abbey road"},
		{"  ABBEY   road ", "abbey road"},
		{"Abbey Road!", "abbey road"},
		{"Abbey Road (Remastered)", "abbey road remastered"},
		{"AC/DC", "acdc"},
		{"a - b", "a b"},
		{"Guns N' Roses", "guns n roses"},
		{"Sigur Rós", "sigur rós"},
		{"Beyoncé", "beyoncé"},
		{"tab\tand\nnewline", "tab and newline"},
		{"null\x00byte", "nullbyte"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Text(tt.input))
		})
	}
}

func TestText_Idempotent(t *testing.T) {
	inputs := []string{
		"Abbey Road (Remastered 2009)",
		"a - b",
		"  Sgt. Pepper's Lonely Hearts Club Band ",
		"Beyoncé",
		"R&B / Soul",
	}
	for _, in := range inputs {
		once := Text(in)
		assert.Equal(t, once, Text(once), "input %q", in)
	}
}

func TestText_ComposedAndDecomposedMatch(t *testing.T) {
	// "é" precomposed vs "e" + combining acute accent.
	assert.Equal(t, Text("Beyonc\u00e9"), Text("Beyonce\u0301"))
}

func TestYear(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1969-09-26", "1969"},
		{"1969", "1969"},
		{"Released 2003", "2003"},
		{"26/09/1969", "1969"},
		{"12345", "1234"},
		{"69", ""},
		{"", ""},
		{"n/a", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Year(tt.input))
		})
	}
}

func TestCacheKey_VariantsCollapse(t *testing.T) {
	want := CacheKey("Abbey Road", "The Beatles", "1969")

	variants := []struct{ name, artist, date string }{
		{"abbey road", "the beatles", "1969"},
		{"ABBEY  ROAD", "The Beatles ", "1969-09-26"},
		{"Abbey Road!", "The Beatles", "Sept 1969"},
	}
	for _, v := range variants {
		assert.Equal(t, want, CacheKey(v.name, v.artist, v.date))
	}

	assert.Equal(t, Key{Name: "abbey road", Artist: "the beatles", Year: "1969"}, want)
}

func TestKey_WithoutYear(t *testing.T) {
	k := CacheKey("Abbey Road", "The Beatles", "1969")
	assert.Equal(t, Key{Name: "abbey road", Artist: "the beatles"}, k.WithoutYear())
	assert.Equal(t, "abbey road / the beatles (1969)", k.String())
	assert.Equal(t, "abbey road / the beatles", k.WithoutYear().String())
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("Abbey Road (Remastered 2009)", "abbey road"))
	assert.True(t, Matches("The Beatles", "Beatles"))
	assert.True(t, Matches("AC/DC", "acdc"))
	assert.False(t, Matches("Let It Be", "Abbey Road"))
	assert.False(t, Matches("", "Abbey Road"))
	assert.False(t, Matches("!!!", "???"))
}

func TestIsMissing(t *testing.T) {
	assert.True(t, IsMissing(""))
	assert.True(t, IsMissing("   "))
	assert.True(t, IsMissing("undefined"))
	assert.True(t, IsMissing("null"))
	assert.False(t, IsMissing("rock"))
	assert.False(t, IsMissing("https://example.com/a.jpg"))
}
