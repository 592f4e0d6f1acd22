package genre

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hip Hop", "hip-hop"},
		{"R&B", "r-b"},
		{"Drum 'n' Bass", "drum-n-bass"},
		{"Électronique", "electronique"},
		{"  --  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "hip hop", Canonical("Hip-Hop"))
	assert.Equal(t, "hip hop", Canonical("hiphop"))
	assert.Equal(t, "r&b", Canonical("RnB"))
	assert.Equal(t, "rock and roll", Canonical("Rock 'n' Roll"))
	assert.Equal(t, "shoegaze", Canonical("  Shoegaze "))
	assert.Equal(t, "art rock", Canonical("Art   Rock"))
	assert.Equal(t, "", Canonical("!!"))
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name     string
		tags     []string
		limit    int
		expected string
	}{
		{
			name:     "truncates to limit",
			tags:     []string{"rock", "pop", "jazz", "blues"},
			limit:    3,
			expected: "rock, pop, jazz",
		},
		{
			name:     "default limit is three",
			tags:     []string{"rock", "pop", "jazz", "blues"},
			expected: "rock, pop, jazz",
		},
		{
			name:     "dedupes aliases",
			tags:     []string{"Hip-Hop", "hip hop", "Rap", "soul"},
			limit:    3,
			expected: "hip hop, soul",
		},
		{
			name:     "drops folksonomy tags",
			tags:     []string{"seen live", "british", "Psychedelic Rock", "60s"},
			limit:    3,
			expected: "psychedelic rock",
		},
		{
			name:     "empty input",
			tags:     nil,
			limit:    3,
			expected: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Flatten(tt.tags, tt.limit))
		})
	}
}
