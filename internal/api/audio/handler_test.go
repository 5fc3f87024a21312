package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"The Beginning_chunk_001.wav", "The Beginning_chunk_001.wav"},
		{`ch/apter\1:.wav`, "chapter1.wav"},
		{"  spaced  ", "spaced"},
		{"///", "audio"},
		{"Chäpter 1.wav", "Chäpter 1.wav"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, cleanFilename(tc.in), "input %q", tc.in)
	}
}
