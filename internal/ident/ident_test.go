package ident

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomPartLengthAndAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		part := RandomPart(6)
		require.Len(t, part, 6)
		for _, r := range part {
			require.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
		}
	}
}

func TestRandomPartVaries(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		seen[RandomPart(8)] = true
	}
	require.Greater(t, len(seen), 1)
}

func TestAlphabetOmitsAmbiguousRunes(t *testing.T) {
	for _, r := range "0O1I" {
		require.NotContains(t, alphabet, string(r))
	}
}
