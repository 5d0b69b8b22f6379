package detector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectCaseInsensitiveWholeWord(t *testing.T) {
	d := New([]string{"touchdown"})

	matched, terms := d.Detect("and that was a TOUCHDOWN by the home team")
	require.True(t, matched)
	require.Equal(t, []string{"touchdown"}, terms)

	// Substrings are not matches.
	matched, terms = d.Detect("the touchdowns were spectacular")
	require.False(t, matched)
	require.Nil(t, terms)
}

func TestDetectPunctuationBoundaries(t *testing.T) {
	d := New([]string{"touchdown", "fumble"})

	matched, terms := d.Detect("Touchdown! What a fumble, right?")
	require.True(t, matched)
	require.Equal(t, []string{"touchdown", "fumble"}, terms)
}

func TestDetectDeduplicatesInFirstAppearanceOrder(t *testing.T) {
	d := New([]string{"touchdown", "fumble"})

	matched, terms := d.Detect("fumble then touchdown then FUMBLE again")
	require.True(t, matched)
	require.Equal(t, []string{"fumble", "touchdown"}, terms)
}

func TestDetectApostrophes(t *testing.T) {
	d := New([]string{"don't"})
	matched, terms := d.Detect("I said DON'T do that")
	require.True(t, matched)
	require.Equal(t, []string{"don't"}, terms)
}

func TestDetectEmptyAndCleanText(t *testing.T) {
	d := New([]string{"touchdown"})

	matched, terms := d.Detect("")
	require.False(t, matched)
	require.Nil(t, terms)

	matched, terms = d.Detect("   \t  ")
	require.False(t, matched)
	require.Nil(t, terms)

	matched, terms = d.Detect("a perfectly ordinary sentence")
	require.False(t, matched)
	require.Nil(t, terms)
}

func TestTermMutation(t *testing.T) {
	d := New([]string{"Alpha", "  beta "})
	require.Equal(t, []string{"alpha", "beta"}, d.Terms())

	d.AddTerms("Gamma", "", "beta")
	require.Equal(t, []string{"alpha", "beta", "gamma"}, d.Terms())

	d.RemoveTerms("ALPHA")
	require.Equal(t, []string{"beta", "gamma"}, d.Terms())

	matched, _ := d.Detect("alpha is fine now")
	require.False(t, matched)
	matched, _ = d.Detect("but gamma is not")
	require.True(t, matched)
}
