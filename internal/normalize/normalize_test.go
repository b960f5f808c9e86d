package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyStripsPunctuationAndLowercases(t *testing.T) {
	n := New(0, FormNone)

	key, ok := n.Key([]string{"The", "Cat", "Sat."})
	require.True(t, ok)
	assert.Equal(t, "the cat sat", key)

	key, ok = n.Key([]string{"The", "Cat", "Sat", "."})
	require.True(t, ok)
	assert.Equal(t, "the cat sat", key)

	key, ok = n.Key([]string{"你好", "，", "世界", "。"})
	require.True(t, ok)
	assert.Equal(t, "你好 世界", key)
}

func TestApplyIsIdempotent(t *testing.T) {
	inputs := []string{
		"The Cat Sat.",
		"  \"Hello,\"  she said -- quietly!  ",
		"Ünïcödé Wörds, (with) [brackets]",
		"",
		"...",
	}
	for _, form := range []UnicodeForm{FormNone, FormNFC, FormNFKC} {
		n := New(0, form)
		for _, in := range inputs {
			once := n.Apply(in)
			assert.Equal(t, once, n.Apply(once), "form=%s input=%q", form, in)
			key, _ := n.Key(strings.Fields(once))
			assert.Equal(t, once, key)
		}
	}
}

func TestMinWordsFilter(t *testing.T) {
	n := New(3, FormNone)

	_, ok := n.Key([]string{"two", "words"})
	assert.False(t, ok, "sentence below the minimum must be dropped")

	key, ok := n.Key([]string{"exactly", "three", "words"})
	require.True(t, ok, "sentence at the minimum must be kept")
	assert.Equal(t, "exactly three words", key)

	_, ok = n.Key([]string{"two", "words", "!"})
	assert.False(t, ok, "punctuation tokens do not count as words")
}

func TestKeysDropsFilteredSentences(t *testing.T) {
	n := New(2, FormNone)
	keys := n.Keys([][]string{
		{"The", "Cat", "Sat."},
		{"Hi"},
		{"the", "cat", "sat"},
	})
	assert.Equal(t, []string{"the cat sat", "the cat sat"}, keys)
}

func TestUnfilteredKeepsEmptyKeys(t *testing.T) {
	n := New(0, FormNone)
	key, ok := n.Key([]string{"!", "?"})
	require.True(t, ok)
	assert.Equal(t, "", key)
}

func TestNFKCFoldsFullWidthForms(t *testing.T) {
	n := New(0, FormNFKC)
	assert.Equal(t, "abc def", n.Apply("ＡＢＣ　ＤＥＦ。"))
}

func TestParseForm(t *testing.T) {
	f, err := ParseForm("NFKC")
	require.NoError(t, err)
	assert.Equal(t, FormNFKC, f)

	f, err = ParseForm("")
	require.NoError(t, err)
	assert.Equal(t, FormNone, f)

	_, err = ParseForm("nfd")
	assert.Error(t, err)
}
