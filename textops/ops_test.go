package textops

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texttools/common"
)

func TestStats(t *testing.T) {
	got := Stats("Hello, Cartesi!")

	sum := sha256.Sum256([]byte("Hello, Cartesi!"))
	want := StatsResult{
		Op:     "stats",
		Text:   "Hello, Cartesi!",
		Words:  2,
		Chars:  15,
		SHA256: hex.EncodeToString(sum[:]),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestStats_Properties(t *testing.T) {
	texts := []string{
		"",
		"   ",
		"one",
		"  leading and trailing  ",
		"tabs\tand\nnewlines\r\nmixed",
		"ação é ótima",
	}
	for _, text := range texts {
		res, ok := Stats(text).(StatsResult)
		require.True(t, ok)

		sum := sha256.Sum256([]byte(text))
		assert.Equal(t, len(strings.Fields(text)), res.Words, "words for %q", text)
		assert.Equal(t, utf8.RuneCountInString(text), res.Chars, "chars for %q", text)
		assert.Equal(t, hex.EncodeToString(sum[:]), res.SHA256, "sha256 for %q", text)
	}
}

func TestStats_EmptyText(t *testing.T) {
	res := Stats("").(StatsResult)
	assert.Equal(t, 0, res.Words)
	assert.Equal(t, 0, res.Chars)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", res.SHA256)
}

func TestShout(t *testing.T) {
	cases := map[string]string{
		"Hello, Cartesi!": "HELLO, CARTESI!",
		"":                "",
		"123 abc !?":      "123 ABC !?",
		"ação":            "AÇÃO",
		"straße":          "STRASSE",
	}
	for in, want := range cases {
		got := Shout(in).(ShoutResult)
		assert.Equal(t, "shout", got.Op)
		assert.Equal(t, want, got.Text, "shout(%q)", in)
	}
}

func TestPalindrome(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"A man, a plan, a canal: Panama", true},
		{"Cartesi", false},
		{"", true},
		{"!!! ...", true},
		{"No 'x' in Nixon", true},
		{"12321", true},
		{"123", false},
		{"Socorram-me, subi no ônibus em Marrocos", false},
		{"ΣΑΣ", true},
		{"Σας", false},
	}
	for _, tc := range cases {
		got := Palindrome(tc.text).(PalindromeResult)
		assert.Equal(t, tc.want, got.IsPalindrome, "palindrome(%q)", tc.text)
		assert.Equal(t, tc.text, got.Text)
		assert.Equal(t, "palindrome", got.Op)
	}
}

func TestOperations_Idempotent(t *testing.T) {
	for _, fn := range []Func{Stats, Shout, Palindrome} {
		for _, text := range []string{"", "Hello, Cartesi!", "ação"} {
			a, err := common.EncodePayload(fn(text))
			require.NoError(t, err)
			b, err := common.EncodePayload(fn(text))
			require.NoError(t, err)
			assert.Equal(t, a, b)
		}
	}
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "stats", OpStats.String())
	assert.Equal(t, "shout", OpShout.String())
	assert.Equal(t, "palindrome", OpPalindrome.String())
	assert.Equal(t, "unknown", Op(42).String())
}
