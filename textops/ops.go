// Package textops holds the pure text operations the DApp exposes.
//
// The set is closed: every operation is an Op value resolved once through
// a Registry, and names outside the set are an UnsupportedOperationError.
package textops

import (
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"

	sha256 "github.com/minio/sha256-simd"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Op identifies one supported operation.
type Op int

const (
	OpStats Op = iota + 1
	OpShout
	OpPalindrome
)

var opNames = map[Op]string{
	OpStats:      "stats",
	OpShout:      "shout",
	OpPalindrome: "palindrome",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "unknown"
}

// StatsResult is the notice produced by "stats".
type StatsResult struct {
	Op     string `json:"op"`
	Text   string `json:"text"`
	Words  int    `json:"words"`
	Chars  int    `json:"chars"`
	SHA256 string `json:"sha256"`
}

// ShoutResult is the notice produced by "shout".
type ShoutResult struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

// PalindromeResult is the notice produced by "palindrome".
type PalindromeResult struct {
	Op           string `json:"op"`
	Text         string `json:"text"`
	IsPalindrome bool   `json:"is_palindrome"`
}

// Stats counts whitespace-separated words and characters (runes) and
// hashes the UTF-8 bytes of text.
func Stats(text string) interface{} {
	sum := sha256.Sum256([]byte(text))
	return StatsResult{
		Op:     OpStats.String(),
		Text:   text,
		Words:  len(strings.Fields(text)),
		Chars:  utf8.RuneCountInString(text),
		SHA256: hex.EncodeToString(sum[:]),
	}
}

// Shout upper-cases every letter using full Unicode case mapping
// ("ß" becomes "SS"). Everything else is left alone.
func Shout(text string) interface{} {
	return ShoutResult{
		Op:   OpShout.String(),
		Text: cases.Upper(language.Und).String(text),
	}
}

// Palindrome keeps letters and digits only, lower-cases them and compares
// the sequence with its reverse. The empty sequence is a palindrome.
func Palindrome(text string) interface{} {
	return PalindromeResult{
		Op:           OpPalindrome.String(),
		Text:         text,
		IsPalindrome: isPalindrome(text),
	}
}

func isPalindrome(text string) bool {
	// Lower-case rune by rune: whole-string mapping applies the Greek
	// final-sigma rule and would turn "ΣΑΣ" into "σας".
	lower := cases.Lower(language.Und)
	var runes []rune
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			runes = append(runes, []rune(lower.String(string(r)))...)
		}
	}
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		if runes[i] != runes[j] {
			return false
		}
	}
	return true
}
