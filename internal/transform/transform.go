// Package transform computes the character histogram and Base64 payload of a
// text and streams the formatted result one unit at a time.
package transform

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cuongbtq/text-stream/internal/domain"
)

// Separator sits between the histogram segment and the Base64 segment
const Separator = "/"

// CharacterCount is one histogram entry
type CharacterCount struct {
	Char  rune
	Count int
}

// Result holds the output of a transform
type Result struct {
	CharacterCounts []CharacterCount
	Base64Encoded   string
	FormattedResult string
}

// Transform builds the histogram and Base64 encoding of input.
// It fails with domain.ErrInvalidArgument when input is empty.
func Transform(input string) (*Result, error) {
	if input == "" {
		return nil, fmt.Errorf("%w: input text is empty", domain.ErrInvalidArgument)
	}

	counts := CountCharacters(input)
	encoded := EncodeToBase64(input)

	var sb strings.Builder
	for _, cc := range counts {
		sb.WriteRune(cc.Char)
		sb.WriteString(strconv.Itoa(cc.Count))
	}
	sb.WriteString(Separator)
	sb.WriteString(encoded)

	return &Result{
		CharacterCounts: counts,
		Base64Encoded:   encoded,
		FormattedResult: sb.String(),
	}, nil
}

// CountCharacters groups the code points of input and returns them sorted
// ascending by code point value.
func CountCharacters(input string) []CharacterCount {
	byRune := make(map[rune]int)
	for _, r := range input {
		byRune[r]++
	}

	counts := make([]CharacterCount, 0, len(byRune))
	for r, n := range byRune {
		counts = append(counts, CharacterCount{Char: r, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		return counts[i].Char < counts[j].Char
	})
	return counts
}

// EncodeToBase64 returns the standard Base64 encoding of the UTF-8 bytes of input
func EncodeToBase64(input string) string {
	if input == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(input))
}

// UnitCount returns the number of units (runes) Transform(input) would
// produce, without building the formatted string.
func UnitCount(input string) (int, error) {
	if input == "" {
		return 0, fmt.Errorf("%w: input text is empty", domain.ErrInvalidArgument)
	}

	total := 0
	for _, cc := range CountCharacters(input) {
		total += 1 + len(strconv.Itoa(cc.Count))
	}
	total += utf8.RuneCountInString(Separator)
	total += base64.StdEncoding.EncodedLen(len(input))
	return total, nil
}
