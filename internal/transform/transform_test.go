package transform

import (
	"encoding/base64"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cuongbtq/text-stream/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantHistogram string
		wantBase64    string
		wantErr       error
	}{
		{
			name:          "hello world",
			input:         "Hello, World!",
			wantHistogram: " 1!1,1H1W1d1e1l3o2r1",
			wantBase64:    "SGVsbG8sIFdvcmxkIQ==",
		},
		{
			name:          "short word",
			input:         "Test",
			wantHistogram: "T1e1s1t1",
			wantBase64:    "VGVzdA==",
		},
		{
			name:          "repeated single character collapses to one pair",
			input:         "aaaaaaaaaaaa",
			wantHistogram: "a12",
			wantBase64:    "YWFhYWFhYWFhYWFh",
		},
		{
			name:          "multi-byte characters",
			input:         "héé",
			wantHistogram: "h1é2",
			wantBase64:    base64.StdEncoding.EncodeToString([]byte("héé")),
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: domain.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Transform(tt.input)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, result)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantBase64, result.Base64Encoded)
			assert.Equal(t, tt.wantHistogram+Separator+tt.wantBase64, result.FormattedResult)
		})
	}
}

func TestEncodeToBase64(t *testing.T) {
	assert.Equal(t, "VGVzdA==", EncodeToBase64("Test"))
	assert.Equal(t, "", EncodeToBase64(""))
}

func TestTransform_Properties(t *testing.T) {
	inputs := []string{
		"a",
		"zyxwvu",
		"The quick brown fox jumps over the lazy dog",
		"1112223334445556667778889990",
		"日本語のテキスト",
		"mixed 123 !!! ??? \t\n",
		strings.Repeat("ab", 57),
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first, err := Transform(input)
			require.NoError(t, err)

			second, err := Transform(input)
			require.NoError(t, err)
			assert.Equal(t, first.FormattedResult, second.FormattedResult, "transform must be deterministic")

			sep := strings.LastIndex(first.FormattedResult, Separator)
			require.GreaterOrEqual(t, sep, 0)

			decoded, err := base64.StdEncoding.DecodeString(first.FormattedResult[sep+1:])
			require.NoError(t, err)
			assert.Equal(t, []byte(input), decoded)

			// histogram characters strictly ascending, counts positive
			var prev rune = -1
			total := 0
			for _, cc := range first.CharacterCounts {
				assert.Greater(t, cc.Char, prev)
				assert.Positive(t, cc.Count)
				prev = cc.Char
				total += cc.Count
			}
			assert.Equal(t, utf8.RuneCountInString(input), total)

			var histogram strings.Builder
			for _, cc := range first.CharacterCounts {
				histogram.WriteRune(cc.Char)
				histogram.WriteString(strconv.Itoa(cc.Count))
			}
			assert.Equal(t, histogram.String(), first.FormattedResult[:sep])
		})
	}
}

func TestUnitCount(t *testing.T) {
	inputs := []string{
		"Hello, World!",
		"Test",
		strings.Repeat("x", 150),
		"héé",
		"日本語のテキスト",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			result, err := Transform(input)
			require.NoError(t, err)

			count, err := UnitCount(input)
			require.NoError(t, err)
			assert.Equal(t, utf8.RuneCountInString(result.FormattedResult), count)
		})
	}

	_, err := UnitCount("")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}
