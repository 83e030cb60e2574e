package outline

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"documate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_arrayInProse(t *testing.T) {
	raw := "Here you go:\n[{\"title\": \"Intro\", \"description\": \"start\"}, {\"title\": \"Body\"}]"

	got := Extract(raw, 10)

	assert.Equal(t, []models.OutlineItem{
		{Title: "Intro", Description: "start"},
		{Title: "Body", Description: ""},
	}, got)
}

func TestExtract_codeFencedArray(t *testing.T) {
	raw := "```json\n[\n  {\"title\": \"Market\", \"description\": \"size\"},\n  {\"title\": \"\", \"description\": \"dropped\"},\n  \"not an object\",\n  {\"title\": \"Risks\", \"description\": null}\n]\n```"

	got := Extract(raw, 10)

	assert.Equal(t, []models.OutlineItem{
		{Title: "Market", Description: "size"},
		{Title: "Risks", Description: ""},
	}, got)
}

func TestExtract_truncatesToMaxItems(t *testing.T) {
	var parts []string
	for i := 0; i < 15; i++ {
		parts = append(parts, fmt.Sprintf(`{"title": "S%d", "description": "d%d"}`, i, i))
	}
	raw := "[" + strings.Join(parts, ",") + "]"

	got := Extract(raw, 10)
	require.Len(t, got, 10)
	assert.Equal(t, "S0", got[0].Title)
	assert.Equal(t, "S9", got[9].Title)

	assert.Len(t, Extract(raw, 3), 3)
	assert.Len(t, Extract(raw, 0), models.DefaultMaxOutline)
}

func TestExtract_fieldPairsOnMalformedJSON(t *testing.T) {
	raw := `[{"title": "One", "description": "first"}, {"title": "Two", "description": "second"}, {"title": "Three"`

	got := Extract(raw, 10)

	assert.Equal(t, []models.OutlineItem{
		{Title: "One", Description: "first"},
		{Title: "Two", Description: "second"},
		{Title: "Three", Description: ""},
	}, got)
}

func TestParseFieldPairs_pairsByIndex(t *testing.T) {
	// Descriptions are paired by position, not by object.
	raw := `{"title": "A"} {"title": "B", "description": "for B"}`

	got := ParseFieldPairs(raw)

	assert.Equal(t, []models.OutlineItem{
		{Title: "A", Description: "for B"},
		{Title: "B", Description: ""},
	}, got)
}

func TestExtract_plainLines(t *testing.T) {
	got := Extract("Overview\nDetails\nSummary", 10)

	assert.Equal(t, []models.OutlineItem{
		{Title: "Overview"},
		{Title: "Details"},
		{Title: "Summary"},
	}, got)
}

func TestParseLines_dropsStructuralPunctuation(t *testing.T) {
	raw := "[\n{\n\"Introduction\",\n},\n\n  \"Methods\"  \n],\n]\n,\n"

	got := ParseLines(raw)

	assert.Equal(t, []models.OutlineItem{
		{Title: "Introduction"},
		{Title: "Methods"},
	}, got)
}

func TestExtract_plainLinesCapped(t *testing.T) {
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, fmt.Sprintf("Line %d", i))
	}
	got := Extract(strings.Join(lines, "\r\n"), 10)
	require.Len(t, got, 10)
	assert.Equal(t, "Line 0", got[0].Title)
}

func TestExtract_placeholder(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t\n", "[\n]\n{\n}"} {
		got := Extract(raw, 10)
		assert.Equal(t, []models.OutlineItem{models.PlaceholderOutline}, got, "input %q", raw)
	}
}

func TestExtractWith_recoversFromPanics(t *testing.T) {
	strategies := []Strategy{
		{Name: "boom", Parse: func(string) []models.OutlineItem { panic("boom") }},
		{Name: "lines", Parse: ParseLines},
	}

	got := ExtractWith(strategies, "Only", 10)

	assert.Equal(t, []models.OutlineItem{{Title: "Only"}}, got)
}

func TestExtract_neverEmptyOnArbitraryInput(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []byte("[]{}\",:\\ \n\ttitledescription*#\x00\xff")
	inputs := []string{
		strings.Repeat("[", 5000) + strings.Repeat("]", 4999),
		`[{"title": "unterminated`,
		`"title": "`,
		"\xff\xfe\xfd",
		strings.Repeat(`{"title": "x"},`, 1000),
	}
	for i := 0; i < 500; i++ {
		b := make([]byte, rng.Intn(200))
		for j := range b {
			if rng.Intn(4) == 0 {
				b[j] = byte(rng.Intn(256))
			} else {
				b[j] = alphabet[rng.Intn(len(alphabet))]
			}
		}
		inputs = append(inputs, string(b))
	}

	for _, raw := range inputs {
		var got []models.OutlineItem
		require.NotPanics(t, func() { got = Extract(raw, 10) })
		require.NotEmpty(t, got)
		require.LessOrEqual(t, len(got), 10)
		for _, item := range got {
			require.NotEmpty(t, item.Title)
		}
	}
}
