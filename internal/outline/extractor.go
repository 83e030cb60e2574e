// Package outline turns free-form model output into an ordered list of
// outline items.
package outline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"documate/internal/models"

	"github.com/rs/zerolog/log"
)

// Strategy parses raw model text into outline items. An empty result means
// the strategy did not recognise the input.
type Strategy struct {
	Name  string
	Parse func(raw string) []models.OutlineItem
}

var (
	arrayRe       = regexp.MustCompile(models.ArrayRegex)
	titleRe       = regexp.MustCompile(models.TitleFieldRegex)
	descriptionRe = regexp.MustCompile(models.DescriptionRegex)
)

// DefaultStrategies are tried from the strictest to the most lenient.
var DefaultStrategies = []Strategy{
	{Name: "json-array", Parse: ParseArray},
	{Name: "field-pairs", Parse: ParseFieldPairs},
	{Name: "lines", Parse: ParseLines},
}

// Extract runs DefaultStrategies over raw and returns at most maxItems items.
// It never returns an empty slice.
func Extract(raw string, maxItems int) []models.OutlineItem {
	return ExtractWith(DefaultStrategies, raw, maxItems)
}

// ExtractWith is Extract with an explicit strategy list.
func ExtractWith(strategies []Strategy, raw string, maxItems int) []models.OutlineItem {
	if maxItems <= 0 {
		maxItems = models.DefaultMaxOutline
	}

	var items []models.OutlineItem
	for _, s := range strategies {
		items = run(s, raw)
		if len(items) > 0 {
			log.Debug().Str("strategy", s.Name).Int("items", len(items)).Msg("Outline extracted")
			break
		}
	}
	if len(items) == 0 {
		log.Debug().Msg("No outline strategy matched, using placeholder")
		items = []models.OutlineItem{models.PlaceholderOutline}
	}

	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func run(s Strategy, raw string) (items []models.OutlineItem) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Str("strategy", s.Name).Str("panic", fmt.Sprint(r)).Msg("Outline strategy failed")
			items = nil
		}
	}()
	return s.Parse(raw)
}

// ParseArray decodes the first greedy [...] span as a JSON array and keeps
// the objects that carry a non-empty string title.
func ParseArray(raw string) []models.OutlineItem {
	span := arrayRe.FindString(raw)
	if span == "" {
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(span), &elems); err != nil {
		log.Debug().Err(err).Msg("JSON parse failed, switching to fallback")
		return nil
	}

	var items []models.OutlineItem
	for _, elem := range elems {
		var obj map[string]any
		if err := json.Unmarshal(elem, &obj); err != nil {
			continue
		}
		title, _ := obj["title"].(string)
		if title == "" {
			continue
		}
		description, _ := obj["description"].(string)
		items = append(items, models.OutlineItem{Title: title, Description: description})
	}
	return items
}

// ParseFieldPairs collects every "title" and "description" value in order of
// appearance and pairs them by index. Descriptions missing at an index are
// left empty.
func ParseFieldPairs(raw string) []models.OutlineItem {
	titles := titleRe.FindAllStringSubmatch(raw, -1)
	if len(titles) == 0 {
		return nil
	}
	descriptions := descriptionRe.FindAllStringSubmatch(raw, -1)

	items := make([]models.OutlineItem, 0, len(titles))
	for i, m := range titles {
		item := models.OutlineItem{Title: m[1]}
		if i < len(descriptions) {
			item.Description = descriptions[i][1]
		}
		items = append(items, item)
	}
	return items
}

var structuralLines = map[string]bool{
	"[": true, "]": true, "{": true, "}": true, "},": true, "],": true,
}

// ParseLines treats every non-blank, non-structural line as a title.
func ParseLines(raw string) []models.OutlineItem {
	var items []models.OutlineItem
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || structuralLines[line] {
			continue
		}
		title := strings.TrimFunc(line, func(r rune) bool {
			return r == '"' || r == ',' || unicode.IsSpace(r)
		})
		if title == "" {
			continue
		}
		items = append(items, models.OutlineItem{Title: title})
	}
	return items
}
