package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/vantran-dev/recipeharvest/internal/harvest"
	"github.com/vantran-dev/recipeharvest/internal/hash/sha256"
)

// JSONLD extracts schema.org Recipe records embedded as JSON-LD script
// blocks. It implements harvest.Extractor.
type JSONLD struct{}

// NewJSONLD returns the JSON-LD recipe extractor.
func NewJSONLD() *JSONLD {
	return &JSONLD{}
}

// Recipe returns the structured record for a detail page, or nil when the
// page carries no Recipe object. Malformed script blocks are skipped, never
// fatal.
func (JSONLD) Recipe(body []byte, requestedURL string, itemID int64) *harvest.Recipe {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var candidates []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return
		}
		for _, obj := range asList(parsed) {
			m, ok := obj.(map[string]any)
			if !ok {
				continue
			}
			if graph, ok := m["@graph"].([]any); ok {
				for _, g := range graph {
					if gm, ok := g.(map[string]any); ok {
						candidates = append(candidates, gm)
					}
				}
			}
			candidates = append(candidates, m)
		}
	})

	var obj map[string]any
	for _, c := range candidates {
		if isRecipeType(c["@type"]) {
			obj = c
			break
		}
	}
	if obj == nil {
		return nil
	}

	rec := &harvest.Recipe{
		ItemID:      itemID,
		URL:         stringField(obj, "url"),
		Name:        stringField(obj, "name"),
		Description: stringField(obj, "description"),
		HeroImage:   firstImageURL(obj["image"]),
		Cuisine:     joinedStrings(obj["recipeCuisine"]),
	}
	if rec.URL == "" {
		rec.URL = requestedURL
	}
	rec.AuthorName, rec.AuthorURL = author(obj["author"])
	rec.KeywordsRaw, rec.Keywords = keywords(obj["keywords"])
	for _, v := range asList(obj["recipeIngredient"]) {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			rec.Ingredients = append(rec.Ingredients, strings.TrimSpace(s))
		}
	}
	rec.Steps = instructions(obj["recipeInstructions"])
	rec.BookmarkCount, rec.LikeCount, rec.CommentCount = interactionCounts(obj["interactionStatistic"])
	rec.Comments = comments(obj["comment"])
	rec.DatePublished = parseDateTime(stringField(obj, "datePublished"))
	rec.DateModified = parseDateTime(stringField(obj, "dateModified"))
	return rec
}

func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{v}
	}
}

func joinedStrings(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		var parts []string
		for _, e := range t {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func isRecipeType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "Recipe"
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s == "Recipe" {
				return true
			}
		}
	}
	return false
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// firstImageURL digs the first usable URL out of schema.org's image shapes:
// a bare string, a list, or an ImageObject.
func firstImageURL(image any) string {
	switch t := image.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, item := range t {
			if u := firstImageURL(item); u != "" {
				return u
			}
		}
	case map[string]any:
		if u, ok := t["url"].(string); ok && strings.TrimSpace(u) != "" {
			return strings.TrimSpace(u)
		}
		if u, ok := t["@id"].(string); ok && strings.TrimSpace(u) != "" {
			return strings.TrimSpace(u)
		}
	}
	return ""
}

func author(v any) (name, url string) {
	for _, a := range asList(v) {
		switch t := a.(type) {
		case map[string]any:
			if s, ok := t["name"].(string); ok {
				name = s
			}
			if s, ok := t["url"].(string); ok {
				url = s
			} else if s, ok := t["@id"].(string); ok {
				url = s
			}
			return name, url
		case string:
			return t, ""
		}
	}
	return "", ""
}

func keywords(v any) (raw string, list []string) {
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				list = append(list, strings.TrimSpace(s))
			}
		}
		return strings.Join(list, ", "), list
	case string:
		raw = strings.TrimSpace(t)
		for _, p := range strings.Split(strings.ReplaceAll(raw, ";", ","), ",") {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		return raw, list
	}
	return "", nil
}

func instructions(v any) []harvest.RecipeStep {
	var steps []harvest.RecipeStep
	for _, item := range asList(v) {
		switch t := item.(type) {
		case string:
			if text := strings.TrimSpace(t); text != "" {
				steps = append(steps, harvest.RecipeStep{Text: text})
			}
		case map[string]any:
			text := stringField(t, "text")
			if text == "" {
				text = stringField(t, "name")
			}
			image := firstImageURL(t["image"])
			if text != "" || image != "" {
				steps = append(steps, harvest.RecipeStep{Text: text, Image: image})
			}
		}
	}
	return steps
}

func interactionCounts(v any) (bookmark, like, comment *int) {
	for _, item := range asList(v) {
		stat, ok := item.(map[string]any)
		if !ok {
			continue
		}
		count, ok := intValue(stat["userInteractionCount"])
		if !ok {
			continue
		}
		var kind string
		switch it := stat["interactionType"].(type) {
		case map[string]any:
			if s, ok := it["@type"].(string); ok {
				kind = s
			} else if s, ok := it["name"].(string); ok {
				kind = s
			}
		case string:
			kind = it
		}
		switch {
		case strings.Contains(kind, "BookmarkAction"):
			bookmark = &count
		case strings.Contains(kind, "LikeAction"):
			like = &count
		case strings.Contains(kind, "CommentAction"):
			comment = &count
		}
	}
	return bookmark, like, comment
}

func intValue(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func comments(v any) []harvest.RecipeComment {
	var out []harvest.RecipeComment
	for _, item := range asList(v) {
		c, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text, ok := c["text"].(string)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		text = strings.TrimSpace(text)
		name, url := author(c["author"])
		out = append(out, harvest.RecipeComment{
			AuthorName:    name,
			AuthorURL:     url,
			URL:           stringField(c, "url"),
			DatePublished: parseDateTime(stringField(c, "datePublished")),
			Text:          text,
			TextHash:      sha256.NormalizedText(text),
		})
	}
	return out
}

// parseDateTime accepts the date shapes cookpad emits: bare dates, RFC 3339
// with offset, and Z-suffixed timestamps. Naive values are taken as UTC.
func parseDateTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if ts, err := time.Parse(layout, value); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}
