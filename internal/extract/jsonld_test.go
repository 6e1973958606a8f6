package extract

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const recipeJSONLD = `{
	"@context": "https://schema.org",
	"@type": "Recipe",
	"name": "Cá hồi kho tộ",
	"url": "https://cookpad.com/vn/cong-thuc/4242",
	"description": "Món kho đậm đà.",
	"image": [{"url": "https://img.example/hero.jpg"}, "https://img.example/alt.jpg"],
	"datePublished": "2026-08-20T10:30:00+07:00",
	"dateModified": "2026-08-21",
	"recipeCuisine": ["Việt Nam", "Miền Nam"],
	"author": {"name": "Bếp Nhà", "url": "https://cookpad.com/vn/nguoi-dung/77"},
	"keywords": "cá hồi; kho tộ, món mặn",
	"recipeIngredient": ["500g cá hồi", " nước mắm ", ""],
	"recipeInstructions": [
		{"@type": "HowToStep", "text": "Ướp cá.", "image": "https://img.example/s1.jpg"},
		{"@type": "HowToStep", "name": "Kho nhỏ lửa."},
		"Rắc tiêu."
	],
	"interactionStatistic": [
		{"interactionType": {"@type": "BookmarkAction"}, "userInteractionCount": 12},
		{"interactionType": "https://schema.org/LikeAction", "userInteractionCount": "34"},
		{"interactionType": {"@type": "CommentAction"}, "userInteractionCount": 2}
	],
	"comment": [
		{"text": "Ngon quá!", "author": {"name": "An"}, "datePublished": "2026-08-22"},
		{"text": "  Ngon   quá!  ", "author": "Bình"},
		{"text": ""}
	]
}`

func detailHTML(jsonld string) []byte {
	return []byte(fmt.Sprintf(
		`<html><head><script type="application/ld+json">%s</script></head><body></body></html>`,
		jsonld,
	))
}

func TestJSONLDRecipeFullRecord(t *testing.T) {
	t.Parallel()

	rec := NewJSONLD().Recipe(detailHTML(recipeJSONLD), "https://cookpad.com/vn/cong-thuc/4242", 4242)
	require.NotNil(t, rec)

	require.Equal(t, int64(4242), rec.ItemID)
	require.Equal(t, "Cá hồi kho tộ", rec.Name)
	require.Equal(t, "https://cookpad.com/vn/cong-thuc/4242", rec.URL)
	require.Equal(t, "https://img.example/hero.jpg", rec.HeroImage)
	require.Equal(t, "Việt Nam, Miền Nam", rec.Cuisine)
	require.Equal(t, "Bếp Nhà", rec.AuthorName)
	require.Equal(t, "https://cookpad.com/vn/nguoi-dung/77", rec.AuthorURL)

	require.Equal(t, "cá hồi; kho tộ, món mặn", rec.KeywordsRaw)
	require.Equal(t, []string{"cá hồi", "kho tộ", "món mặn"}, rec.Keywords)
	require.Equal(t, []string{"500g cá hồi", "nước mắm"}, rec.Ingredients)

	require.Len(t, rec.Steps, 3)
	require.Equal(t, "Ướp cá.", rec.Steps[0].Text)
	require.Equal(t, "https://img.example/s1.jpg", rec.Steps[0].Image)
	require.Equal(t, "Kho nhỏ lửa.", rec.Steps[1].Text)
	require.Equal(t, "Rắc tiêu.", rec.Steps[2].Text)

	require.NotNil(t, rec.DatePublished)
	require.Equal(t, time.Date(2026, 8, 20, 3, 30, 0, 0, time.UTC), rec.DatePublished.UTC())
	require.NotNil(t, rec.DateModified)
	require.Equal(t, time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC), *rec.DateModified)

	require.NotNil(t, rec.BookmarkCount)
	require.Equal(t, 12, *rec.BookmarkCount)
	require.NotNil(t, rec.LikeCount)
	require.Equal(t, 34, *rec.LikeCount)
	require.NotNil(t, rec.CommentCount)
	require.Equal(t, 2, *rec.CommentCount)

	// Empty comment dropped; reformatted duplicate keeps the same text hash.
	require.Len(t, rec.Comments, 2)
	require.Equal(t, "Ngon quá!", rec.Comments[0].Text)
	require.Equal(t, rec.Comments[0].TextHash, rec.Comments[1].TextHash)
}

func TestJSONLDRecipeInsideGraph(t *testing.T) {
	t.Parallel()

	graph := `{"@context": "https://schema.org", "@graph": [
		{"@type": "WebPage", "name": "wrapper"},
		{"@type": ["Thing", "Recipe"], "name": "Gà kho gừng"}
	]}`
	rec := NewJSONLD().Recipe(detailHTML(graph), "https://cookpad.com/vn/cong-thuc/7", 7)
	require.NotNil(t, rec)
	require.Equal(t, "Gà kho gừng", rec.Name)
	// No url field: falls back to the requested URL.
	require.Equal(t, "https://cookpad.com/vn/cong-thuc/7", rec.URL)
	require.Nil(t, rec.DatePublished)
}

func TestJSONLDRecipeAbsent(t *testing.T) {
	t.Parallel()

	ex := NewJSONLD()
	require.Nil(t, ex.Recipe(detailHTML(`{"@type": "WebSite", "name": "cookpad"}`), "u", 1))
	require.Nil(t, ex.Recipe([]byte("<html><body>plain page</body></html>"), "u", 1))
	require.Nil(t, ex.Recipe(detailHTML(`{not json`), "u", 1))
}
