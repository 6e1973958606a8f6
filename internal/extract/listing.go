// Package extract turns fetched page bytes into structured records. All
// functions are pure: bytes in, records (or nothing) out.
package extract

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"

	"github.com/vantran-dev/recipeharvest/internal/harvest"
)

// ListingItemIDs returns the item identifiers referenced by a listing page,
// in page order, de-duplicated within the page.
func ListingItemIDs(body []byte, site harvest.Site) []int64 {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	seen := make(map[int64]struct{})
	var ids []int64
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		id, ok := site.ItemIDFromHref(href)
		if !ok {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	})
	return ids
}
