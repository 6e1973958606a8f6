package harvest

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/vantran-dev/recipeharvest/internal/hash/sha256"
)

// The crawl touches exactly two URL shapes: keyword search listings and
// recipe detail pages.
const (
	listingURLTemplate = "https://cookpad.com/%s/tim-kiem/%s?page=%d"
	detailURLTemplate  = "https://cookpad.com/%s/cong-thuc/%d"
)

var (
	reDetailPath = regexp.MustCompile(`^/([a-z]{2})/cong-thuc/(\d+)(?:[/?#].*)?$`)
	reDetailAbs  = regexp.MustCompile(`^https://cookpad\.com/([a-z]{2})/cong-thuc/(\d+)(?:[/?#].*)?$`)
	reDetailURL  = regexp.MustCompile(`^https://cookpad\.com/([a-z]{2})/cong-thuc/(\d+)$`)
)

// Site captures the source/locale pair a run operates on.
type Site struct {
	Source string
	Locale string
}

// ListingURL builds the search listing URL for a keyword page.
func (s Site) ListingURL(keyword string, page int) string {
	return fmt.Sprintf(listingURLTemplate, s.Locale, url.PathEscape(keyword), page)
}

// DetailURL builds the canonical detail URL for an item.
func (s Site) DetailURL(itemID int64) string {
	return fmt.Sprintf(detailURLTemplate, s.Locale, itemID)
}

// ItemIDFromHref extracts the item identifier from a listing anchor, which
// may be relative or absolute. Trailing path/query/fragment junk is ignored.
func (s Site) ItemIDFromHref(href string) (int64, bool) {
	href = strings.TrimSpace(href)
	m := reDetailPath.FindStringSubmatch(href)
	if m == nil {
		m = reDetailAbs.FindStringSubmatch(href)
	}
	if m == nil || m[1] != s.Locale {
		return 0, false
	}
	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ItemIDFromDetailURL parses a strict canonical detail URL. Used by workers
// to cross-check a job's requested URL against its item identity.
func (s Site) ItemIDFromDetailURL(raw string) (int64, bool) {
	m := reDetailURL.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil || m[1] != s.Locale {
		return 0, false
	}
	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// SignatureOfIDs computes an order-preserving digest of a listing page's
// extracted identifiers. Two pages with the same IDs in the same order hash
// identically.
func SignatureOfIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return sha256.Sum([]byte(strings.Join(parts, ",")))
}
