package catalog

import (
	"regexp"
	"strings"

	"avt-guide/internal/chat"
)

// Announcement is the subset of a catalog announcement the assistant reads.
type Announcement struct {
	ID          int64           `json:"id"`
	Title       string          `json:"titre"`
	Destination []string        `json:"destination"`
	Description string          `json:"description"`
	Price       chat.FlexString `json:"prix"`
	Photos      []string        `json:"photos"`
	Category    *Named          `json:"category"`
	Subcategory *Named          `json:"subcategory"`
	Store       *Store          `json:"store"`
}

type Named struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Store struct {
	ID           int64  `json:"id"`
	Denomination string `json:"denomination"`
}

type SubCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Category struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	SubCategories []SubCategory `json:"sub_categories"`
}

// SearchParams is one keyword search. Category filters are deliberately
// absent: the assistant never filters the catalog by category.
type SearchParams struct {
	Query      string
	PriceStart string
	PriceEnd   string
	DateStart  string
	DateEnd    string
}

var separatorRun = regexp.MustCompile(`[\\/]{2,}|\\`)

// NormalizePhotoPath turns "storage\\\\announcements\\\\a.jpg" and
// "storage//announcements/a.jpg" into "storage/announcements/a.jpg".
func NormalizePhotoPath(p string) string {
	if p == "" {
		return p
	}
	scheme := ""
	if i := strings.Index(p, "://"); i > 0 {
		scheme, p = p[:i+3], p[i+3:]
	}
	return scheme + separatorRun.ReplaceAllString(p, "/")
}

func normalizePhotos(a Announcement) Announcement {
	if len(a.Photos) == 0 {
		return a
	}
	photos := make([]string, len(a.Photos))
	for i, p := range a.Photos {
		photos[i] = NormalizePhotoPath(p)
	}
	a.Photos = photos
	return a
}
