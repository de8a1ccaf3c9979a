package fanout

import (
	"avt-guide/internal/catalog"
	"avt-guide/internal/chat"
)

// DescriptionLimit is the number of characters kept from a description.
const DescriptionLimit = 150

// ToPostSummary flattens an announcement for display.
func ToPostSummary(a catalog.Announcement) chat.PostSummary {
	s := chat.PostSummary{
		ID:           a.ID,
		Title:        a.Title,
		Destinations: append([]string{}, a.Destination...),
		Description:  truncate(a.Description, DescriptionLimit),
		Price:        string(a.Price),
	}
	if len(a.Photos) > 0 {
		s.Photo = catalog.NormalizePhotoPath(a.Photos[0])
	}
	if a.Category != nil {
		s.Category = a.Category.Name
	}
	if a.Subcategory != nil {
		s.Subcategory = a.Subcategory.Name
	}
	if a.Store != nil {
		s.Agency = a.Store.Denomination
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
