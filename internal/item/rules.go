package item

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidListing = errors.New("listing breaks marketplace rules")

// Rules are the content limits a listing must meet, taken from the site
// settings. Zero values disable a check.
type Rules struct {
	MinPrice           int64
	MaxImages          int
	AllowedCategories  []string
	ProhibitedKeywords []string
}

func (r Rules) Check(params CreateParams) error {
	if params.Price < r.MinPrice {
		return fmt.Errorf("%w: price %d is below the minimum of %d", ErrInvalidListing, params.Price, r.MinPrice)
	}

	if r.MaxImages > 0 && len(params.ImageURLs) > r.MaxImages {
		return fmt.Errorf("%w: at most %d images are allowed", ErrInvalidListing, r.MaxImages)
	}

	if params.Category != "" && len(r.AllowedCategories) > 0 && !containsFold(r.AllowedCategories, params.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidListing, params.Category)
	}

	text := strings.ToLower(params.Title + " " + params.Description)
	for _, kw := range r.ProhibitedKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(text, kw) {
			return fmt.Errorf("%w: contains prohibited keyword %q", ErrInvalidListing, kw)
		}
	}

	return nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}

	return false
}
