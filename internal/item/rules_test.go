package item_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/babyresell/babyresell/internal/item"
)

func TestRules_Check(t *testing.T) {
	rules := item.Rules{
		MinPrice:           100,
		MaxImages:          2,
		AllowedCategories:  []string{"strollers", "toys"},
		ProhibitedKeywords: []string{"replica"},
	}

	tests := []struct {
		name    string
		params  item.CreateParams
		wantErr bool
	}{
		{
			name:   "Valid",
			params: item.CreateParams{Title: "City stroller", Category: "Strollers", Price: 4500, ImageURLs: []string{"a", "b"}},
		},
		{
			name:   "No category",
			params: item.CreateParams{Title: "Rattle", Price: 100},
		},
		{
			name:    "Below minimum",
			params:  item.CreateParams{Title: "Socks", Price: 99},
			wantErr: true,
		},
		{
			name:    "Too many images",
			params:  item.CreateParams{Title: "Crib", Price: 9000, ImageURLs: []string{"a", "b", "c"}},
			wantErr: true,
		},
		{
			name:    "Unknown category",
			params:  item.CreateParams{Title: "Crib", Category: "weapons", Price: 9000},
			wantErr: true,
		},
		{
			name:    "Prohibited keyword in description",
			params:  item.CreateParams{Title: "Bag", Description: "REPLICA designer bag", Price: 9000},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rules.Check(tt.params)
			if tt.wantErr {
				assert.ErrorIs(t, err, item.ErrInvalidListing)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestRules_ZeroValueAllowsAnything(t *testing.T) {
	assert.NoError(t, item.Rules{}.Check(item.CreateParams{Title: "x", ImageURLs: make([]string, 50)}))
}
