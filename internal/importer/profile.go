package importer

import "github.com/babyresell/babyresell/internal/item"

// Profile describes the column layout of a listing spreadsheet. Adding a
// new export format is adding a Profile to profiles.
type Profile struct {
	Name        string
	TitleCol    string
	PriceCol    string
	CategoryCol string // optional
	CondCol     string // optional
	DescCol     string // optional
	ImagesCol   string // optional, space or pipe separated URLs

	// Conditions maps the sheet's condition labels (lower-cased) to ours.
	Conditions map[string]item.Condition
}

func (p Profile) requiredCols() []string {
	return []string{p.TitleCol, p.PriceCol}
}

var englishConditions = map[string]item.Condition{
	"new":      item.ConditionNew,
	"like new": item.ConditionLikeNew,
	"like_new": item.ConditionLikeNew,
	"good":     item.ConditionGood,
	"used":     item.ConditionGood,
	"fair":     item.ConditionFair,
	"worn":     item.ConditionFair,
}

// profiles is tried in order; more specific layouts come first.
var profiles = []Profile{
	{
		Name:        "vinted",
		TitleCol:    "Item title",
		PriceCol:    "Price",
		CategoryCol: "Category",
		CondCol:     "Condition",
		DescCol:     "Item description",
		ImagesCol:   "Photos",
		Conditions: map[string]item.Condition{
			"new with tags":    item.ConditionNew,
			"new without tags": item.ConditionLikeNew,
			"very good":        item.ConditionLikeNew,
			"good":             item.ConditionGood,
			"satisfactory":     item.ConditionFair,
		},
	},
	{
		Name:        "babyresell",
		TitleCol:    "title",
		PriceCol:    "price",
		CategoryCol: "category",
		CondCol:     "condition",
		DescCol:     "description",
		ImagesCol:   "images",
		Conditions:  englishConditions,
	},
	{
		Name:        "português",
		TitleCol:    "Título",
		PriceCol:    "Preço",
		CategoryCol: "Categoria",
		CondCol:     "Estado",
		DescCol:     "Descrição",
		ImagesCol:   "Fotos",
		Conditions: map[string]item.Condition{
			"novo":             item.ConditionNew,
			"como novo":        item.ConditionLikeNew,
			"bom":              item.ConditionGood,
			"bom estado":       item.ConditionGood,
			"razoável":         item.ConditionFair,
			"com sinais de uso": item.ConditionFair,
		},
	},
}
