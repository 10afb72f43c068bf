package catalog

import (
	"github.com/shopspring/decimal"

	"charmstudio/internal/catalog"
)

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// SeedModels is the demo set of base pieces.
func SeedModels() []catalog.JewelryModel {
	return []catalog.JewelryModel{
		{ID: "collier-chaine-fine", TypeID: catalog.TypeNecklace, Name: "Chaîne fine", Price: price("20.00"), ImageURL: "/static/models/collier-chaine-fine.png", EditorImageURL: "/static/models/collier-chaine-fine-editor.png"},
		{ID: "collier-maille-forcat", TypeID: catalog.TypeNecklace, Name: "Maille forçat", Price: price("26.00"), ImageURL: "/static/models/collier-maille-forcat.png", EditorImageURL: "/static/models/collier-maille-forcat-editor.png"},
		{ID: "bracelet-jonc", TypeID: catalog.TypeBracelet, Name: "Jonc doré", Price: price("18.50"), ImageURL: "/static/models/bracelet-jonc.png", EditorImageURL: "/static/models/bracelet-jonc-editor.png"},
		{ID: "bracelet-cordon", TypeID: catalog.TypeBracelet, Name: "Cordon tressé", Price: price("12.00"), ImageURL: "/static/models/bracelet-cordon.png", EditorImageURL: "/static/models/bracelet-cordon-editor.png"},
		{ID: "boucles-creoles", TypeID: catalog.TypeEarring, Name: "Créoles", Price: price("15.00"), ImageURL: "/static/models/boucles-creoles.png", EditorImageURL: "/static/models/boucles-creoles-editor.png"},
	}
}

// SeedCharms is the demo charm catalog.
func SeedCharms() []catalog.Charm {
	return []catalog.Charm{
		{ID: "star", Name: "Star", Price: price("5.50"), ImageURL: "/static/charms/star.png", Category: "céleste", Stock: 12, LowStockThreshold: 3},
		{ID: "moon", Name: "Moon", Price: price("3.25"), ImageURL: "/static/charms/moon.png", Category: "céleste", Stock: 8, LowStockThreshold: 3},
		{ID: "heart", Name: "Heart", Price: price("4.00"), ImageURL: "/static/charms/heart.png", Category: "amour", Stock: 20, LowStockThreshold: 5},
		{ID: "clover", Name: "Clover", Price: price("4.50"), ImageURL: "/static/charms/clover.png", Category: "nature", Stock: 2, LowStockThreshold: 3},
		{ID: "pearl", Name: "Pearl", Price: price("6.90"), ImageURL: "/static/charms/pearl.png", Category: "classique", Stock: 5, LowStockThreshold: 2},
		{ID: "shell", Name: "Shell", Price: price("3.80"), ImageURL: "/static/charms/shell.png", Category: "nature", Stock: 1, LowStockThreshold: 2},
	}
}
