// Package queries generates the search-query seed list from brand, category
// and location word lists.
package queries

import (
	"fmt"

	"github.com/mapleads/mapleads/internal/artifact"
)

// Inputs holds the three word lists. Categories may be empty.
type Inputs struct {
	Brands     []string
	Categories []string
	Locations  []string
}

// LoadInputs reads the word lists from disk. A missing categories file is
// treated as an empty list; brands and locations are required.
func LoadInputs(brandsPath, categoriesPath, locationsPath string) (Inputs, error) {
	brands, err := artifact.ReadLines(brandsPath)
	if err != nil {
		return Inputs{}, fmt.Errorf("read brands: %w", err)
	}
	locations, err := artifact.ReadLines(locationsPath)
	if err != nil {
		return Inputs{}, fmt.Errorf("read locations: %w", err)
	}
	categories, err := artifact.ReadLines(categoriesPath)
	if err != nil {
		categories = nil
	}
	return Inputs{Brands: brands, Categories: categories, Locations: locations}, nil
}

// Generate produces the cartesian product of the word lists, in input order.
// With categories, queries read "brand category in location"; without, they
// collapse to "brand in location".
func Generate(in Inputs) []string {
	var out []string
	if len(in.Categories) == 0 {
		for _, brand := range in.Brands {
			for _, location := range in.Locations {
				out = append(out, fmt.Sprintf("%s in %s", brand, location))
			}
		}
		return out
	}
	for _, brand := range in.Brands {
		for _, category := range in.Categories {
			for _, location := range in.Locations {
				out = append(out, fmt.Sprintf("%s %s in %s", brand, category, location))
			}
		}
	}
	return out
}
