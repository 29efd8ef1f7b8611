// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package menu

import (
	"sort"

	"golang.org/x/text/cases"
)

// =============================================================================
// CATALOG TYPES
// =============================================================================

// Category is a quick shopping category from the live catalog.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Sort int    `json:"sort"`
}

// Product is a catalog product.
type Product struct {
	ID         string  `json:"id"`
	CategoryID string  `json:"categoryId"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Sort       int     `json:"sort"`
}

// Catalog is the live set of categories and products.
type Catalog struct {
	Categories []Category `json:"categories"`
	Products   []Product  `json:"products"`
}

// =============================================================================
// ORDER TYPES
// =============================================================================

// CategoryOrder is the saved product order of one category.
type CategoryOrder struct {
	ID       string   `json:"id"`
	Products []string `json:"products"`
}

// Order is the saved custom arrangement.
type Order struct {
	Categories []CategoryOrder `json:"categories"`
}

// IsEmpty reports whether nothing has been saved.
func (o Order) IsEmpty() bool {
	return len(o.Categories) == 0
}

// Section is one category with its products in display order.
type Section struct {
	Category Category  `json:"category"`
	Products []Product `json:"products"`
}

// Layout is the reconciled display order.
type Layout struct {
	Sections []Section `json:"sections"`
}

// Report lists what changed between the saved order and the catalog.
type Report struct {
	AddedCategories   []string
	MissingCategories []string
	AddedProducts     []string
	MissingProducts   []string
}

// Changed reports whether the saved order is out of date.
func (r Report) Changed() bool {
	return len(r.AddedCategories) > 0 || len(r.MissingCategories) > 0 ||
		len(r.AddedProducts) > 0 || len(r.MissingProducts) > 0
}

// =============================================================================
// RECONCILE
// =============================================================================

// Reconcile merges the saved order with the live catalog.
func Reconcile(saved Order, cat Catalog) (Layout, Report) {
	var report Report
	fold := cases.Fold()

	categories := make(map[string]Category, len(cat.Categories))
	for _, c := range cat.Categories {
		if _, dup := categories[c.ID]; !dup {
			categories[c.ID] = c
		}
	}

	products := make(map[string]Product, len(cat.Products))
	byCategory := make(map[string][]Product)
	for _, p := range cat.Products {
		if _, dup := products[p.ID]; dup {
			continue
		}
		products[p.ID] = p
		byCategory[p.CategoryID] = append(byCategory[p.CategoryID], p)
	}

	savedProducts := make(map[string][]string, len(saved.Categories))
	var orderedCats []Category
	placedCat := make(map[string]bool)
	for _, co := range saved.Categories {
		if placedCat[co.ID] {
			continue
		}
		c, ok := categories[co.ID]
		if !ok {
			report.MissingCategories = append(report.MissingCategories, co.ID)
			placedCat[co.ID] = true
			continue
		}
		placedCat[co.ID] = true
		savedProducts[co.ID] = co.Products
		orderedCats = append(orderedCats, c)
	}

	var newCats []Category
	for _, c := range categories {
		if !placedCat[c.ID] {
			newCats = append(newCats, c)
		}
	}
	sortCategories(newCats, fold)
	for _, c := range newCats {
		report.AddedCategories = append(report.AddedCategories, c.ID)
	}
	orderedCats = append(orderedCats, newCats...)

	// A product counts as missing only if it is gone from the catalog, not
	// when it merely moved to another category.
	seenSaved := make(map[string]bool)
	for _, co := range saved.Categories {
		for _, id := range co.Products {
			if seenSaved[id] {
				continue
			}
			seenSaved[id] = true
			if _, ok := products[id]; !ok {
				report.MissingProducts = append(report.MissingProducts, id)
			}
		}
	}

	layout := Layout{Sections: make([]Section, 0, len(orderedCats))}
	for _, c := range orderedCats {
		section := Section{Category: c, Products: []Product{}}
		placed := make(map[string]bool)

		for _, id := range savedProducts[c.ID] {
			p, ok := products[id]
			if !ok || placed[id] || p.CategoryID != c.ID {
				continue
			}
			placed[id] = true
			section.Products = append(section.Products, p)
		}

		var fresh []Product
		for _, p := range byCategory[c.ID] {
			if !placed[p.ID] {
				fresh = append(fresh, p)
			}
		}
		sortProducts(fresh, fold)
		for _, p := range fresh {
			report.AddedProducts = append(report.AddedProducts, p.ID)
		}
		section.Products = append(section.Products, fresh...)
		layout.Sections = append(layout.Sections, section)
	}

	return layout, report
}

func sortCategories(cs []Category, fold cases.Caser) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Sort != b.Sort {
			return a.Sort < b.Sort
		}
		an, bn := fold.String(a.Name), fold.String(b.Name)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
}

func sortProducts(ps []Product, fold cases.Caser) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if a.Sort != b.Sort {
			return a.Sort < b.Sort
		}
		an, bn := fold.String(a.Name), fold.String(b.Name)
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
}

// =============================================================================
// ARRANGING
// =============================================================================

// Order returns the layout in its saved form.
func (l Layout) Order() Order {
	o := Order{Categories: make([]CategoryOrder, 0, len(l.Sections))}
	for _, s := range l.Sections {
		ids := make([]string, 0, len(s.Products))
		for _, p := range s.Products {
			ids = append(ids, p.ID)
		}
		o.Categories = append(o.Categories, CategoryOrder{ID: s.Category.ID, Products: ids})
	}
	return o
}

// MoveCategory shifts section i by delta positions, clamped to the layout.
// It reports whether anything moved.
func (l *Layout) MoveCategory(i, delta int) bool {
	if i < 0 || i >= len(l.Sections) {
		return false
	}
	return move(l.Sections, i, clamp(i+delta, len(l.Sections)))
}

// MoveProduct shifts product i of section s by delta positions.
func (l *Layout) MoveProduct(s, i, delta int) bool {
	if s < 0 || s >= len(l.Sections) {
		return false
	}
	ps := l.Sections[s].Products
	if i < 0 || i >= len(ps) {
		return false
	}
	return move(ps, i, clamp(i+delta, len(ps)))
}

// ProductCount returns the number of products across all sections.
func (l Layout) ProductCount() int {
	n := 0
	for _, s := range l.Sections {
		n += len(s.Products)
	}
	return n
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func move[T any](xs []T, from, to int) bool {
	if from == to {
		return false
	}
	item := xs[from]
	if from < to {
		copy(xs[from:to], xs[from+1:to+1])
	} else {
		copy(xs[to+1:from+1], xs[to:from])
	}
	xs[to] = item
	return true
}
