// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package menu arranges the quick shopping menu.
//
// Operators save a custom order of categories and, inside each category, of
// products. The live catalog changes underneath that order: items are added,
// removed or moved between categories. Reconcile merges the two into a
// deterministic display layout.
//
// # Rules
//
//  1. Saved entries still present in the catalog keep their saved order.
//  2. Duplicates in the saved order are dropped; the first occurrence wins.
//  3. Catalog entries missing from the saved order are appended, sorted by
//     sort index, then case-folded name, then ID.
//  4. A saved product that now belongs to another category is placed in its
//     real category as a new entry.
//  5. Products whose category is not in the catalog are not shown.
package menu
