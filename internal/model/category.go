package model

import (
	"sort"
	"strings"
)

// Category is the type of race. The zero value is not a valid category.
type Category int

const (
	Horse Category = iota + 1
	Greyhound
	Harness
)

// AllCategories lists every known category in display order.
var AllCategories = []Category{Horse, Greyhound, Harness}

// Wire codes used by the racing API's category_id field.
const (
	horseCode     = "4a2788f8-e825-4d36-9894-efd4baf1cfae"
	greyhoundCode = "9daef0d7-bf3c-4f50-921d-8e818c60fe61"
	harnessCode   = "161d9be2-e909-4326-8c2c-35ed71fb460b"
)

// ParseCategory maps an API category code to a Category.
// Unknown codes return false; they are never a new category.
func ParseCategory(code string) (Category, bool) {
	switch code {
	case horseCode:
		return Horse, true
	case greyhoundCode:
		return Greyhound, true
	case harnessCode:
		return Harness, true
	}
	return 0, false
}

// CategoryByName looks up a category by display name, case-insensitively.
func CategoryByName(name string) (Category, bool) {
	name = strings.TrimSpace(name)
	for _, c := range AllCategories {
		if strings.EqualFold(c.String(), name) {
			return c, true
		}
	}
	return 0, false
}

// Code returns the API category code.
func (c Category) Code() string {
	switch c {
	case Horse:
		return horseCode
	case Greyhound:
		return greyhoundCode
	case Harness:
		return harnessCode
	}
	return ""
}

// String returns the display name.
func (c Category) String() string {
	switch c {
	case Horse:
		return "Horse"
	case Greyhound:
		return "Greyhound"
	case Harness:
		return "Harness"
	}
	return "Unknown"
}

// CategorySet is a set of categories. An empty set means "no filter".
type CategorySet map[Category]struct{}

// NewCategorySet builds a set from the given categories.
func NewCategorySet(cats ...Category) CategorySet {
	s := make(CategorySet, len(cats))
	for _, c := range cats {
		s[c] = struct{}{}
	}
	return s
}

// Add inserts c.
func (s CategorySet) Add(c Category) {
	s[c] = struct{}{}
}

// Contains reports whether c is in the set.
func (s CategorySet) Contains(c Category) bool {
	_, ok := s[c]
	return ok
}

// Matches reports whether c passes the filter. Empty sets match everything.
func (s CategorySet) Matches(c Category) bool {
	return len(s) == 0 || s.Contains(c)
}

// Len returns the number of categories in the set.
func (s CategorySet) Len() int {
	return len(s)
}

// Equal reports whether both sets hold exactly the same categories.
func (s CategorySet) Equal(other CategorySet) bool {
	if len(s) != len(other) {
		return false
	}
	for c := range s {
		if !other.Contains(c) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s CategorySet) Clone() CategorySet {
	out := make(CategorySet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// Toggle returns a copy with c removed if present, added otherwise.
func (s CategorySet) Toggle(c Category) CategorySet {
	out := s.Clone()
	if out.Contains(c) {
		delete(out, c)
	} else {
		out[c] = struct{}{}
	}
	return out
}

// Slice returns the categories in display order.
func (s CategorySet) Slice() []Category {
	out := make([]Category, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s CategorySet) String() string {
	if len(s) == 0 {
		return "all"
	}
	names := make([]string, 0, len(s))
	for _, c := range s.Slice() {
		names = append(names, c.String())
	}
	return strings.Join(names, ",")
}

// ParseCategoryNames parses a comma-separated list of display names.
// Unknown names are returned separately so callers can report them.
func ParseCategoryNames(list string) (CategorySet, []string) {
	set := NewCategorySet()
	var unknown []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, ok := CategoryByName(part)
		if !ok {
			unknown = append(unknown, part)
			continue
		}
		set.Add(c)
	}
	return set, unknown
}
