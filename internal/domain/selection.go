package domain

import "slices"

// Selection is an insertion-ordered set of product identifiers.
// The order drives prompt building and image submission order.
type Selection []string

// NewSelection builds a selection from ids, rejecting duplicates and blanks.
func NewSelection(ids ...string) (Selection, error) {
	var s Selection
	for _, id := range ids {
		if id == "" || !s.Add(id) {
			return nil, ErrInvalidSelection
		}
	}
	return s, nil
}

// Add appends id unless it is already selected.
func (s *Selection) Add(id string) bool {
	if s.Contains(id) {
		return false
	}
	*s = append(*s, id)
	return true
}

// Remove drops id, keeping the order of the remaining ids.
func (s *Selection) Remove(id string) bool {
	idx := slices.Index(*s, id)
	if idx < 0 {
		return false
	}
	*s = slices.Delete(*s, idx, idx+1)
	return true
}

func (s Selection) Contains(id string) bool {
	return slices.Contains(s, id)
}

func (s Selection) Len() int {
	return len(s)
}

// IDs returns a copy in insertion order.
func (s Selection) IDs() []string {
	return slices.Clone(s)
}

// Sorted returns a lexically sorted copy, used for order-independent identity.
func (s Selection) Sorted() []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}
