package contact

// Set is a collection of unique strings that remembers first-insertion order.
// The order only makes output stable; membership is what matters.
type Set struct {
	items []string
	index map[string]struct{}
}

// NewSet returns a Set holding the given values, duplicates collapsed.
func NewSet(values ...string) Set {
	s := Set{}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v and reports whether it was not already present.
// Empty strings are ignored.
func (s *Set) Add(v string) bool {
	if v == "" {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

// Has reports whether v is in the set.
func (s Set) Has(v string) bool {
	_, ok := s.index[v]
	return ok
}

// Len returns the number of elements.
func (s Set) Len() int { return len(s.items) }

// Empty reports whether the set has no elements.
func (s Set) Empty() bool { return len(s.items) == 0 }

// Values returns a copy of the elements in insertion order.
func (s Set) Values() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Diff returns the elements of s that are not in other, keeping s's order.
func (s Set) Diff(other Set) Set {
	out := Set{}
	for _, v := range s.items {
		if !other.Has(v) {
			out.Add(v)
		}
	}
	return out
}

// Merge adds every element of other to s.
func (s *Set) Merge(other Set) {
	for _, v := range other.items {
		s.Add(v)
	}
}

// ContactSet is the pair of email and phone collections found on one page.
type ContactSet struct {
	Emails Set
	Phones Set
}

// Empty reports whether neither emails nor phones were found.
func (c ContactSet) Empty() bool {
	return c.Emails.Empty() && c.Phones.Empty()
}

// Entry bundles one page's contact findings with where they came from.
type Entry struct {
	Domain   string
	URL      string
	Contacts ContactSet
}
