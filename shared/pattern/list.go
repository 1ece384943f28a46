package pattern

// List is an ordered collection of patterns evaluated together, used
// for include/exclude entry selection during archive creation.
type List struct {
	patterns []*Pattern
}

// NewList builds a List from already-compiled patterns.
func NewList(patterns ...*Pattern) *List {
	return &List{patterns: patterns}
}

// Add appends a pattern to the list.
func (l *List) Add(p *Pattern) {
	l.patterns = append(l.patterns, p)
}

// MatchAny reports whether any pattern in the list matches path.
func (l *List) MatchAny(path string) bool {
	for _, p := range l.patterns {
		if p.Match(path) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns in the list.
func (l *List) Len() int {
	return len(l.patterns)
}

// EntryList resolves whether an archive-relative path should be
// included, by combining an include list and an exclude list: a path
// is selected when it matches Include (or Include is empty) and does
// not match Exclude.
type EntryList struct {
	Include *List
	Exclude *List
}

// Selected reports whether path should be part of the archive.
func (e *EntryList) Selected(path string) bool {
	if e.Exclude != nil && e.Exclude.MatchAny(path) {
		return false
	}
	if e.Include == nil || e.Include.Len() == 0 {
		return true
	}
	return e.Include.MatchAny(path)
}
