package usecase

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"scholarly_library/internal/feature/papers/domain/entity"
)

// SortKey selects the ordering of search results.
type SortKey string

const (
	// SortRecent orders by creation time, newest first. It is the default.
	SortRecent SortKey = "recent"
	// SortCitations orders by citation count, highest first.
	SortCitations SortKey = "citations"
	// SortYear orders by publication year, newest first.
	SortYear SortKey = "year"
	// SortTitle orders by title, ascending.
	SortTitle SortKey = "title"
)

// ParseSortKey maps the sortBy query value to a SortKey.
// Unknown or empty values select SortRecent.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortCitations:
		return SortCitations
	case SortYear:
		return SortYear
	case SortTitle:
		return SortTitle
	default:
		return SortRecent
	}
}

// ParseYear parses the year query value. An empty value means "no filter";
// anything that is not an integer is rejected.
func ParseYear(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%w: year must be an integer, got %q", ErrInvalidQuery, s)
	}
	return &y, nil
}

// SearchParams holds the optional filters of a catalogue search.
// Empty strings and a nil Year mean the filter was not supplied.
type SearchParams struct {
	Term    string
	Year    *int
	Author  string
	Journal string
	SortBy  SortKey
}

// normalized returns a copy with trimmed, lower-cased text filters.
func (p SearchParams) normalized() SearchParams {
	p.Term = strings.ToLower(strings.TrimSpace(p.Term))
	p.Author = strings.ToLower(strings.TrimSpace(p.Author))
	p.Journal = strings.ToLower(strings.TrimSpace(p.Journal))
	return p
}

// Matches reports whether paper satisfies every supplied filter.
func (p SearchParams) Matches(paper *entity.Paper) bool {
	return p.normalized().matches(paper)
}

func (p SearchParams) matches(paper *entity.Paper) bool {
	if p.Year != nil && paper.Year != *p.Year {
		return false
	}
	if p.Author != "" && !anyContains(paper.Authors, p.Author) {
		return false
	}
	if p.Journal != "" && !containsFold(paper.Journal, p.Journal) {
		return false
	}
	if p.Term != "" {
		// term は title / abstract / keywords / authors のいずれかに含まれればよい
		if !containsFold(paper.Title, p.Term) &&
			!containsFold(paper.Abstract, p.Term) &&
			!anyContains(paper.Keywords, p.Term) &&
			!anyContains(paper.Authors, p.Term) {
			return false
		}
	}
	return true
}

// FilterPapers returns the papers matching params, preserving input order.
func FilterPapers(papers []entity.Paper, params SearchParams) []entity.Paper {
	p := params.normalized()
	out := make([]entity.Paper, 0, len(papers))
	for i := range papers {
		if p.matches(&papers[i]) {
			out = append(out, papers[i])
		}
	}
	return out
}

// SortPapers orders papers in place. Ties are broken by ID descending so the
// result is total and deterministic.
func SortPapers(papers []entity.Paper, key SortKey) {
	var primary func(a, b *entity.Paper) int
	switch key {
	case SortCitations:
		primary = func(a, b *entity.Paper) int { return cmp.Compare(b.Citations, a.Citations) }
	case SortYear:
		primary = func(a, b *entity.Paper) int { return cmp.Compare(b.Year, a.Year) }
	case SortTitle:
		primary = func(a, b *entity.Paper) int { return strings.Compare(a.Title, b.Title) }
	default:
		primary = func(a, b *entity.Paper) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}

	slices.SortStableFunc(papers, func(a, b entity.Paper) int {
		if c := primary(&a, &b); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

func containsFold(s, lowerSubstr string) bool {
	return strings.Contains(strings.ToLower(s), lowerSubstr)
}

func anyContains(values []string, lowerSubstr string) bool {
	for _, v := range values {
		if containsFold(v, lowerSubstr) {
			return true
		}
	}
	return false
}
