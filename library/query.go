package library

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortField names the attribute a view is ordered by. The zero value keeps
// fetch order.
type SortField string

const (
	SortNone         SortField = ""
	SortTitle        SortField = "title"
	SortAuthor       SortField = "author"
	SortCollection   SortField = "collection"
	SortAddDate      SortField = "addDate"
	SortLastModified SortField = "lastModified"
	SortName         SortField = "name"
	SortBorrowDate   SortField = "borrowDate"
	SortBookCount    SortField = "bookCount"
)

var sortFieldNames = map[string]SortField{
	"":             SortNone,
	"none":         SortNone,
	"title":        SortTitle,
	"author":       SortAuthor,
	"collection":   SortCollection,
	"adddate":      SortAddDate,
	"added":        SortAddDate,
	"lastmodified": SortLastModified,
	"modified":     SortLastModified,
	"name":         SortName,
	"borrowdate":   SortBorrowDate,
	"borrowed":     SortBorrowDate,
	"bookcount":    SortBookCount,
	"books":        SortBookCount,
}

// ParseSortField accepts the field names used on the command line,
// case-insensitively.
func ParseSortField(s string) (SortField, error) {
	f, ok := sortFieldNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return SortNone, fmt.Errorf("unknown sort field %q", s)
	}
	return f, nil
}

// ParseSortDirection returns true for descending. Empty means ascending.
func ParseSortDirection(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return false, nil
	case "desc", "descending":
		return true, nil
	}
	return false, fmt.Errorf("unknown sort direction %q", s)
}

// SortSpec selects a field and a direction.
type SortSpec struct {
	Field SortField
	Desc  bool
}

// BookQuery is the filter/sort configuration of the books view. Each filter
// slice is a set of allowed values; an empty slice disables that filter.
type BookQuery struct {
	Search      string
	Authors     []string
	Categories  []string
	Collections []string
	Sort        SortSpec
}

// BorrowerQuery is the filter/sort configuration of the borrowers view.
type BorrowerQuery struct {
	Search        string
	OnlyWithBooks bool
	Sort          SortSpec
}

// ApplyBookQuery returns the books that match q, ordered by q.Sort. The input
// slice is left untouched. Search AND every active filter must hold; within
// one filter any selected value is enough.
func ApplyBookQuery(sess *Session, books []*Book, q BookQuery) []*Book {
	term := normalizeTerm(q.Search)
	authors := toSet(q.Authors)
	categories := toSet(q.Categories)
	collections := toSet(q.Collections)

	out := make([]*Book, 0, len(books))
	for _, b := range books {
		if b == nil {
			continue
		}
		if !containsTerm(term, b.Title, b.Author) {
			continue
		}
		if len(authors) > 0 && !authors[b.Author] {
			continue
		}
		if len(categories) > 0 && !intersects(categories, b.Categories) {
			continue
		}
		if len(collections) > 0 && !collections[b.Collection] {
			continue
		}
		out = append(out, b)
	}

	var key sortKey[*Book]
	switch q.Sort.Field {
	case SortTitle:
		key.text = func(b *Book) string { return b.Title }
	case SortAuthor:
		key.text = func(b *Book) string { return b.Author }
	case SortCollection:
		key.text = func(b *Book) string { return b.Collection }
	case SortAddDate:
		key.date = func(b *Book) time.Time { return b.AddDate }
	case SortLastModified:
		key.date = func(b *Book) time.Time { return b.LastModified }
	}
	sortStable(out, key, q.Sort.Desc, sess.locale())
	return out
}

// ApplyBorrowerQuery is the borrower counterpart of ApplyBookQuery. Search
// matches the name only.
func ApplyBorrowerQuery(sess *Session, borrowers []*Borrower, q BorrowerQuery) []*Borrower {
	term := normalizeTerm(q.Search)

	out := make([]*Borrower, 0, len(borrowers))
	for _, b := range borrowers {
		if b == nil {
			continue
		}
		if !containsTerm(term, b.Name) {
			continue
		}
		if q.OnlyWithBooks && len(b.BorrowedBooks) == 0 {
			continue
		}
		out = append(out, b)
	}

	var key sortKey[*Borrower]
	switch q.Sort.Field {
	case SortName:
		key.text = func(b *Borrower) string { return b.Name }
	case SortBorrowDate:
		key.date = func(b *Borrower) time.Time { return b.BorrowDate }
	case SortBookCount:
		key.count = func(b *Borrower) int { return len(b.BorrowedBooks) }
	}
	sortStable(out, key, q.Sort.Desc, sess.locale())
	return out
}

// BookFacets lists the distinct authors, categories and collections present
// in books, each in collation order. Empty values are omitted.
func BookFacets(sess *Session, books []*Book) (authors, categories, collections []string) {
	seenA, seenC, seenL := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, b := range books {
		if b == nil {
			continue
		}
		if b.Author != "" && !seenA[b.Author] {
			seenA[b.Author] = true
			authors = append(authors, b.Author)
		}
		for _, c := range b.Categories {
			if c != "" && !seenC[c] {
				seenC[c] = true
				categories = append(categories, c)
			}
		}
		if b.Collection != "" && !seenL[b.Collection] {
			seenL[b.Collection] = true
			collections = append(collections, b.Collection)
		}
	}
	col := collate.New(sess.locale())
	col.SortStrings(authors)
	col.SortStrings(categories)
	col.SortStrings(collections)
	return authors, categories, collections
}

// sortKey holds exactly one extractor; none means no sorting.
type sortKey[T any] struct {
	text  func(T) string
	date  func(T) time.Time
	count func(T) int
}

// sortStable orders items in place. Zero dates are unknown and go last in
// both directions; everything else ties on fetch order.
func sortStable[T any](items []T, key sortKey[T], desc bool, tag language.Tag) {
	sign := 1
	if desc {
		sign = -1
	}
	switch {
	case key.text != nil:
		col := collate.New(tag)
		slices.SortStableFunc(items, func(a, b T) int {
			return sign * col.CompareString(key.text(a), key.text(b))
		})
	case key.date != nil:
		slices.SortStableFunc(items, func(a, b T) int {
			ta, tb := key.date(a), key.date(b)
			switch {
			case ta.IsZero() && tb.IsZero():
				return 0
			case ta.IsZero():
				return 1
			case tb.IsZero():
				return -1
			}
			return sign * ta.Compare(tb)
		})
	case key.count != nil:
		slices.SortStableFunc(items, func(a, b T) int {
			return sign * (key.count(a) - key.count(b))
		})
	}
}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsTerm(term string, fields ...string) bool {
	if term == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func intersects(set map[string]bool, values []string) bool {
	for _, v := range values {
		if set[v] {
			return true
		}
	}
	return false
}
