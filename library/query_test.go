package library

import (
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/language"
)

func idsOf[T interface{ *Book | *Borrower }](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := any(it).(type) {
		case *Book:
			out = append(out, v.ID)
		case *Borrower:
			out = append(out, v.ID)
		}
	}
	return out
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 9, 0, 0, 0, time.UTC)
}

func sampleBooks() []*Book {
	return []*Book{
		{ID: "b1", Title: "Dune", Author: "Herrick", Categories: []string{"Fiction"}, AddDate: day(3)},
		{ID: "b2", Title: "Foundation", Author: "Asimov", Categories: []string{"Fiction", "Science"}, Collection: "Foundation", AddDate: day(1)},
		{ID: "b3", Title: "Cosmos", Author: "Sagan", Categories: []string{"Science"}, AddDate: day(2)},
		{ID: "b4", Title: "émile", Author: "Rousseau", Categories: []string{"History"}},
		{ID: "b5", Title: "I, Robot", Author: "Asimov", Categories: []string{"Fiction"}, Collection: "Robots", AddDate: day(5)},
	}
}

func TestSearchScenario(t *testing.T) {
	books := []*Book{
		{ID: "b1", Title: "Dune", Author: "Herrick"},
		{ID: "b2", Title: "Foundation", Author: "Asimov"},
	}
	got := ApplyBookQuery(testSession("u1"), books, BookQuery{Search: "asimov"})
	if diff := cmp.Diff([]string{"b2"}, idsOf(got)); diff != "" {
		t.Fatalf("search (-want +got):\n%s", diff)
	}
}

func TestEmptySearchIsIdentity(t *testing.T) {
	books := sampleBooks()
	for _, search := range []string{"", "   "} {
		got := ApplyBookQuery(nil, books, BookQuery{Search: search})
		if diff := cmp.Diff(idsOf(books), idsOf(got)); diff != "" {
			t.Fatalf("search %q (-want +got):\n%s", search, diff)
		}
	}
}

func TestApplyBookQueryLeavesInputAlone(t *testing.T) {
	books := sampleBooks()
	before := idsOf(books)
	ApplyBookQuery(nil, books, BookQuery{Sort: SortSpec{Field: SortTitle, Desc: true}})
	if diff := cmp.Diff(before, idsOf(books)); diff != "" {
		t.Fatalf("input reordered (-want +got):\n%s", diff)
	}
}

func TestCategoryFilterIsAnyOfAndMonotone(t *testing.T) {
	books := sampleBooks()
	science := ApplyBookQuery(nil, books, BookQuery{Categories: []string{"Science"}})
	if diff := cmp.Diff([]string{"b2", "b3"}, idsOf(science)); diff != "" {
		t.Fatalf("science (-want +got):\n%s", diff)
	}
	wider := ApplyBookQuery(nil, books, BookQuery{Categories: []string{"Science", "History"}})
	for _, id := range idsOf(science) {
		if !slices.Contains(idsOf(wider), id) {
			t.Fatalf("adding a category dropped %s", id)
		}
	}
	if diff := cmp.Diff([]string{"b2", "b3", "b4"}, idsOf(wider)); diff != "" {
		t.Fatalf("science+history (-want +got):\n%s", diff)
	}
}

func TestFiltersCombine(t *testing.T) {
	books := sampleBooks()
	q := BookQuery{
		Search:     "o",
		Authors:    []string{"Asimov"},
		Categories: []string{"Fiction"},
	}
	got := ApplyBookQuery(nil, books, q)
	if diff := cmp.Diff([]string{"b2", "b5"}, idsOf(got)); diff != "" {
		t.Fatalf("combined (-want +got):\n%s", diff)
	}

	q.Collections = []string{"Robots"}
	got = ApplyBookQuery(nil, books, q)
	if diff := cmp.Diff([]string{"b5"}, idsOf(got)); diff != "" {
		t.Fatalf("with collection (-want +got):\n%s", diff)
	}

	got = ApplyBookQuery(nil, books, BookQuery{Authors: []string{"Nobody"}})
	if len(got) != 0 {
		t.Fatalf("unknown author matched %v", idsOf(got))
	}
}

func TestSortAscReversedEqualsDesc(t *testing.T) {
	// Distinct titles and authors only; equal keys keep fetch order both ways.
	books := sampleBooks()[:4]
	for _, field := range []SortField{SortTitle, SortAuthor} {
		asc := idsOf(ApplyBookQuery(nil, books, BookQuery{Sort: SortSpec{Field: field}}))
		desc := idsOf(ApplyBookQuery(nil, books, BookQuery{Sort: SortSpec{Field: field, Desc: true}}))
		slices.Reverse(asc)
		if diff := cmp.Diff(desc, asc); diff != "" {
			t.Fatalf("%s (-desc +reversed asc):\n%s", field, diff)
		}
	}

	dated := books[:3]
	asc := idsOf(ApplyBookQuery(nil, dated, BookQuery{Sort: SortSpec{Field: SortAddDate}}))
	desc := idsOf(ApplyBookQuery(nil, dated, BookQuery{Sort: SortSpec{Field: SortAddDate, Desc: true}}))
	slices.Reverse(asc)
	if diff := cmp.Diff(desc, asc); diff != "" {
		t.Fatalf("addDate (-desc +reversed asc):\n%s", diff)
	}
}

func TestSortTitleUsesCollation(t *testing.T) {
	got := ApplyBookQuery(testSession("u1"), sampleBooks(), BookQuery{Sort: SortSpec{Field: SortTitle}})
	want := []string{"b3", "b1", "b4", "b2", "b5"}
	if diff := cmp.Diff(want, idsOf(got)); diff != "" {
		t.Fatalf("title order (-want +got):\n%s", diff)
	}
}

func TestUnknownDatesSortLast(t *testing.T) {
	books := sampleBooks()
	for _, desc := range []bool{false, true} {
		got := idsOf(ApplyBookQuery(nil, books, BookQuery{Sort: SortSpec{Field: SortAddDate, Desc: desc}}))
		if got[len(got)-1] != "b4" {
			t.Fatalf("desc=%v: undated book not last: %v", desc, got)
		}
	}
	got := idsOf(ApplyBookQuery(nil, books, BookQuery{Sort: SortSpec{Field: SortAddDate}}))
	if diff := cmp.Diff([]string{"b2", "b3", "b1", "b5", "b4"}, got); diff != "" {
		t.Fatalf("addDate asc (-want +got):\n%s", diff)
	}
}

func TestSortIsStable(t *testing.T) {
	books := []*Book{
		{ID: "x", Author: "Asimov"},
		{ID: "y", Author: "Asimov"},
		{ID: "z", Author: "Asimov"},
	}
	for _, desc := range []bool{false, true} {
		got := idsOf(ApplyBookQuery(nil, books, BookQuery{Sort: SortSpec{Field: SortAuthor, Desc: desc}}))
		if diff := cmp.Diff([]string{"x", "y", "z"}, got); diff != "" {
			t.Fatalf("desc=%v ties reordered (-want +got):\n%s", desc, diff)
		}
	}
}

func TestApplyBorrowerQuery(t *testing.T) {
	borrowers := []*Borrower{
		{ID: "r1", Name: "Ann", BorrowedBooks: []string{"b1", "b2"}, BorrowDate: day(2)},
		{ID: "r2", Name: "bob", BorrowDate: day(1)},
		{ID: "r3", Name: "Cleo", BorrowedBooks: []string{"b3"}},
		nil,
	}
	sess := NewSession(&User{ID: "u1"}, language.German)

	got := ApplyBorrowerQuery(sess, borrowers, BorrowerQuery{OnlyWithBooks: true})
	if diff := cmp.Diff([]string{"r1", "r3"}, idsOf(got)); diff != "" {
		t.Fatalf("only with books (-want +got):\n%s", diff)
	}

	got = ApplyBorrowerQuery(sess, borrowers, BorrowerQuery{Search: "O"})
	if diff := cmp.Diff([]string{"r2", "r3"}, idsOf(got)); diff != "" {
		t.Fatalf("search (-want +got):\n%s", diff)
	}

	got = ApplyBorrowerQuery(sess, borrowers, BorrowerQuery{Sort: SortSpec{Field: SortName}})
	if diff := cmp.Diff([]string{"r1", "r2", "r3"}, idsOf(got)); diff != "" {
		t.Fatalf("name (-want +got):\n%s", diff)
	}

	got = ApplyBorrowerQuery(sess, borrowers, BorrowerQuery{Sort: SortSpec{Field: SortBookCount, Desc: true}})
	if diff := cmp.Diff([]string{"r1", "r3", "r2"}, idsOf(got)); diff != "" {
		t.Fatalf("book count (-want +got):\n%s", diff)
	}

	got = ApplyBorrowerQuery(sess, borrowers, BorrowerQuery{Sort: SortSpec{Field: SortBorrowDate, Desc: true}})
	if diff := cmp.Diff([]string{"r1", "r2", "r3"}, idsOf(got)); diff != "" {
		t.Fatalf("borrow date (-want +got):\n%s", diff)
	}
}

func TestBookFacets(t *testing.T) {
	authors, categories, collections := BookFacets(nil, sampleBooks())
	if diff := cmp.Diff([]string{"Asimov", "Herrick", "Rousseau", "Sagan"}, authors); diff != "" {
		t.Fatalf("authors (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Fiction", "History", "Science"}, categories); diff != "" {
		t.Fatalf("categories (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Foundation", "Robots"}, collections); diff != "" {
		t.Fatalf("collections (-want +got):\n%s", diff)
	}
}

func TestParseSort(t *testing.T) {
	cases := map[string]SortField{
		"":         SortNone,
		"Title":    SortTitle,
		" added ":  SortAddDate,
		"modified": SortLastModified,
		"BOOKS":    SortBookCount,
	}
	for in, want := range cases {
		got, err := ParseSortField(in)
		if err != nil || got != want {
			t.Fatalf("ParseSortField(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseSortField("pages"); err == nil {
		t.Fatalf("unknown field accepted")
	}

	if desc, err := ParseSortDirection("DESC"); err != nil || !desc {
		t.Fatalf("DESC parsed as %v, %v", desc, err)
	}
	if desc, err := ParseSortDirection(""); err != nil || desc {
		t.Fatalf("empty direction parsed as %v, %v", desc, err)
	}
	if _, err := ParseSortDirection("sideways"); err == nil {
		t.Fatalf("unknown direction accepted")
	}
}
