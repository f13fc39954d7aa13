package library

import (
	"strings"
)

// DefaultCategories is the suggested category list. Books may carry any
// category; this list only feeds prompts.
var DefaultCategories = []string{"Fiction", "Non-Fiction", "Science", "History"}

// BookForm stages the fields of one book. A nil Editing means the form
// creates a new book.
type BookForm struct {
	Editing    *Book
	Title      string
	Author     string
	Categories []string
	Collection string

	// Suggested is the enumerated category list offered to the user.
	Suggested []string
}

// NewBookForm prefills a form from existing, which may be nil.
func NewBookForm(existing *Book, suggested []string) *BookForm {
	f := &BookForm{Editing: existing, Suggested: suggested}
	if existing != nil {
		f.Title = existing.Title
		f.Author = existing.Author
		f.Categories = append([]string(nil), existing.Categories...)
		f.Collection = existing.Collection
	}
	return f
}

// IsEdit reports whether submitting updates an existing book.
func (f *BookForm) IsEdit() bool { return f.Editing != nil }

// Validate normalises the staged fields and checks the required ones.
func (f *BookForm) Validate() error {
	f.Title = strings.TrimSpace(f.Title)
	f.Author = strings.TrimSpace(f.Author)
	f.Collection = strings.TrimSpace(f.Collection)
	f.Categories = cleanList(f.Categories)

	if f.Title == "" {
		return &ValidationError{Field: "title", Message: "cannot be empty"}
	}
	if f.Author == "" {
		return &ValidationError{Field: "author", Message: "cannot be empty"}
	}
	if len(f.Categories) == 0 {
		return &ValidationError{Field: "category", Message: "select at least one category"}
	}
	return nil
}

// book returns the record body to write.
func (f *BookForm) book() *Book {
	return &Book{
		Title:      f.Title,
		Author:     f.Author,
		Categories: f.Categories,
		Collection: f.Collection,
	}
}

// duplicates reports whether existing holds another book with the same
// title and author. Only creates are checked.
func (f *BookForm) duplicates(existing []*Book) bool {
	if f.IsEdit() {
		return false
	}
	for _, b := range existing {
		if b.Title == f.Title && b.Author == f.Author {
			return true
		}
	}
	return false
}

// BorrowerForm stages the fields of one borrower.
type BorrowerForm struct {
	Editing       *Borrower
	Name          string
	BorrowedBooks []string
}

// NewBorrowerForm prefills a form from existing, which may be nil.
func NewBorrowerForm(existing *Borrower) *BorrowerForm {
	f := &BorrowerForm{Editing: existing}
	if existing != nil {
		f.Name = existing.Name
		f.BorrowedBooks = append([]string(nil), existing.BorrowedBooks...)
	}
	return f
}

// IsEdit reports whether submitting updates an existing borrower.
func (f *BorrowerForm) IsEdit() bool { return f.Editing != nil }

// Validate normalises the staged fields and checks the name.
func (f *BorrowerForm) Validate() error {
	f.Name = strings.TrimSpace(f.Name)
	f.BorrowedBooks = cleanList(f.BorrowedBooks)
	if f.Name == "" {
		return &ValidationError{Field: "name", Message: "cannot be empty"}
	}
	return nil
}

func (f *BorrowerForm) duplicates(existing []*Borrower) bool {
	if f.IsEdit() {
		return false
	}
	for _, b := range existing {
		if b.Name == f.Name {
			return true
		}
	}
	return false
}

// cleanList trims values, drops empties and keeps the first of duplicates.
func cleanList(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
