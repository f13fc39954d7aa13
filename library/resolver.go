package library

// RefStatus tells whether a borrowed-book reference points at a live book.
type RefStatus string

const (
	RefResolved    RefStatus = "resolved"
	RefUnavailable RefStatus = "unavailable"
)

// BorrowedBook is the display tuple for one entry of Borrower.BorrowedBooks.
// Title and Author are empty when Status is RefUnavailable.
type BorrowedBook struct {
	ID     string
	Title  string
	Author string
	Status RefStatus
}

// BookIndex maps book ids to books for one snapshot of the collection.
type BookIndex struct {
	byID map[string]*Book
}

// NewBookIndex indexes books. Later duplicates of an id win.
func NewBookIndex(books []*Book) *BookIndex {
	idx := &BookIndex{byID: make(map[string]*Book, len(books))}
	for _, b := range books {
		if b != nil && b.ID != "" {
			idx.byID[b.ID] = b
		}
	}
	return idx
}

// Lookup returns the book with id, if the snapshot has one.
func (idx *BookIndex) Lookup(id string) (*Book, bool) {
	if idx == nil {
		return nil, false
	}
	b, ok := idx.byID[id]
	return b, ok
}

// Len reports the number of indexed books.
func (idx *BookIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.byID)
}

// ResolveBorrowedBooks returns one entry per reference, in borrowed order.
// Missing books become RefUnavailable entries instead of being dropped.
func ResolveBorrowedBooks(b *Borrower, idx *BookIndex) []BorrowedBook {
	if b == nil {
		return nil
	}
	out := make([]BorrowedBook, 0, len(b.BorrowedBooks))
	for _, id := range b.BorrowedBooks {
		book, ok := idx.Lookup(id)
		if !ok {
			out = append(out, BorrowedBook{ID: id, Status: RefUnavailable})
			continue
		}
		out = append(out, BorrowedBook{ID: id, Title: book.Title, Author: book.Author, Status: RefResolved})
	}
	return out
}

// AvailableBooks lists books that no borrower other than editing holds, in
// the order of books. editing may be nil when creating a borrower.
func AvailableBooks(books []*Book, borrowers []*Borrower, editing *Borrower) []*Book {
	taken := make(map[string]bool)
	for _, br := range borrowers {
		if br == nil || (editing != nil && br.ID == editing.ID) {
			continue
		}
		for _, id := range br.BorrowedBooks {
			taken[id] = true
		}
	}
	out := make([]*Book, 0, len(books))
	for _, b := range books {
		if b != nil && !taken[b.ID] {
			out = append(out, b)
		}
	}
	return out
}

// DanglingReferences counts borrowed-book ids that idx cannot resolve.
func DanglingReferences(borrowers []*Borrower, idx *BookIndex) int {
	n := 0
	for _, br := range borrowers {
		if br == nil {
			continue
		}
		for _, id := range br.BorrowedBooks {
			if _, ok := idx.Lookup(id); !ok {
				n++
			}
		}
	}
	return n
}
