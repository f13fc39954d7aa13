package library

import (
	"encoding/json"
	"time"
)

// Book is a catalogue entry owned by one user. AddDate and LastModified are
// stamped by the record store and are never written back by the client.
type Book struct {
	ID           string    `json:"-"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	Categories   []string  `json:"category"`
	Collection   string    `json:"collection,omitempty"`
	AddDate      time.Time `json:"-"`
	LastModified time.Time `json:"-"`
}

// Borrower holds weak references to books. Deleting a book does not touch
// BorrowedBooks; dangling IDs are resolved to placeholders at read time.
type Borrower struct {
	ID            string    `json:"-"`
	Name          string    `json:"name"`
	BorrowedBooks []string  `json:"borrowedBooks"`
	BorrowDate    time.Time `json:"borrowDate"`
}

// LogAction names what a log entry records.
type LogAction string

const (
	ActionBookCreate     LogAction = "book.create"
	ActionBookUpdate     LogAction = "book.update"
	ActionBookDelete     LogAction = "book.delete"
	ActionBorrowerCreate LogAction = "borrower.create"
	ActionBorrowerUpdate LogAction = "borrower.update"
	ActionBorrowerDelete LogAction = "borrower.delete"
	ActionBookReturn     LogAction = "borrower.return"
)

// LogEntry is an append-only audit record. BookID and BorrowerID are
// informational only. BookTitle and BorrowerName are captured when the entry
// is written so the log stays searchable after the records are gone.
type LogEntry struct {
	ID           string    `json:"-"`
	Action       LogAction `json:"type"`
	BookID       string    `json:"bookID,omitempty"`
	BookTitle    string    `json:"bookTitle,omitempty"`
	BorrowerID   string    `json:"borrowerID,omitempty"`
	BorrowerName string    `json:"borrowerName,omitempty"`
	Details      string    `json:"details"`
	Timestamp    time.Time `json:"timestamp"`
}

// User is an account known to the identity provider.
type User struct {
	ID            string `json:"id"`
	DisplayName   string `json:"displayName"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	PasswordHash  string `json:"-"` // Don't serialize password hash
}

// Record is a raw document as stored by a RecordStore.
type Record struct {
	ID        string
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}
