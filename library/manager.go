package library

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LibraryManager is a thin façade over a RecordStore, keeping CLI code simple.
// Every call takes the session explicitly; nothing is read from globals.
type LibraryManager struct {
	store RecordStore
	log   *zap.Logger
	now   func() time.Time
}

// Option configures a LibraryManager.
type Option func(*LibraryManager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(m *LibraryManager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock overrides time.Now for log timestamps and borrow dates.
func WithClock(now func() time.Time) Option {
	return func(m *LibraryManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewLibraryManager wraps store.
func NewLibraryManager(store RecordStore, opts ...Option) *LibraryManager {
	m := &LibraryManager{
		store: store,
		log:   zap.NewNop(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ------------------ Fetch helpers ------------------

func (lm *LibraryManager) list(ctx context.Context, sess *Session, collection string) ([]Record, string, error) {
	uid, err := sess.userID()
	if err != nil {
		return nil, "", err
	}
	path := collectionPath(uid, collection)
	records, err := lm.store.ListCollection(ctx, path)
	if err != nil {
		lm.log.Warn("list collection failed", zap.String("path", path), zap.Error(err))
		return nil, path, fmt.Errorf("list %s: %w", collection, err)
	}
	return records, path, nil
}

// decode fills v from r. Malformed bodies are logged and leave v zeroed so
// that one bad document cannot hide the rest of the collection.
func (lm *LibraryManager) decode(r Record, v any) {
	if len(r.Data) == 0 {
		return
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		lm.log.Warn("malformed record", zap.String("id", r.ID), zap.Error(err))
	}
}

// Books fetches the whole book collection in fetch order.
func (lm *LibraryManager) Books(ctx context.Context, sess *Session) ([]*Book, error) {
	records, _, err := lm.list(ctx, sess, collectionBooks)
	if err != nil {
		return nil, err
	}
	books := make([]*Book, 0, len(records))
	for _, r := range records {
		var b Book
		lm.decode(r, &b)
		b.ID = r.ID
		b.AddDate = r.CreatedAt
		b.LastModified = r.UpdatedAt
		books = append(books, &b)
	}
	return books, nil
}

// Borrowers fetches the whole borrower collection in fetch order.
func (lm *LibraryManager) Borrowers(ctx context.Context, sess *Session) ([]*Borrower, error) {
	records, _, err := lm.list(ctx, sess, collectionBorrowers)
	if err != nil {
		return nil, err
	}
	borrowers := make([]*Borrower, 0, len(records))
	for _, r := range records {
		var b Borrower
		lm.decode(r, &b)
		b.ID = r.ID
		borrowers = append(borrowers, &b)
	}
	return borrowers, nil
}

// Book looks a single book up in a fresh snapshot.
func (lm *LibraryManager) Book(ctx context.Context, sess *Session, id string) (*Book, bool, error) {
	books, err := lm.Books(ctx, sess)
	if err != nil {
		return nil, false, err
	}
	b, ok := NewBookIndex(books).Lookup(id)
	return b, ok, nil
}

// Borrower looks a single borrower up in a fresh snapshot.
func (lm *LibraryManager) Borrower(ctx context.Context, sess *Session, id string) (*Borrower, bool, error) {
	borrowers, err := lm.Borrowers(ctx, sess)
	if err != nil {
		return nil, false, err
	}
	for _, b := range borrowers {
		if b.ID == id {
			return b, true, nil
		}
	}
	return nil, false, nil
}

// ------------------ Views ------------------

// BorrowerRow is a borrower with its references resolved.
type BorrowerRow struct {
	Borrower *Borrower
	Books    []BorrowedBook
}

// BookView fetches the books and applies q.
func (lm *LibraryManager) BookView(ctx context.Context, sess *Session, q BookQuery) ([]*Book, error) {
	books, err := lm.Books(ctx, sess)
	if err != nil {
		return nil, err
	}
	return ApplyBookQuery(sess, books, q), nil
}

// BorrowerView fetches borrowers and books, applies q and resolves every
// borrowed-book reference against one index of the book snapshot.
func (lm *LibraryManager) BorrowerView(ctx context.Context, sess *Session, q BorrowerQuery) ([]BorrowerRow, error) {
	borrowers, err := lm.Borrowers(ctx, sess)
	if err != nil {
		return nil, err
	}
	books, err := lm.Books(ctx, sess)
	if err != nil {
		return nil, err
	}
	idx := NewBookIndex(books)
	filtered := ApplyBorrowerQuery(sess, borrowers, q)
	rows := make([]BorrowerRow, 0, len(filtered))
	for _, b := range filtered {
		rows = append(rows, BorrowerRow{Borrower: b, Books: ResolveBorrowedBooks(b, idx)})
	}
	return rows, nil
}

// BorrowableBooks lists the books a borrower form may offer. editing is the
// borrower being edited, or nil.
func (lm *LibraryManager) BorrowableBooks(ctx context.Context, sess *Session, editing *Borrower) ([]*Book, error) {
	books, err := lm.Books(ctx, sess)
	if err != nil {
		return nil, err
	}
	borrowers, err := lm.Borrowers(ctx, sess)
	if err != nil {
		return nil, err
	}
	return AvailableBooks(books, borrowers, editing), nil
}

// ------------------ Form submission ------------------

// SubmitBook validates the form, rejects a duplicate title+author on create,
// and writes the book. It returns the id of the written record.
func (lm *LibraryManager) SubmitBook(ctx context.Context, sess *Session, f *BookForm) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	existing, err := lm.Books(ctx, sess)
	if err != nil {
		return "", err
	}
	if f.duplicates(existing) {
		return "", ErrDuplicateBook
	}
	uid, _ := sess.userID()
	path := collectionPath(uid, collectionBooks)

	if f.IsEdit() {
		id := f.Editing.ID
		if err := lm.store.UpdateRecord(ctx, path, id, f.book()); err != nil {
			lm.log.Warn("update book failed", zap.String("id", id), zap.Error(err))
			return "", fmt.Errorf("update book: %w", err)
		}
		lm.log.Debug("book updated", zap.String("id", id))
		lm.addLog(ctx, sess, LogEntry{Action: ActionBookUpdate, BookID: id, BookTitle: f.Title,
			Details: fmt.Sprintf("Updated book '%s' by %s", f.Title, f.Author)})
		return id, nil
	}

	id, err := lm.store.CreateRecord(ctx, path, f.book())
	if err != nil {
		lm.log.Warn("create book failed", zap.String("title", f.Title), zap.Error(err))
		return "", fmt.Errorf("create book: %w", err)
	}
	lm.log.Debug("book created", zap.String("id", id))
	lm.addLog(ctx, sess, LogEntry{Action: ActionBookCreate, BookID: id, BookTitle: f.Title,
		Details: fmt.Sprintf("Added book '%s' by %s", f.Title, f.Author)})
	return id, nil
}

// SubmitBorrower validates the form, rejects a duplicate name on create,
// stamps the borrow date and writes the borrower.
func (lm *LibraryManager) SubmitBorrower(ctx context.Context, sess *Session, f *BorrowerForm) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	existing, err := lm.Borrowers(ctx, sess)
	if err != nil {
		return "", err
	}
	if f.duplicates(existing) {
		return "", ErrDuplicateBorrower
	}
	books, err := lm.Books(ctx, sess)
	if err != nil {
		return "", err
	}
	uid, _ := sess.userID()
	path := collectionPath(uid, collectionBorrowers)
	body := &Borrower{Name: f.Name, BorrowedBooks: f.BorrowedBooks, BorrowDate: lm.now()}
	holding := holdingLabel(ResolveBorrowedBooks(body, NewBookIndex(books)))

	if f.IsEdit() {
		id := f.Editing.ID
		if err := lm.store.UpdateRecord(ctx, path, id, body); err != nil {
			lm.log.Warn("update borrower failed", zap.String("id", id), zap.Error(err))
			return "", fmt.Errorf("update borrower: %w", err)
		}
		lm.addLog(ctx, sess, LogEntry{Action: ActionBorrowerUpdate, BorrowerID: id, BorrowerName: f.Name,
			Details: fmt.Sprintf("Updated borrower '%s' (%s)", f.Name, holding)})
		return id, nil
	}

	id, err := lm.store.CreateRecord(ctx, path, body)
	if err != nil {
		lm.log.Warn("create borrower failed", zap.String("name", f.Name), zap.Error(err))
		return "", fmt.Errorf("create borrower: %w", err)
	}
	lm.addLog(ctx, sess, LogEntry{Action: ActionBorrowerCreate, BorrowerID: id, BorrowerName: f.Name,
		Details: fmt.Sprintf("Added borrower '%s' (%s)", f.Name, holding)})
	return id, nil
}

// holdingLabel lists borrowed titles for a log line. Dangling references
// keep their id.
func holdingLabel(books []BorrowedBook) string {
	if len(books) == 0 {
		return "no books"
	}
	titles := make([]string, 0, len(books))
	for _, bb := range books {
		if bb.Status == RefUnavailable {
			titles = append(titles, "book "+bb.ID)
			continue
		}
		titles = append(titles, "'"+bb.Title+"'")
	}
	return "holding " + strings.Join(titles, ", ")
}

// ------------------ Deletion ------------------

// BulkDeleteResult describes how far a batch delete got. Missing lists ids
// that were not in the collection when the batch started; they are neither
// deleted nor logged. Failed is empty when every delete succeeded; Skipped
// lists ids after the failure that were never attempted.
type BulkDeleteResult struct {
	Deleted []string
	Missing []string
	Failed  string
	Skipped []string
}

// DeleteBooks deletes ids one at a time, in order, stopping at the first
// failure. Borrowers referencing a deleted book are left as they are.
func (lm *LibraryManager) DeleteBooks(ctx context.Context, sess *Session, ids []string) (BulkDeleteResult, error) {
	books, err := lm.Books(ctx, sess)
	if err != nil {
		return BulkDeleteResult{}, err
	}
	idx := NewBookIndex(books)
	return lm.deleteAll(ctx, sess, collectionBooks, ids, func(id string) (LogEntry, bool) {
		b, ok := idx.Lookup(id)
		if !ok {
			return LogEntry{}, false
		}
		return LogEntry{Action: ActionBookDelete, BookID: id, BookTitle: b.Title,
			Details: fmt.Sprintf("Deleted book '%s' by %s", b.Title, b.Author)}, true
	})
}

// DeleteBorrowers is DeleteBooks for borrowers.
func (lm *LibraryManager) DeleteBorrowers(ctx context.Context, sess *Session, ids []string) (BulkDeleteResult, error) {
	borrowers, err := lm.Borrowers(ctx, sess)
	if err != nil {
		return BulkDeleteResult{}, err
	}
	byID := make(map[string]*Borrower, len(borrowers))
	for _, b := range borrowers {
		byID[b.ID] = b
	}
	return lm.deleteAll(ctx, sess, collectionBorrowers, ids, func(id string) (LogEntry, bool) {
		b, ok := byID[id]
		if !ok {
			return LogEntry{}, false
		}
		return LogEntry{Action: ActionBorrowerDelete, BorrowerID: id, BorrowerName: b.Name,
			Details: fmt.Sprintf("Deleted borrower '%s'", b.Name)}, true
	})
}

// deleteAll runs the batch. entryFor returns the audit entry for an id of
// the pre-delete snapshot, or false when the id is not in it.
func (lm *LibraryManager) deleteAll(ctx context.Context, sess *Session, collection string, ids []string, entryFor func(id string) (LogEntry, bool)) (BulkDeleteResult, error) {
	var res BulkDeleteResult
	uid, err := sess.userID()
	if err != nil {
		return res, err
	}
	path := collectionPath(uid, collection)
	for i, id := range ids {
		entry, ok := entryFor(id)
		if !ok {
			lm.log.Debug("delete of missing record skipped", zap.String("path", path), zap.String("id", id))
			res.Missing = append(res.Missing, id)
			continue
		}
		if err := lm.store.DeleteRecord(ctx, path, id); err != nil {
			lm.log.Warn("bulk delete stopped", zap.String("path", path), zap.String("id", id),
				zap.Int("deleted", len(res.Deleted)), zap.Error(err))
			res.Failed = id
			res.Skipped = append([]string(nil), ids[i+1:]...)
			return res, &BulkDeleteError{ID: id, Err: err}
		}
		res.Deleted = append(res.Deleted, id)
		lm.addLog(ctx, sess, entry)
	}
	return res, nil
}

// ReturnBook removes bookID from a borrower's list. The borrow date is kept.
func (lm *LibraryManager) ReturnBook(ctx context.Context, sess *Session, borrowerID, bookID string) error {
	br, ok, err := lm.Borrower(ctx, sess, borrowerID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("return book: %w: borrower %s", ErrRecordNotFound, borrowerID)
	}
	remaining := make([]string, 0, len(br.BorrowedBooks))
	for _, id := range br.BorrowedBooks {
		if id != bookID {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == len(br.BorrowedBooks) {
		return fmt.Errorf("return book: %w: book %s is not borrowed by %s", ErrRecordNotFound, bookID, br.Name)
	}
	book, found, err := lm.Book(ctx, sess, bookID)
	if err != nil {
		return err
	}
	uid, _ := sess.userID()
	body := &Borrower{Name: br.Name, BorrowedBooks: remaining, BorrowDate: br.BorrowDate}
	if err := lm.store.UpdateRecord(ctx, collectionPath(uid, collectionBorrowers), borrowerID, body); err != nil {
		lm.log.Warn("return book failed", zap.String("borrower", borrowerID), zap.Error(err))
		return fmt.Errorf("return book: %w", err)
	}
	entry := LogEntry{Action: ActionBookReturn, BookID: bookID, BorrowerID: borrowerID, BorrowerName: br.Name,
		Details: fmt.Sprintf("%s returned book %s", br.Name, bookID)}
	if found {
		entry.BookTitle = book.Title
		entry.Details = fmt.Sprintf("%s returned '%s' by %s", br.Name, book.Title, book.Author)
	}
	lm.addLog(ctx, sess, entry)
	return nil
}
