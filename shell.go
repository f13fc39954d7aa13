package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"librarydesk/library"

	"go.uber.org/zap"
)

// shell is the interactive command loop for one signed-in session.
type shell struct {
	*console
	mgr      *library.LibraryManager
	accounts *library.Accounts
	sess     *library.Session

	categories  []string
	mode        library.ViewMode
	bookSel     *library.Selection
	borrowerSel *library.Selection
}

func runShell(ctx context.Context, in io.Reader, out io.Writer) error {
	return withDatabase(func(db *library.Database) error {
		c := newConsole(in, out)
		accounts := library.NewAccounts(db)

		fmt.Fprintln(out, "Welcome to librarydesk! Sign in to continue (use 'librarydesk signup' to create an account).")
		sess, err := signIn(ctx, c, accounts)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		newShell(c, db, sess).loop(ctx)
		return nil
	})
}

func newShell(c *console, db *library.Database, sess *library.Session) *shell {
	mode, err := library.ParseViewMode(cfg.DefaultView)
	if err != nil {
		mode = library.ViewList
	}
	return &shell{
		console:     c,
		mgr:         library.NewLibraryManager(db, library.WithLogger(logger)),
		accounts:    library.NewAccounts(db),
		sess:        sess,
		categories:  cfg.Categories,
		mode:        mode,
		bookSel:     library.NewSelection(),
		borrowerSel: library.NewSelection(),
	}
}

func (s *shell) loop(ctx context.Context) {
	u, _ := s.sess.CurrentUser()
	name := u.DisplayName
	if name == "" {
		name = u.Email
	}
	fmt.Fprintf(s.out, "Signed in as %s.\n", name)
	fmt.Fprintln(s.out, "Available commands:")
	fmt.Fprintln(s.out, "  Books: add book, edit book, list books, search book, select books, delete books")
	fmt.Fprintln(s.out, "  Borrowers: add borrower, edit borrower, list borrowers, return book, select borrowers, delete borrowers")
	fmt.Fprintln(s.out, "  Overview: dashboard, logs, view")
	fmt.Fprintln(s.out, "  Account: profile, change password")
	fmt.Fprintln(s.out, "  System: exit")

	for {
		cmd, ok := s.prompt("\n> ")
		if !ok {
			return
		}
		switch cmd {
		case "add book":
			s.handleSubmitBook(ctx, library.NewBookForm(nil, s.categories))
		case "edit book":
			s.handleEditBook(ctx)
		case "list books":
			s.handleListBooks(ctx)
		case "search book":
			s.handleSearchBooks(ctx)
		case "select books":
			s.handleSelectBooks(ctx)
		case "delete books":
			s.handleDeleteBooks(ctx)
		case "add borrower":
			s.handleSubmitBorrower(ctx, library.NewBorrowerForm(nil))
		case "edit borrower":
			s.handleEditBorrower(ctx)
		case "list borrowers":
			s.handleListBorrowers(ctx)
		case "return book":
			s.handleReturnBook(ctx)
		case "select borrowers":
			s.handleSelectBorrowers(ctx)
		case "delete borrowers":
			s.handleDeleteBorrowers(ctx)
		case "dashboard":
			s.handleDashboard(ctx)
		case "logs":
			s.handleLogs(ctx)
		case "view":
			s.handleView()
		case "profile":
			s.handleProfile(ctx)
		case "change password":
			s.handleChangePassword(ctx)
		case "exit":
			fmt.Fprintln(s.out, "Goodbye!")
			return
		case "":
		default:
			fmt.Fprintln(s.out, "Unknown command. Type one of the available commands listed above.")
		}
	}
}

// fail reports err the way every handler does.
func (s *shell) fail(action string, err error) {
	logger.Debug(action+" failed", zap.Error(err))
	fmt.Fprintf(s.out, "Error: %s\n", library.UserMessage(err))
}

// ------------------ Books ------------------

func (s *shell) handleSubmitBook(ctx context.Context, f *library.BookForm) {
	if !s.fillBookForm(f) {
		return
	}
	id, err := s.mgr.SubmitBook(ctx, s.sess, f)
	if err != nil {
		s.fail("submit book", err)
		return
	}
	if f.IsEdit() {
		fmt.Fprintf(s.out, "Book updated successfully! (ID %s)\n", id)
	} else {
		fmt.Fprintf(s.out, "Book added successfully! (ID %s)\n", id)
	}
}

func (s *shell) fillBookForm(f *library.BookForm) bool {
	var ok bool
	if f.Title, ok = s.promptDefault("Title", f.Title); !ok {
		return false
	}
	if f.Author, ok = s.promptDefault("Author", f.Author); !ok {
		return false
	}
	fmt.Fprintf(s.out, "Suggested categories: %s\n", strings.Join(f.Suggested, ", "))
	cats, ok := s.promptDefault("Categories (comma separated)", strings.Join(f.Categories, ", "))
	if !ok {
		return false
	}
	f.Categories = splitList(cats)
	collection, ok := s.promptDefault("Collection (optional, '-' to clear)", f.Collection)
	if !ok {
		return false
	}
	if collection == "-" {
		collection = ""
	}
	f.Collection = collection
	return true
}

func (s *shell) handleEditBook(ctx context.Context) {
	books, err := s.mgr.Books(ctx, s.sess)
	if err != nil {
		s.fail("list books", err)
		return
	}
	input, ok := s.prompt("Book ID: ")
	if !ok {
		return
	}
	id, found := library.ExpandID(bookIDs(books), input)
	if !found {
		fmt.Fprintf(s.out, "Error: Book with ID %s not found\n", input)
		return
	}
	book, _ := library.NewBookIndex(books).Lookup(id)
	s.handleSubmitBook(ctx, library.NewBookForm(book, s.categories))
}

func (s *shell) handleListBooks(ctx context.Context) {
	books, err := s.mgr.Books(ctx, s.sess)
	if err != nil {
		s.fail("list books", err)
		return
	}
	authors, categories, collections := library.BookFacets(s.sess, books)

	var q library.BookQuery
	var ok bool
	if q.Search, ok = s.prompt("Search (Enter for all): "); !ok {
		return
	}
	if q.Authors, ok = s.promptSet("Authors", authors); !ok {
		return
	}
	if q.Categories, ok = s.promptSet("Categories", categories); !ok {
		return
	}
	if q.Collections, ok = s.promptSet("Collections", collections); !ok {
		return
	}
	if q.Sort, ok = s.promptSort("title, author, collection, added, modified"); !ok {
		return
	}

	view := library.ApplyBookQuery(s.sess, books, q)
	fmt.Fprintf(s.out, "Showing %d of %d book(s):\n", len(view), len(books))
	library.RenderBooks(s.out, view, s.mode, s.bookSel)
}

func (s *shell) handleSearchBooks(ctx context.Context) {
	query, ok := s.prompt("Query: ")
	if !ok {
		return
	}
	books, err := s.mgr.BookView(ctx, s.sess, library.BookQuery{Search: query, Sort: library.SortSpec{Field: library.SortTitle}})
	if err != nil {
		s.fail("search books", err)
		return
	}
	if len(books) == 0 {
		fmt.Fprintf(s.out, "No books found matching '%s'.\n", query)
		return
	}
	fmt.Fprintf(s.out, "Found %d book(s) matching '%s':\n", len(books), query)
	library.RenderBooks(s.out, books, s.mode, s.bookSel)
}

func (s *shell) handleSelectBooks(ctx context.Context) {
	books, err := s.mgr.Books(ctx, s.sess)
	if err != nil {
		s.fail("list books", err)
		return
	}
	s.toggleSelection(s.bookSel, bookIDs(books), "book")
}

func (s *shell) handleDeleteBooks(ctx context.Context) {
	books, err := s.mgr.Books(ctx, s.sess)
	if err != nil {
		s.fail("list books", err)
		return
	}
	ids, ok := s.promptIDs(s.bookSel, bookIDs(books), "Book")
	if !ok {
		return
	}
	res, err := s.mgr.DeleteBooks(ctx, s.sess, ids)
	s.reportDelete("book", res, err)
	for _, id := range res.Deleted {
		s.bookSel.Remove(id)
	}
	for _, id := range res.Missing {
		s.bookSel.Remove(id)
	}
}

// ------------------ Borrowers ------------------

func (s *shell) handleSubmitBorrower(ctx context.Context, f *library.BorrowerForm) {
	var ok bool
	if f.Name, ok = s.promptDefault("Name", f.Name); !ok {
		return
	}
	options, err := s.mgr.BorrowableBooks(ctx, s.sess, f.Editing)
	if err != nil {
		s.fail("list books", err)
		return
	}
	if len(options) == 0 {
		fmt.Fprintln(s.out, "No books available to borrow.")
	}
	for i, b := range options {
		fmt.Fprintf(s.out, "  %2d. %s by %s\n", i+1, b.Title, b.Author)
	}
	answer, ok := s.promptDefault("Borrowed books (numbers or IDs, comma separated, '-' for none)", strings.Join(f.BorrowedBooks, ", "))
	if !ok {
		return
	}
	if answer == "-" {
		f.BorrowedBooks = nil
	} else {
		f.BorrowedBooks = pickBooks(splitList(answer), options, f.BorrowedBooks)
	}

	id, err := s.mgr.SubmitBorrower(ctx, s.sess, f)
	if err != nil {
		s.fail("submit borrower", err)
		return
	}
	if f.IsEdit() {
		fmt.Fprintf(s.out, "Borrower updated successfully! (ID %s)\n", id)
	} else {
		fmt.Fprintf(s.out, "Borrower added successfully! (ID %s)\n", id)
	}
}

func (s *shell) handleEditBorrower(ctx context.Context) {
	br, ok := s.promptBorrower(ctx)
	if !ok {
		return
	}
	s.handleSubmitBorrower(ctx, library.NewBorrowerForm(br))
}

func (s *shell) handleListBorrowers(ctx context.Context) {
	var q library.BorrowerQuery
	var ok bool
	if q.Search, ok = s.prompt("Search (Enter for all): "); !ok {
		return
	}
	only, ok := s.prompt("Only borrowers with books? (y/N): ")
	if !ok {
		return
	}
	q.OnlyWithBooks = strings.EqualFold(only, "y") || strings.EqualFold(only, "yes")
	if q.Sort, ok = s.promptSort("name, borrowed, books"); !ok {
		return
	}
	rows, err := s.mgr.BorrowerView(ctx, s.sess, q)
	if err != nil {
		s.fail("list borrowers", err)
		return
	}
	library.RenderBorrowers(s.out, rows, s.mode, s.borrowerSel)
}

func (s *shell) handleReturnBook(ctx context.Context) {
	br, ok := s.promptBorrower(ctx)
	if !ok {
		return
	}
	if len(br.BorrowedBooks) == 0 {
		fmt.Fprintf(s.out, "%s has no borrowed books.\n", br.Name)
		return
	}
	books, err := s.mgr.Books(ctx, s.sess)
	if err != nil {
		s.fail("list books", err)
		return
	}
	resolved := library.ResolveBorrowedBooks(br, library.NewBookIndex(books))
	for i, bb := range resolved {
		title := bb.Title
		if bb.Status == library.RefUnavailable {
			title = "Unknown Book"
		}
		fmt.Fprintf(s.out, "  %2d. %s [%s]\n", i+1, title, bb.ID)
	}
	answer, ok := s.prompt("Book to return (number or ID): ")
	if !ok {
		return
	}
	bookID := answer
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(resolved) {
		bookID = resolved[n-1].ID
	} else if id, found := library.ExpandID(br.BorrowedBooks, answer); found {
		bookID = id
	}
	if err := s.mgr.ReturnBook(ctx, s.sess, br.ID, bookID); err != nil {
		s.fail("return book", err)
		return
	}
	fmt.Fprintf(s.out, "Book returned by %s\n", br.Name)
}

func (s *shell) handleSelectBorrowers(ctx context.Context) {
	borrowers, err := s.mgr.Borrowers(ctx, s.sess)
	if err != nil {
		s.fail("list borrowers", err)
		return
	}
	s.toggleSelection(s.borrowerSel, borrowerIDs(borrowers), "borrower")
}

func (s *shell) handleDeleteBorrowers(ctx context.Context) {
	borrowers, err := s.mgr.Borrowers(ctx, s.sess)
	if err != nil {
		s.fail("list borrowers", err)
		return
	}
	ids, ok := s.promptIDs(s.borrowerSel, borrowerIDs(borrowers), "Borrower")
	if !ok {
		return
	}
	res, err := s.mgr.DeleteBorrowers(ctx, s.sess, ids)
	s.reportDelete("borrower", res, err)
	for _, id := range res.Deleted {
		s.borrowerSel.Remove(id)
	}
	for _, id := range res.Missing {
		s.borrowerSel.Remove(id)
	}
}

func (s *shell) promptBorrower(ctx context.Context) (*library.Borrower, bool) {
	borrowers, err := s.mgr.Borrowers(ctx, s.sess)
	if err != nil {
		s.fail("list borrowers", err)
		return nil, false
	}
	input, ok := s.prompt("Borrower ID: ")
	if !ok {
		return nil, false
	}
	id, found := library.ExpandID(borrowerIDs(borrowers), input)
	if !found {
		fmt.Fprintf(s.out, "Error: Borrower with ID %s not found\n", input)
		return nil, false
	}
	for _, b := range borrowers {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}

// ------------------ Overview ------------------

func (s *shell) handleDashboard(ctx context.Context) {
	stats, err := s.mgr.Dashboard(ctx, s.sess)
	if err != nil {
		s.fail("dashboard", err)
		return
	}
	library.RenderDashboard(s.out, stats)
}

func (s *shell) handleLogs(ctx context.Context) {
	search, ok := s.prompt("Search logs (Enter for all): ")
	if !ok {
		return
	}
	entries, err := s.mgr.Logs(ctx, s.sess, search)
	if err != nil {
		s.fail("logs", err)
		return
	}
	if len(entries) == 0 {
		fmt.Fprintln(s.out, "No log entries.")
		return
	}
	for _, e := range entries {
		fmt.Fprintln(s.out, library.LogLine(e))
	}
}

func (s *shell) handleView() {
	answer, ok := s.prompt(fmt.Sprintf("View mode (list, grid, table) [%s]: ", s.mode))
	if !ok || answer == "" {
		return
	}
	mode, err := library.ParseViewMode(answer)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	s.mode = mode
	fmt.Fprintf(s.out, "View mode set to %s\n", mode)
}

// ------------------ Account ------------------

func (s *shell) handleProfile(ctx context.Context) {
	u, _ := s.sess.CurrentUser()
	fmt.Fprintf(s.out, "Email: %s (verified: %t)\n", u.Email, u.EmailVerified)
	name, ok := s.promptDefault("Display name", u.DisplayName)
	if !ok || name == u.DisplayName {
		return
	}
	if err := s.accounts.UpdateProfile(ctx, s.sess, name); err != nil {
		s.fail("update profile", err)
		return
	}
	fmt.Fprintln(s.out, "Profile updated successfully!")
}

func (s *shell) handleChangePassword(ctx context.Context) {
	current, err := s.readPassword("Current password: ")
	if err != nil {
		return
	}
	next, err := s.readPassword("New password: ")
	if err != nil {
		return
	}
	confirm, err := s.readPassword("Confirm new password: ")
	if err != nil {
		return
	}
	if next != confirm {
		fmt.Fprintln(s.out, "Error: Passwords do not match")
		return
	}
	if err := s.accounts.ChangePassword(ctx, s.sess, current, next); err != nil {
		s.fail("change password", err)
		return
	}
	fmt.Fprintln(s.out, "Password updated successfully!")
}

// ------------------ Prompt helpers ------------------

// promptDefault shows current in brackets and keeps it on an empty answer.
func (s *shell) promptDefault(label, current string) (string, bool) {
	if current != "" {
		label = fmt.Sprintf("%s [%s]", label, current)
	}
	answer, ok := s.prompt(label + ": ")
	if !ok {
		return "", false
	}
	if answer == "" {
		return current, true
	}
	return answer, true
}

func (s *shell) promptSet(label string, known []string) ([]string, bool) {
	if len(known) > 0 {
		fmt.Fprintf(s.out, "%s available: %s\n", label, strings.Join(known, ", "))
	}
	answer, ok := s.prompt(label + " (comma separated, Enter for any): ")
	if !ok {
		return nil, false
	}
	return splitList(answer), true
}

func (s *shell) promptSort(fields string) (library.SortSpec, bool) {
	for {
		answer, ok := s.prompt(fmt.Sprintf("Sort by (%s; Enter for none): ", fields))
		if !ok {
			return library.SortSpec{}, false
		}
		field, err := library.ParseSortField(answer)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			continue
		}
		if field == library.SortNone {
			return library.SortSpec{}, true
		}
		dir, ok := s.prompt("Direction (asc/desc) [asc]: ")
		if !ok {
			return library.SortSpec{}, false
		}
		desc, err := library.ParseSortDirection(dir)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			continue
		}
		return library.SortSpec{Field: field, Desc: desc}, true
	}
}

func (s *shell) toggleSelection(sel *library.Selection, candidates []string, noun string) {
	answer, ok := s.prompt(fmt.Sprintf("%s IDs to toggle (space separated): ", strings.ToUpper(noun[:1])+noun[1:]))
	if !ok {
		return
	}
	for _, input := range strings.Fields(answer) {
		id, found := library.ExpandID(candidates, input)
		if !found {
			fmt.Fprintf(s.out, "No %s matches %s\n", noun, input)
			continue
		}
		sel.Toggle(id)
	}
	fmt.Fprintf(s.out, "%d %s(s) selected\n", sel.Len(), noun)
}

// promptIDs reads ids for a bulk action, defaulting to the selection.
func (s *shell) promptIDs(sel *library.Selection, candidates []string, noun string) ([]string, bool) {
	label := fmt.Sprintf("%s IDs (space separated", noun)
	if sel.Len() > 0 {
		label += fmt.Sprintf(", Enter for %d selected", sel.Len())
	}
	answer, ok := s.prompt(label + "): ")
	if !ok {
		return nil, false
	}
	var ids []string
	if answer == "" {
		ids = sel.IDs()
	}
	for _, input := range strings.Fields(answer) {
		id, found := library.ExpandID(candidates, input)
		if !found {
			fmt.Fprintf(s.out, "Error: %s with ID %s not found\n", noun, input)
			return nil, false
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		fmt.Fprintln(s.out, "Nothing to delete.")
		return nil, false
	}
	confirm, ok := s.prompt(fmt.Sprintf("Delete %d %s(s)? (y/N): ", len(ids), strings.ToLower(noun)))
	if !ok || !(strings.EqualFold(confirm, "y") || strings.EqualFold(confirm, "yes")) {
		return nil, false
	}
	return ids, true
}

func (s *shell) reportDelete(noun string, res library.BulkDeleteResult, err error) {
	fmt.Fprintf(s.out, "Deleted %d %s(s).\n", len(res.Deleted), noun)
	if len(res.Missing) > 0 {
		fmt.Fprintf(s.out, "Already gone: %s\n", strings.Join(res.Missing, ", "))
	}
	if err == nil {
		return
	}
	logger.Warn("bulk delete incomplete", zap.String("failed", res.Failed), zap.Error(err))
	fmt.Fprintf(s.out, "Error: could not delete %s %s: %s\n", noun, res.Failed, library.UserMessage(err))
	if len(res.Skipped) > 0 {
		fmt.Fprintf(s.out, "Not attempted: %s\n", strings.Join(res.Skipped, ", "))
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// pickBooks maps 1-based option numbers and id prefixes to book ids. Ids the
// borrower already holds are accepted even when they are no longer offered.
func pickBooks(answers []string, options []*library.Book, held []string) []string {
	ids := make([]string, 0, len(answers))
	candidates := append(bookIDs(options), held...)
	for _, a := range answers {
		if n, err := strconv.Atoi(a); err == nil && n >= 1 && n <= len(options) {
			ids = append(ids, options[n-1].ID)
			continue
		}
		if id, ok := library.ExpandID(candidates, a); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func bookIDs(books []*library.Book) []string {
	ids := make([]string, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	return ids
}

func borrowerIDs(borrowers []*library.Borrower) []string {
	ids := make([]string, 0, len(borrowers))
	for _, b := range borrowers {
		ids = append(ids, b.ID)
	}
	return ids
}
