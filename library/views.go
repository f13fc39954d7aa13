package library

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// ViewMode selects how a collection is rendered.
type ViewMode string

const (
	ViewList  ViewMode = "list"
	ViewGrid  ViewMode = "grid"
	ViewTable ViewMode = "table"
)

// ParseViewMode accepts list, grid or table.
func ParseViewMode(s string) (ViewMode, error) {
	switch m := ViewMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ViewList, ViewGrid, ViewTable:
		return m, nil
	}
	return "", fmt.Errorf("unknown view mode %q (want list, grid or table)", s)
}

// Selection is the ordered set of ids checked for a bulk action. The zero
// value is an empty selection.
type Selection struct {
	ids []string
	set map[string]bool
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{set: make(map[string]bool)}
}

// Add selects id. Selecting twice is a no-op.
func (s *Selection) Add(id string) {
	if s.set[id] {
		return
	}
	if s.set == nil {
		s.set = make(map[string]bool)
	}
	s.set[id] = true
	s.ids = append(s.ids, id)
}

// Toggle flips id and reports whether it is now selected.
func (s *Selection) Toggle(id string) bool {
	if !s.set[id] {
		s.Add(id)
		return true
	}
	s.Remove(id)
	return false
}

// Remove unselects id. Removing an id that is not selected is a no-op.
func (s *Selection) Remove(id string) {
	if !s.Has(id) {
		return
	}
	delete(s.set, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
}

// Has reports whether id is selected. A nil selection has nothing.
func (s *Selection) Has(id string) bool {
	return s != nil && s.set[id]
}

// IDs returns the selected ids in selection order.
func (s *Selection) IDs() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.ids...)
}

// Len is the number of selected ids.
func (s *Selection) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.ids = nil
	s.set = make(map[string]bool)
}

const unknownBook = "Unknown Book"

// RenderBooks writes books in the given mode. Selected rows are marked.
func RenderBooks(w io.Writer, books []*Book, mode ViewMode, sel *Selection) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books in library.")
		return
	}
	switch mode {
	case ViewTable:
		fmt.Fprintf(w, "%-3s %-8s %-30s %-22s %-24s %-14s %s\n", "", "ID", "Title", "Author", "Categories", "Collection", "Added")
		fmt.Fprintln(w, strings.Repeat("-", 118))
		for _, b := range books {
			fmt.Fprintf(w, "%-3s %-8s %-30s %-22s %-24s %-14s %s\n",
				mark(sel, b.ID),
				shortID(b.ID),
				truncateString(b.Title, 30),
				truncateString(b.Author, 22),
				truncateString(categoriesLabel(b.Categories), 24),
				truncateString(b.Collection, 14),
				dateLabel(b.AddDate.IsZero(), b.AddDate.Local().Format("2006-01-02")))
		}
	case ViewGrid:
		cards := make([][]string, 0, len(books))
		for _, b := range books {
			cards = append(cards, []string{
				mark(sel, b.ID) + " " + b.Title,
				"by " + b.Author,
				categoriesLabel(b.Categories),
				"Added: " + dateLabel(b.AddDate.IsZero(), b.AddDate.Local().Format("2006-01-02")),
				"ID: " + shortID(b.ID),
			})
		}
		renderGrid(w, cards, 3, 36)
	default:
		for i, b := range books {
			fmt.Fprintf(w, "%s %s\n", mark(sel, b.ID), b.Title)
			fmt.Fprintf(w, "    Author: %s | Categories: %s | Added: %s | ID: %s\n",
				b.Author, categoriesLabel(b.Categories),
				dateLabel(b.AddDate.IsZero(), b.AddDate.Local().Format("2006-01-02")), b.ID)
			if i < len(books)-1 {
				fmt.Fprintln(w, strings.Repeat("-", 60))
			}
		}
	}
}

// RenderBorrowers writes resolved borrower rows in the given mode.
func RenderBorrowers(w io.Writer, rows []BorrowerRow, mode ViewMode, sel *Selection) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No borrowers found.")
		return
	}
	switch mode {
	case ViewTable:
		fmt.Fprintf(w, "%-3s %-8s %-25s %-12s %s\n", "", "ID", "Name", "Borrowed", "Books")
		fmt.Fprintln(w, strings.Repeat("-", 100))
		for _, r := range rows {
			fmt.Fprintf(w, "%-3s %-8s %-25s %-12s %s\n",
				mark(sel, r.Borrower.ID),
				shortID(r.Borrower.ID),
				truncateString(r.Borrower.Name, 25),
				dateLabel(r.Borrower.BorrowDate.IsZero(), r.Borrower.BorrowDate.Local().Format("2006-01-02")),
				borrowedLabel(r.Books))
		}
	case ViewGrid:
		cards := make([][]string, 0, len(rows))
		for _, r := range rows {
			card := []string{mark(sel, r.Borrower.ID) + " " + r.Borrower.Name}
			if len(r.Books) == 0 {
				card = append(card, "No books borrowed")
			}
			for _, bb := range r.Books {
				card = append(card, "- "+bookTitle(bb))
			}
			card = append(card, "ID: "+shortID(r.Borrower.ID))
			cards = append(cards, card)
		}
		renderGrid(w, cards, 3, 36)
	default:
		for i, r := range rows {
			fmt.Fprintf(w, "%s %s (ID: %s)\n", mark(sel, r.Borrower.ID), r.Borrower.Name, r.Borrower.ID)
			if len(r.Books) == 0 {
				fmt.Fprintln(w, "    No books borrowed")
			}
			for _, bb := range r.Books {
				fmt.Fprintf(w, "    %s (Borrowed on: %s) [%s]\n", bookTitle(bb),
					dateLabel(r.Borrower.BorrowDate.IsZero(), r.Borrower.BorrowDate.Local().Format("2006-01-02")), bb.ID)
			}
			if i < len(rows)-1 {
				fmt.Fprintln(w, strings.Repeat("-", 60))
			}
		}
	}
}

// RenderDashboard writes the dashboard counters.
func RenderDashboard(w io.Writer, s DashboardStats) {
	fmt.Fprintf(w, "%-22s %d\n", "Total books:", s.TotalBooks)
	fmt.Fprintf(w, "%-22s %d\n", "Total borrowers:", s.TotalBorrowers)
	fmt.Fprintf(w, "%-22s %d\n", "Active borrowers:", s.ActiveBorrowers)
	fmt.Fprintf(w, "%-22s %d\n", "Books on loan:", s.BorrowedBooks)
	fmt.Fprintf(w, "%-22s %d\n", "Log entries:", s.LogEntries)
	if s.DanglingReferences > 0 {
		fmt.Fprintf(w, "%-22s %d\n", "Unknown references:", s.DanglingReferences)
	}
}

func renderGrid(w io.Writer, cards [][]string, perRow, width int) {
	for start := 0; start < len(cards); start += perRow {
		end := min(start+perRow, len(cards))
		row := cards[start:end]
		height := 0
		for _, c := range row {
			height = max(height, len(c))
		}
		for line := 0; line < height; line++ {
			var sb strings.Builder
			for _, c := range row {
				cell := ""
				if line < len(c) {
					cell = truncateString(c[line], width-2)
				}
				sb.WriteString(cell)
				sb.WriteString(strings.Repeat(" ", width-utf8.RuneCountInString(cell)))
			}
			fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
		}
		fmt.Fprintln(w)
	}
}

func mark(sel *Selection, id string) string {
	if sel.Has(id) {
		return "[x]"
	}
	return "[ ]"
}

func bookTitle(bb BorrowedBook) string {
	if bb.Status == RefUnavailable {
		return unknownBook
	}
	return bb.Title
}

func borrowedLabel(books []BorrowedBook) string {
	if len(books) == 0 {
		return "No books borrowed"
	}
	titles := make([]string, 0, len(books))
	for _, bb := range books {
		titles = append(titles, bookTitle(bb))
	}
	return strings.Join(titles, ", ")
}

func categoriesLabel(c []string) string {
	if len(c) == 0 {
		return "No categories"
	}
	return strings.Join(c, ", ")
}

func dateLabel(unknown bool, formatted string) string {
	if unknown {
		return "unknown"
	}
	return formatted
}

// ExpandID resolves a full id or a unique prefix of one (as printed in table
// and grid views) against candidates.
func ExpandID(candidates []string, prefix string) (string, bool) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", false
	}
	match := ""
	for _, id := range candidates {
		if id == prefix {
			return id, true
		}
		if strings.HasPrefix(id, prefix) {
			if match != "" {
				return "", false
			}
			match = id
		}
	}
	return match, match != ""
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncateString(s string, maxLength int) string {
	if utf8.RuneCountInString(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string([]rune(s)[:maxLength])
	}
	return string([]rune(s)[:maxLength-3]) + "..."
}
