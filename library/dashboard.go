package library

import "context"

// DashboardStats are the counters shown on the dashboard.
type DashboardStats struct {
	TotalBooks         int
	TotalBorrowers     int
	ActiveBorrowers    int // borrowers holding at least one book
	BorrowedBooks      int // distinct live books referenced by any borrower
	LogEntries         int
	DanglingReferences int
}

// Dashboard computes the counters from fresh snapshots of all collections.
func (lm *LibraryManager) Dashboard(ctx context.Context, sess *Session) (DashboardStats, error) {
	var stats DashboardStats
	books, err := lm.Books(ctx, sess)
	if err != nil {
		return stats, err
	}
	borrowers, err := lm.Borrowers(ctx, sess)
	if err != nil {
		return stats, err
	}
	logs, _, err := lm.list(ctx, sess, collectionLogs)
	if err != nil {
		return stats, err
	}

	idx := NewBookIndex(books)
	borrowed := make(map[string]bool)
	for _, br := range borrowers {
		if len(br.BorrowedBooks) > 0 {
			stats.ActiveBorrowers++
		}
		for _, id := range br.BorrowedBooks {
			if _, ok := idx.Lookup(id); ok {
				borrowed[id] = true
			}
		}
	}
	stats.TotalBooks = len(books)
	stats.TotalBorrowers = len(borrowers)
	stats.BorrowedBooks = len(borrowed)
	stats.LogEntries = len(logs)
	stats.DanglingReferences = DanglingReferences(borrowers, idx)
	return stats, nil
}
