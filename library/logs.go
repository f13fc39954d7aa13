package library

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// addLog appends an audit entry. A failure is reported through the logger
// only; the write it describes has already succeeded.
func (lm *LibraryManager) addLog(ctx context.Context, sess *Session, e LogEntry) {
	uid, err := sess.userID()
	if err != nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = lm.now()
	}
	if _, err := lm.store.CreateRecord(ctx, collectionPath(uid, collectionLogs), &e); err != nil {
		lm.log.Warn("add log failed", zap.String("action", string(e.Action)), zap.Error(err))
	}
}

// Logs returns the audit entries matching search, newest first.
func (lm *LibraryManager) Logs(ctx context.Context, sess *Session, search string) ([]*LogEntry, error) {
	records, _, err := lm.list(ctx, sess, collectionLogs)
	if err != nil {
		return nil, err
	}
	entries := make([]*LogEntry, 0, len(records))
	for _, r := range records {
		var e LogEntry
		lm.decode(r, &e)
		e.ID = r.ID
		if e.Timestamp.IsZero() {
			e.Timestamp = r.CreatedAt
		}
		entries = append(entries, &e)
	}
	return FilterLogs(entries, search), nil
}

// FilterLogs keeps entries whose action, details, book title or borrower
// name contain search (case-insensitive) and orders them newest first. Equal
// timestamps keep input order.
func FilterLogs(entries []*LogEntry, search string) []*LogEntry {
	term := normalizeTerm(search)
	out := make([]*LogEntry, 0, len(entries))
	for _, e := range entries {
		if e != nil && containsTerm(term, string(e.Action), e.Details, e.BookTitle, e.BorrowerName) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b *LogEntry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out
}

// LogLine formats one entry for terminal output.
func LogLine(e *LogEntry) string {
	var sb strings.Builder
	sb.WriteString(e.Timestamp.Local().Format("2006-01-02 15:04"))
	sb.WriteString("  ")
	sb.WriteString(string(e.Action))
	sb.WriteString("  ")
	sb.WriteString(e.Details)
	return sb.String()
}
