package library

import (
	"context"
	"path"
)

// RecordStore is the gateway to a schemaless document store. Reads always
// return whole collections; filtering happens client-side.
type RecordStore interface {
	ListCollection(ctx context.Context, path string) ([]Record, error)
	CreateRecord(ctx context.Context, path string, data any) (string, error)
	UpdateRecord(ctx context.Context, path, id string, data any) error
	DeleteRecord(ctx context.Context, path, id string) error
}

const (
	collectionBooks     = "books"
	collectionBorrowers = "borrowers"
	collectionLogs      = "logs"
)

// collectionPath namespaces a collection under the owning user.
func collectionPath(userID, collection string) string {
	return path.Join("users", userID, collection)
}
