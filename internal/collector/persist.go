package collector

import (
	"context"

	"mcsr-analyzer/internal/db"
	"mcsr-analyzer/internal/mcsr"
	"mcsr-analyzer/internal/storage"
)

// Persister receives each user's fetched matches. Flush is called once after the last user.
type Persister interface {
	Persist(ctx context.Context, username string, matches []mcsr.Match) (added int, err error)
	Flush(ctx context.Context) error
}

// JSONPersister merges into an in-memory collection and writes the file on Flush
type JSONPersister struct {
	store      *storage.JSONStore
	collection *storage.Collection
}

// NewJSONPersister loads the current file so new matches are appended to it
func NewJSONPersister(store *storage.JSONStore) (*JSONPersister, error) {
	c, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &JSONPersister{store: store, collection: c}, nil
}

// Persist appends unconditionally; every fetched match counts as added
func (p *JSONPersister) Persist(_ context.Context, username string, matches []mcsr.Match) (int, error) {
	return storage.Merge(p.collection, username, matches), nil
}

// Flush overwrites the file with the merged collection
func (p *JSONPersister) Flush(_ context.Context) error {
	return p.store.Save(p.collection)
}

// Collection exposes the merged data
func (p *JSONPersister) Collection() *storage.Collection {
	return p.collection
}

// DBPersister inserts each match as it arrives; duplicates are ignored by primary key
type DBPersister struct {
	store db.Store
}

// NewDBPersister wraps an opened relational store
func NewDBPersister(store db.Store) *DBPersister {
	return &DBPersister{store: store}
}

func (p *DBPersister) Persist(ctx context.Context, username string, matches []mcsr.Match) (int, error) {
	return db.InsertMatches(ctx, p.store, username, matches)
}

// Flush is a no-op; rows are committed per insert
func (p *DBPersister) Flush(context.Context) error {
	return nil
}
