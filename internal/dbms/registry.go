package dbms

import (
	"context"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// Registry holds the databases of one application. It is constructed by
// the hosting binary and passed to whatever needs database access.
type Registry struct {
	mu        sync.RWMutex
	databases map[string]*Database
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{databases: make(map[string]*Database)}
}

// Add registers db under its name.
func (r *Registry) Add(db *Database) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.databases[db.Name()]; exists {
		return errors.Wrapf(ErrDuplicateDatabase, "%q", db.Name())
	}
	r.databases[db.Name()] = db
	return nil
}

// Get returns the database registered under name.
func (r *Registry) Get(name string) (*Database, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	db, ok := r.databases[name]
	if !ok {
		return nil, errors.Wrapf(ErrDatabaseNotFound, "%q", name)
	}
	return db, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.databases))
	for name := range r.databases {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Databases returns the registered databases in name order.
func (r *Registry) Databases() []*Database {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	dbs := make([]*Database, 0, len(names))
	for _, name := range names {
		dbs = append(dbs, r.databases[name])
	}
	return dbs
}

// Open opens every database in parallel and fails if any fails.
func (r *Registry) Open(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, db := range r.Databases() {
		g.Go(func() error {
			return db.Open(ctx)
		})
	}
	return g.Wait()
}

// Close closes every database and returns their errors joined.
func (r *Registry) Close() error {
	var errs []error
	for _, db := range r.Databases() {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns the statistics of every database in name order.
func (r *Registry) Stats() []Stats {
	dbs := r.Databases()
	stats := make([]Stats, 0, len(dbs))
	for _, db := range dbs {
		stats = append(stats, db.Stats())
	}
	return stats
}
