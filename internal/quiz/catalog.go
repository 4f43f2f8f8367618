package quiz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrQuizNotFound is returned when a provider has no quiz with the requested ID.
var ErrQuizNotFound = errors.New("quiz not found")

// Provider supplies immutable quiz snapshots to room creation.
type Provider interface {
	Get(ctx context.Context, id string) (*Quiz, error)
	List(ctx context.Context) ([]*Quiz, error)
}

// Catalog is an in-memory Provider. It is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	quizzes map[string]*Quiz
}

// NewCatalog builds a Catalog from the given quizzes.
//
// Precondition: every quiz must pass Validate.
// Postcondition: Returns an error if two quizzes share an ID.
func NewCatalog(quizzes []*Quiz) (*Catalog, error) {
	c := &Catalog{quizzes: make(map[string]*Quiz, len(quizzes))}
	for _, q := range quizzes {
		if err := c.Add(q); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NewCatalogFromDir loads every quiz file in dir into a Catalog.
func NewCatalogFromDir(dir string) (*Catalog, error) {
	quizzes, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return NewCatalog(quizzes)
}

// Add registers a quiz.
//
// Postcondition: Returns an error if the quiz is invalid or its ID is taken.
func (c *Catalog) Add(q *Quiz) error {
	if err := q.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.quizzes[q.ID]; exists {
		return fmt.Errorf("quiz %q already registered", q.ID)
	}
	c.quizzes[q.ID] = q
	return nil
}

// Get implements Provider.
func (c *Catalog) Get(_ context.Context, id string) (*Quiz, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quizzes[id]
	if !ok {
		return nil, fmt.Errorf("quiz %q: %w", id, ErrQuizNotFound)
	}
	return q, nil
}

// List implements Provider. Quizzes are ordered by ID.
func (c *Catalog) List(_ context.Context) ([]*Quiz, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Quiz, 0, len(c.quizzes))
	for _, q := range c.quizzes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len returns the number of quizzes in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quizzes)
}
