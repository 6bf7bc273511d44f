package catalog

import (
	"context"
	"sync"
)

type MemoryRepository struct {
	mu       sync.RWMutex
	products []Product
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) List(_ context.Context) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Product, len(r.products))
	copy(out, r.products)
	return out, nil
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (*Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, ErrProductNotFound
}

func (r *MemoryRepository) SeedIfEmpty(_ context.Context, products []Product) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.products) > 0 {
		return 0, nil
	}
	for i, p := range products {
		p.ID = int64(i + 1)
		r.products = append(r.products, p)
	}
	return len(products), nil
}
