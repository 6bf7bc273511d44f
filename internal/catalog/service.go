package catalog

import (
	"context"
	"log/slog"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// List returns every product in storage order.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Seed(ctx context.Context) (int, error) {
	n, err := s.repo.SeedIfEmpty(ctx, DefaultProducts())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("catalog seeded", "products", n)
	}
	return n, nil
}
