package category

import (
	"context"
	"strings"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=category
type Repository interface {
	FindCategory(ctx context.Context, title string) (string, error)
	CreateMapping(ctx context.Context, keyword, category string) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Suggest returns the category of the longest learned keyword contained in
// title, or an empty string when nothing matches.
func (s *Service) Suggest(ctx context.Context, title string) (string, error) {
	return s.repo.FindCategory(ctx, strings.TrimSpace(title))
}

// Learn remembers that listings whose title contains keyword belong to category.
func (s *Service) Learn(ctx context.Context, keyword, category string) error {
	return s.repo.CreateMapping(ctx, strings.ToLower(strings.TrimSpace(keyword)), strings.TrimSpace(category))
}
