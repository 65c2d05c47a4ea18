package theme

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=theme
type Repository interface {
	// CreateTheme returns ErrNameTaken when the name is in use.
	CreateTheme(ctx context.Context, t *Theme) error
	GetTheme(ctx context.Context, id uuid.UUID) (*Theme, error)
	GetThemeByName(ctx context.Context, name string) (*Theme, error)
	ListThemes(ctx context.Context) ([]*Theme, error)
	UpdateTheme(ctx context.Context, t *Theme) error
	DeleteTheme(ctx context.Context, id uuid.UUID) error
	// Activate makes id the only active theme in a single database
	// transaction.
	Activate(ctx context.Context, id uuid.UUID) (*Theme, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*Theme, error)
	// GetActive returns ErrNoActiveTheme when every theme is inactive.
	GetActive(ctx context.Context) (*Theme, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateParams struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Palette     Palette `yaml:"palette"`
	Active      bool    `yaml:"active"`
}

type UpdateParams struct {
	Name        *string
	Description *string
	Palette     *Palette
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Theme, error) {
	if err := params.Palette.Validate(); err != nil {
		return nil, err
	}

	t := &Theme{
		Name:        params.Name,
		Description: params.Description,
		Palette:     params.Palette,
	}
	if err := s.repo.CreateTheme(ctx, t); err != nil {
		return nil, err
	}

	if params.Active {
		return s.repo.Activate(ctx, t.ID)
	}

	return t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Theme, error) {
	return s.repo.GetTheme(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Theme, error) {
	return s.repo.ListThemes(ctx)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Theme, error) {
	t, err := s.repo.GetTheme(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		t.Name = *params.Name
	}

	if params.Description != nil {
		t.Description = *params.Description
	}

	if params.Palette != nil {
		if err := params.Palette.Validate(); err != nil {
			return nil, err
		}

		t.Palette = *params.Palette
	}

	if err := s.repo.UpdateTheme(ctx, t); err != nil {
		return nil, err
	}

	return t, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteTheme(ctx, id)
}

// Activate switches the site to id; whichever theme was active before is
// deactivated in the same step.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*Theme, error) {
	return s.repo.Activate(ctx, id)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*Theme, error) {
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) Active(ctx context.Context) (*Theme, error) {
	return s.repo.GetActive(ctx)
}

// LoadPresets reads a YAML list of themes.
func LoadPresets(r io.Reader) ([]CreateParams, error) {
	var doc struct {
		Themes []CreateParams `yaml:"themes"`
	}

	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding presets: %w", err)
	}

	for i, p := range doc.Themes {
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d: missing name", i+1)
		}

		if err := p.Palette.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.Name, err)
		}
	}

	return doc.Themes, nil
}

// Seed creates the presets that do not exist yet and returns how many were
// added. A preset marked active is only activated when no theme is.
func (s *Service) Seed(ctx context.Context, presets []CreateParams) (int, error) {
	_, err := s.repo.GetActive(ctx)
	hasActive := err == nil

	if err != nil && !errors.Is(err, ErrNoActiveTheme) {
		return 0, fmt.Errorf("checking active theme: %w", err)
	}

	created := 0

	for _, p := range presets {
		if _, err := s.repo.GetThemeByName(ctx, p.Name); err == nil {
			slog.Debug("theme preset already present", "name", p.Name)
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return created, err
		}

		p.Active = p.Active && !hasActive

		if _, err := s.Create(ctx, p); err != nil {
			return created, fmt.Errorf("seeding %q: %w", p.Name, err)
		}

		hasActive = hasActive || p.Active
		created++
	}

	return created, nil
}
