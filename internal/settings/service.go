package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/babyresell/babyresell/internal/item"
)

// Record is the singleton row as stored.
type Record struct {
	ID        uuid.UUID
	Data      json.RawMessage
	UpdatedAt time.Time
}

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=settings
type Repository interface {
	// GetOrCreate returns the singleton row, inserting it on first use.
	// Concurrent first calls still produce a single row.
	GetOrCreate(ctx context.Context) (*Record, error)
	Save(ctx context.Context, id uuid.UUID, data json.RawMessage) (time.Time, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// load returns the row and its stored document, without defaults.
func (s *Service) load(ctx context.Context) (*Record, map[string]any, error) {
	rec, err := s.repo.GetOrCreate(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading settings: %w", err)
	}

	stored := map[string]any{}
	if len(rec.Data) > 0 {
		if err := json.Unmarshal(rec.Data, &stored); err != nil {
			return nil, nil, fmt.Errorf("decoding stored settings: %w", err)
		}
	}

	return rec, stored, nil
}

func build(rec *Record, stored map[string]any, updatedAt time.Time) (*Settings, error) {
	defaults, err := toMap(Defaults())
	if err != nil {
		return nil, err
	}

	doc, err := decodeDocument(deepMerge(defaults, stored))
	if err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}

	return &Settings{ID: rec.ID, Document: doc, UpdatedAt: updatedAt}, nil
}

// Get returns the current settings with defaults filled in for anything the
// stored document lacks.
func (s *Service) Get(ctx context.Context) (*Settings, error) {
	rec, stored, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	return build(rec, stored, rec.UpdatedAt)
}

// Update merges a partial document into the stored settings. The patch is
// keyed by section name. Only explicitly set values are persisted, so a
// field nobody touched keeps following the defaults.
func (s *Service) Update(ctx context.Context, patch map[string]any) (*Settings, error) {
	if err := checkPatch(patch); err != nil {
		return nil, err
	}

	rec, stored, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	merged := deepMerge(stored, patch)

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}

	updatedAt, err := s.repo.Save(ctx, rec.ID, raw)
	if err != nil {
		return nil, fmt.Errorf("saving settings: %w", err)
	}

	return build(rec, merged, updatedAt)
}

func (s *Service) UpdateSection(ctx context.Context, section string, patch map[string]any) (*Settings, error) {
	return s.Update(ctx, map[string]any{section: patch})
}

// Reset clears every stored value so the defaults apply again.
func (s *Service) Reset(ctx context.Context) (*Settings, error) {
	rec, err := s.repo.GetOrCreate(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	updatedAt, err := s.repo.Save(ctx, rec.ID, json.RawMessage(`{}`))
	if err != nil {
		return nil, fmt.Errorf("resetting settings: %w", err)
	}

	return &Settings{ID: rec.ID, Document: Defaults(), UpdatedAt: updatedAt}, nil
}

func (s *Service) Public(ctx context.Context) (*Public, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	return &Public{
		General:           st.General,
		MaxImagesPerItem:  st.Content.MaxImagesPerItem,
		AllowedCategories: st.Content.AllowedCategories,
		MinItemPrice:      st.Payments.MinItemPrice,
		Providers:         st.Payments.Providers,
	}, nil
}

// EscrowPolicy is the part of the payments section the escrow flow runs on.
type EscrowPolicy struct {
	FeePercent decimal.Decimal
	Grace      time.Duration
	MinPrice   int64
}

func (s *Service) EscrowPolicy(ctx context.Context) (*EscrowPolicy, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	return &EscrowPolicy{
		FeePercent: decimal.NewFromFloat(st.Payments.PlatformFeePercent),
		Grace:      time.Duration(st.Payments.EscrowGraceHours) * time.Hour,
		MinPrice:   st.Payments.MinItemPrice,
	}, nil
}

// ListingRules are the content limits new listings are checked against.
func (s *Service) ListingRules(ctx context.Context) (item.Rules, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return item.Rules{}, err
	}

	return item.Rules{
		MinPrice:           st.Payments.MinItemPrice,
		MaxImages:          st.Content.MaxImagesPerItem,
		AllowedCategories:  st.Content.AllowedCategories,
		ProhibitedKeywords: st.Content.ProhibitedKeywords,
	}, nil
}
