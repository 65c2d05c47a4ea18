package item

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=item
type Repository interface {
	CreateItem(ctx context.Context, it *Item) error
	CreateItems(ctx context.Context, items []*Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	ListItems(ctx context.Context, filter ListFilter) ([]*Item, error)
	UpdateItem(ctx context.Context, it *Item) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	// CompareAndSetStatus moves the item to `to` only if it is currently
	// `from`, returning ErrStatusChanged otherwise.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to Status) error
}

type Service struct {
	repo     Repository
	currency string
}

func NewService(repo Repository, currency string) *Service {
	return &Service{repo: repo, currency: currency}
}

type CreateParams struct {
	SellerID    uuid.UUID
	Title       string
	Description string
	Category    string
	Condition   Condition
	Price       int64
	ImageURLs   []string
}

type ListFilter struct {
	SellerID *uuid.UUID
	Category *string
	Status   *Status
	Query    string
	Limit    int
}

func (s *Service) newItem(params CreateParams) *Item {
	condition := params.Condition
	if condition == "" {
		condition = ConditionGood
	}

	return &Item{
		SellerID:    params.SellerID,
		Title:       params.Title,
		Description: params.Description,
		Category:    params.Category,
		Condition:   condition,
		Price:       params.Price,
		Currency:    s.currency,
		Status:      StatusAvailable,
		ImageURLs:   params.ImageURLs,
	}
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Item, error) {
	it := s.newItem(params)
	if err := s.repo.CreateItem(ctx, it); err != nil {
		return nil, err
	}

	return it, nil
}

// CreateBatch stores all listings or none of them.
func (s *Service) CreateBatch(ctx context.Context, params []CreateParams) ([]*Item, error) {
	if len(params) == 0 {
		return nil, nil
	}

	items := make([]*Item, len(params))
	for i, p := range params {
		items[i] = s.newItem(p)
	}

	if err := s.repo.CreateItems(ctx, items); err != nil {
		return nil, fmt.Errorf("create items: %w", err)
	}

	return items, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.repo.GetItem(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Item, error) {
	return s.repo.ListItems(ctx, filter)
}

type UpdateParams struct {
	Title       *string
	Description *string
	Category    *string
	Condition   *Condition
	Price       *int64
	ImageURLs   []string
}

// Update applies a partial edit on behalf of sellerID. Only available
// listings can change; a reserved or sold item is frozen by its transaction.
// The edited listing must still pass rules.
func (s *Service) Update(ctx context.Context, sellerID, id uuid.UUID, params UpdateParams, rules Rules) (*Item, error) {
	it, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if it.SellerID != sellerID {
		return nil, ErrForbidden
	}

	if it.Status != StatusAvailable {
		return nil, ErrStatusChanged
	}

	if params.Title != nil {
		it.Title = *params.Title
	}

	if params.Description != nil {
		it.Description = *params.Description
	}

	if params.Category != nil {
		it.Category = *params.Category
	}

	if params.Condition != nil {
		it.Condition = *params.Condition
	}

	if params.Price != nil {
		it.Price = *params.Price
	}

	if params.ImageURLs != nil {
		it.ImageURLs = params.ImageURLs
	}

	if err := rules.Check(CreateParams{
		SellerID:    it.SellerID,
		Title:       it.Title,
		Description: it.Description,
		Category:    it.Category,
		Condition:   it.Condition,
		Price:       it.Price,
		ImageURLs:   it.ImageURLs,
	}); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateItem(ctx, it); err != nil {
		return nil, err
	}

	return it, nil
}

func (s *Service) Delete(ctx context.Context, sellerID, id uuid.UUID) error {
	it, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}

	if it.SellerID != sellerID {
		return ErrForbidden
	}

	if it.Status == StatusReserved {
		return ErrStatusChanged
	}

	return s.repo.DeleteItem(ctx, id)
}

func (s *Service) Reserve(ctx context.Context, id uuid.UUID) error {
	return s.repo.CompareAndSetStatus(ctx, id, StatusAvailable, StatusReserved)
}

func (s *Service) MarkSold(ctx context.Context, id uuid.UUID) error {
	return s.repo.CompareAndSetStatus(ctx, id, StatusReserved, StatusSold)
}

// Relist returns a reserved item to the catalogue, e.g. after a refund.
func (s *Service) Relist(ctx context.Context, id uuid.UUID) error {
	return s.repo.CompareAndSetStatus(ctx, id, StatusReserved, StatusAvailable)
}
