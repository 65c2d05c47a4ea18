package item

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/babyresell/babyresell/internal/auth"
	"github.com/babyresell/babyresell/internal/category"
	"github.com/babyresell/babyresell/internal/http/respond"
	"github.com/babyresell/babyresell/internal/importer"
	"github.com/babyresell/babyresell/internal/item"
	"github.com/babyresell/babyresell/internal/settings"
)

const maxUploadSize = 10 << 20

type Handler struct {
	itemSvc     *item.Service
	categorySvc *category.Service
	settingsSvc *settings.Service
	parser      *importer.Parser
}

func NewHandler(itemSvc *item.Service, categorySvc *category.Service, settingsSvc *settings.Service, parser *importer.Parser) *Handler {
	return &Handler{
		itemSvc:     itemSvc,
		categorySvc: categorySvc,
		settingsSvc: settingsSvc,
		parser:      parser,
	}
}

func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

// Routes mounts the seller endpoints. The caller must install the auth
// middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Post("/import", h.importCSV)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type itemResponse struct {
	ID          uuid.UUID      `json:"id"`
	SellerID    uuid.UUID      `json:"sellerId"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Condition   item.Condition `json:"condition"`
	Price       int64          `json:"price"`
	Currency    string         `json:"currency"`
	Status      item.Status    `json:"status"`
	ImageURLs   []string       `json:"imageUrls"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   *time.Time     `json:"updatedAt,omitempty"`
}

func toResponse(it *item.Item) itemResponse {
	urls := it.ImageURLs
	if urls == nil {
		urls = []string{}
	}

	return itemResponse{
		ID:          it.ID,
		SellerID:    it.SellerID,
		Title:       it.Title,
		Description: it.Description,
		Category:    it.Category,
		Condition:   it.Condition,
		Price:       it.Price,
		Currency:    it.Currency,
		Status:      it.Status,
		ImageURLs:   urls,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}
}

func toResponses(items []*item.Item) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toResponse(it))
	}

	return out
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid item id", respond.ErrBadRequest)
	}

	return id, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := item.ListFilter{Query: q.Get("q")}

	if raw := q.Get("sellerId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respond.Err(w, r, fmt.Errorf("%w: invalid sellerId", respond.ErrBadRequest))
			return
		}

		filter.SellerID = &id
	}

	if raw := q.Get("category"); raw != "" {
		filter.Category = &raw
	}

	// Anonymous browsing shows what can still be bought unless asked otherwise.
	status := item.StatusAvailable
	if raw := q.Get("status"); raw != "" {
		status = item.Status(raw)
	}

	filter.Status = &status

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respond.Err(w, r, fmt.Errorf("%w: limit must be a positive integer", respond.ErrBadRequest))
			return
		}

		filter.Limit = n
	}

	items, err := h.itemSvc.List(r.Context(), filter)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponses(items))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	it, err := h.itemSvc.Get(r.Context(), id)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponse(it))
}

type createRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Category    string   `json:"category" validate:"max=100"`
	Condition   string   `json:"condition" validate:"omitempty,oneof=new like_new good fair"`
	Price       int64    `json:"price" validate:"gt=0"`
	ImageURLs   []string `json:"imageUrls" validate:"dive,url"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	params := item.CreateParams{
		SellerID:    identity(r),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Condition:   item.Condition(req.Condition),
		Price:       req.Price,
		ImageURLs:   req.ImageURLs,
	}

	if params.Category == "" {
		params.Category = h.suggest(r, params.Title)
	}

	rules, err := h.settingsSvc.ListingRules(r.Context())
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	if err := rules.Check(params); err != nil {
		respond.Err(w, r, err)
		return
	}

	it, err := h.itemSvc.Create(r.Context(), params)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.Created(w, toResponse(it))
}

type updateRequest struct {
	Title       *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	Category    *string  `json:"category" validate:"omitempty,max=100"`
	Condition   *string  `json:"condition" validate:"omitempty,oneof=new like_new good fair"`
	Price       *int64   `json:"price" validate:"omitempty,gt=0"`
	ImageURLs   []string `json:"imageUrls" validate:"omitempty,dive,url"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	var req updateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	params := item.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		ImageURLs:   req.ImageURLs,
	}

	if req.Condition != nil {
		params.Condition = new(item.Condition(*req.Condition))
	}

	rules, err := h.settingsSvc.ListingRules(r.Context())
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	it, err := h.itemSvc.Update(r.Context(), identity(r), id, params, rules)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.OK(w, toResponse(it))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	if err := h.itemSvc.Delete(r.Context(), identity(r), id); err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.Message(w, http.StatusOK, "item deleted")
}

type importResponse struct {
	Profile  string              `json:"profile"`
	Imported int                 `json:"imported"`
	Items    []itemResponse      `json:"items"`
	Rejected []importer.RowError `json:"rejected"`
}

// importCSV creates one listing per valid spreadsheet row. Rows that fail
// parsing or the listing rules are reported back and skipped.
func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respond.Err(w, r, fmt.Errorf("%w: failed to parse form: %w", respond.ErrBadRequest, err))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respond.Err(w, r, fmt.Errorf("%w: file field is required", respond.ErrBadRequest))
		return
	}
	defer file.Close()

	result, err := h.parser.Parse(file)
	if err != nil {
		respond.Err(w, r, fmt.Errorf("%w: %w", respond.ErrBadRequest, err))
		return
	}

	rules, err := h.settingsSvc.ListingRules(r.Context())
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	seller := identity(r)
	rejected := append([]importer.RowError{}, result.Errors...)
	params := make([]item.CreateParams, 0, len(result.Rows))

	for _, row := range result.Rows {
		p := row.Params
		p.SellerID = seller

		if p.Category == "" {
			p.Category = h.suggest(r, p.Title)
		}

		if err := rules.Check(p); err != nil {
			rejected = append(rejected, importer.RowError{Line: row.Line, Reason: err.Error()})
			continue
		}

		params = append(params, p)
	}

	items, err := h.itemSvc.CreateBatch(r.Context(), params)
	if err != nil {
		respond.Err(w, r, err)
		return
	}

	respond.Created(w, importResponse{
		Profile:  result.Profile,
		Imported: len(items),
		Items:    toResponses(items),
		Rejected: rejected,
	})
}

// suggest fills a missing category from the learned keyword mappings. A
// lookup failure leaves the listing uncategorised.
func (h *Handler) suggest(r *http.Request, title string) string {
	suggested, err := h.categorySvc.Suggest(r.Context(), title)
	if err != nil {
		slog.Warn("category suggestion failed", "title", title, "error", err)
		return ""
	}

	return suggested
}

func identity(r *http.Request) uuid.UUID {
	id, _ := auth.FromContext(r.Context())
	return id.UserID
}
