package register

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/peanuts-pos/internal/catalog"
	"github.com/noah-isme/peanuts-pos/internal/common"
	"github.com/noah-isme/peanuts-pos/internal/fpn"
	"github.com/noah-isme/peanuts-pos/internal/pricing"
	"github.com/noah-isme/peanuts-pos/internal/promo"
	"github.com/noah-isme/peanuts-pos/internal/stats"
)

// Handler exposes the register over HTTP. PageLimit is the default page size of
// GET /items; 0 returns every match.
type Handler struct {
	Session   *Session
	Validate  *validator.Validate
	Location  *time.Location
	PageLimit int
}

// DefaultPageLimit caps GET /items when the caller sends no ?limit=.
const DefaultPageLimit = 100

// NewHandler builds a handler with its own validator.
func NewHandler(session *Session, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		Session:   session,
		Validate:  validator.New(validator.WithRequiredStructEnabled()),
		Location:  loc,
		PageLimit: DefaultPageLimit,
	}
}

// Routes mounts the register endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/catalog", h.Catalog)
	r.Get("/items", h.Items)
	r.Get("/items.csv", h.ItemsCSV)
	r.Post("/categories", h.AddCategory)
	r.Post("/sources", h.AddSource)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{id}", h.UpdateItem)
	r.Put("/items/{id}/sell", h.RequestSell)
	r.Get("/deals/{category}", h.GetDeal)
	r.Put("/deals/{category}", h.SetDeal)
	r.Post("/price", h.Price)
	r.Get("/sale/preview", h.Preview)
	r.Post("/sale", h.ExecuteSale)
	r.Get("/profit", h.Profit)
	r.Post("/profit/reset", h.ResetProfit)
	r.Get("/files", h.Files)
	r.Post("/files/save", h.SaveFile)
	r.Post("/files/open", h.OpenFile)
	r.Get("/stats/lifetime", h.Lifetime)
	r.Get("/stats/daily/{date}", h.Daily)
}

type nameRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

type itemRequest struct {
	Name     string `json:"name" validate:"max=128"`
	Category string `json:"category" validate:"max=64"`
	Source   string `json:"source" validate:"max=64"`
	Price    string `json:"price" validate:"required"`
	Stock    int    `json:"stock"`
}

type itemPatchRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=128"`
	Category *string `json:"category" validate:"omitempty,max=64"`
	Source   *string `json:"source" validate:"omitempty,max=64"`
	Price    *string `json:"price" validate:"omitempty"`
	Stock    *int    `json:"stock"`
}

type sellRequest struct {
	Qty *int `json:"qty" validate:"required"`
}

type dealRequest struct {
	Kind  string `json:"kind" validate:"required,oneof=NONE BOGO BULK none bogo bulk"`
	Buy   int    `json:"buy" validate:"gte=0"`
	Get   int    `json:"get" validate:"gte=0"`
	Price string `json:"price"`
}

type lineRequest struct {
	Category  string `json:"category"`
	UnitPrice string `json:"unitPrice" validate:"required"`
	Qty       int    `json:"qty" validate:"gte=0,lte=999"`
}

type priceRequest struct {
	Lines []lineRequest `json:"lines" validate:"max=200,dive"`
}

type fileRequest struct {
	Name string `json:"name" validate:"max=200"`
}

// Catalog handles GET /catalog.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Session.Snapshot()})
}

// Items handles GET /items?q=&hide=&page=&limit=.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := catalog.Filter{Query: q.Get("q")}
	for _, hidden := range q["hide"] {
		for _, name := range strings.Split(hidden, ",") {
			if name = strings.TrimSpace(name); name != "" {
				filter.HiddenSources = append(filter.HiddenSources, name)
			}
		}
	}
	items := h.Session.Search(filter)
	page, perPage := common.ParsePagination(r, h.PageLimit)
	start, end := common.PageBounds(page, perPage, len(items))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items[start:end],
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(items)},
	})
}

// ItemsCSV handles GET /items.csv.
func (h *Handler) ItemsCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="items.csv"`)
	if err := h.Session.ExportCSV(w); err != nil {
		h.writeError(w, err)
	}
}

// AddCategory handles POST /categories.
func (h *Handler) AddCategory(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !h.decode(w, r, &req) {
		return
	}
	created := h.Session.AddCategory(req.Name)
	h.writeCreated(w, created, map[string]any{"name": strings.TrimSpace(req.Name), "created": created})
}

// AddSource handles POST /sources.
func (h *Handler) AddSource(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !h.decode(w, r, &req) {
		return
	}
	created := h.Session.AddSource(req.Name)
	h.writeCreated(w, created, map[string]any{"name": strings.TrimSpace(req.Name), "created": created})
}

// AddItem handles POST /items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !h.decode(w, r, &req) {
		return
	}
	price, err := catalog.ParsePrice(req.Price)
	if err != nil {
		h.writeError(w, err)
		return
	}
	item, err := h.Session.AddItem(catalog.ItemInput{
		Name:     req.Name,
		Category: req.Category,
		Source:   req.Source,
		Price:    price,
		Stock:    req.Stock,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": item})
}

// UpdateItem handles PATCH /items/{id}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	var req itemPatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	patch := ItemPatch{Name: req.Name, Category: req.Category, Source: req.Source, Stock: req.Stock}
	if req.Price != nil {
		price, err := catalog.ParsePrice(*req.Price)
		if err != nil {
			h.writeError(w, err)
			return
		}
		patch.Price = &price
	}
	item, err := h.Session.UpdateItem(id, patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": item})
}

// RequestSell handles PUT /items/{id}/sell.
func (h *Handler) RequestSell(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}
	var req sellRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.Session.RequestSell(id, *req.Qty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": item})
}

// GetDeal handles GET /deals/{category}.
func (h *Handler) GetDeal(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	common.JSON(w, http.StatusOK, map[string]any{"data": dealBody(category, h.Session.Deal(category))})
}

// SetDeal handles PUT /deals/{category}.
func (h *Handler) SetDeal(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	var req dealRequest
	if !h.decode(w, r, &req) {
		return
	}
	deal, err := req.toDeal()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Session.SetDeal(r.Context(), category, deal); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": dealBody(category, deal)})
}

func (req dealRequest) toDeal() (promo.Deal, error) {
	switch strings.ToUpper(req.Kind) {
	case "BOGO":
		return promo.NewBOGO(req.Buy, req.Get)
	case "BULK":
		price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
		if err != nil {
			return promo.Deal{}, common.ValidationError("bulk price must be a number", err)
		}
		return promo.NewBulk(req.Buy, price)
	default:
		return promo.None(), nil
	}
}

func dealBody(category string, deal promo.Deal) map[string]any {
	body := map[string]any{
		"category": category,
		"kind":     deal.Kind().String(),
		"encoded":  deal.String(),
	}
	switch deal.Kind() {
	case promo.KindBOGO:
		body["buy"] = deal.Buy()
		body["get"] = deal.Get()
	case promo.KindBulk:
		body["buy"] = deal.Buy()
		body["price"] = deal.Price()
	}
	return body
}

// Price handles POST /price for an arbitrary basket.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if !h.decode(w, r, &req) {
		return
	}
	var lines []pricing.Line
	for _, l := range req.Lines {
		price, err := catalog.ParsePrice(l.UnitPrice)
		if err != nil {
			h.writeError(w, err)
			return
		}
		qty := l.Qty
		if qty == 0 {
			qty = 1
		}
		category := l.Category
		if category == "" {
			category = catalog.Uncategorized
		}
		for i := 0; i < qty; i++ {
			lines = append(lines, pricing.Line{Category: category, UnitPrice: price})
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Session.Price(lines)})
}

// Preview handles GET /sale/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Session.Preview()})
}

// ExecuteSale handles POST /sale. A sale whose statistics could not be written is
// still reported as done, with the failure attached.
func (h *Handler) ExecuteSale(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.Session.ExecuteSale(r.Context())
	body := map[string]any{"data": receipt}
	if err != nil {
		body["warnings"] = []common.ErrorBody{{Code: common.CodeIO, Message: "sale recorded but statistics were not written: " + err.Error()}}
	}
	common.JSON(w, http.StatusOK, body)
}

// Profit handles GET /profit.
func (h *Handler) Profit(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"profit": h.Session.Profit()}})
}

// ResetProfit handles POST /profit/reset.
func (h *Handler) ResetProfit(w http.ResponseWriter, r *http.Request) {
	prev := h.Session.ResetProfit()
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"previous": prev, "profit": decimal.Zero}})
}

// Files handles GET /files.
func (h *Handler) Files(w http.ResponseWriter, r *http.Request) {
	names, err := h.Session.SaveFiles()
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": names})
}

// SaveFile handles POST /files/save. The body is optional.
func (h *Handler) SaveFile(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	path, err := h.Session.Save(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"file": pathBase(path)}})
}

// OpenFile handles POST /files/open.
func (h *Handler) OpenFile(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "name is required", nil)
		return
	}
	if err := h.Session.Open(r.Context(), req.Name); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Session.Snapshot()})
}

// Lifetime handles GET /stats/lifetime.
func (h *Handler) Lifetime(w http.ResponseWriter, r *http.Request) {
	tallies, err := h.Session.Lifetime()
	if err != nil {
		h.writeError(w, err)
		return
	}
	if tallies == nil {
		tallies = []stats.Tally{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tallies})
}

// Daily handles GET /stats/daily/{date}; date is YYYY-MM-DD or "today".
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "date")
	var day time.Time
	if raw == "today" {
		day = h.Session.now().In(h.Location)
	} else {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.Location)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "date must be YYYY-MM-DD", nil)
			return
		}
		day = parsed
	}
	txs, err := h.Session.Daily(day)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if txs == nil {
		txs = []stats.Transaction{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": txs})
}

func (h *Handler) writeCreated(w http.ResponseWriter, created bool, body any) {
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	common.JSON(w, status, map[string]any{"data": body})
}

func (h *Handler) itemID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid item id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var details any
		if errors.As(err, &syntaxErr) {
			details = map[string]any{"offset": syntaxErr.Offset}
		}
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", details)
		return false
	}
	if err := h.Validate.Struct(dst); err != nil {
		h.writeError(w, err)
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	common.WriteAppError(w, toAppError(err))
}

// toAppError maps domain failures onto API codes.
func toAppError(err error) error {
	if common.IsAppError(err) {
		return err
	}
	var verrs validator.ValidationErrors
	var pathErr *fs.PathError
	switch {
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		appErr := common.ValidationError("invalid payload", err)
		appErr.Details = fields
		return appErr
	case errors.Is(err, catalog.ErrValidation), errors.Is(err, promo.ErrInvalidDeal), errors.Is(err, ErrFileName):
		return common.ValidationError(err.Error(), err)
	case errors.Is(err, catalog.ErrItemNotFound):
		return common.NewAppError(common.CodeUnknownReference, err.Error(), http.StatusNotFound, err)
	case errors.Is(err, fpn.ErrFormat), errors.Is(err, fpn.ErrUnencodable), errors.Is(err, stats.ErrMalformedTally):
		return common.NewAppError(common.CodeFormat, err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, catalog.ErrUnknownReference), errors.Is(err, promo.ErrUnknownCategory), errors.Is(err, promo.ErrUncategorized):
		return common.NewAppError(common.CodeUnknownReference, err.Error(), http.StatusUnprocessableEntity, err)
	case errors.As(err, &pathErr):
		if errors.Is(err, fs.ErrNotExist) {
			return common.NewAppError(common.CodeIO, "file not found: "+pathBase(pathErr.Path), http.StatusNotFound, err)
		}
		return common.NewAppError(common.CodeIO, "file operation failed", http.StatusInternalServerError, err)
	default:
		return common.NewAppError(common.CodeInternal, "internal error", http.StatusInternalServerError, err)
	}
}

func pathBase(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
