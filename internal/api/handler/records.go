package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/eoex/internal/api/middleware"
	"github.com/kiranshivaraju/eoex/internal/api/response"
	"github.com/kiranshivaraju/eoex/internal/records"
	"github.com/kiranshivaraju/eoex/pkg/models"
)

const (
	defaultPage  = 1
	defaultLimit = 20
)

// RecordService is the tenant-scoped record API the handlers depend on.
type RecordService interface {
	List(ctx context.Context, ac models.AuthContext, kind *records.Kind, params records.ListParams) (*records.ListResult, error)
	Get(ctx context.Context, ac models.AuthContext, kind *records.Kind, id uuid.UUID) (models.Record, error)
	Create(ctx context.Context, ac models.AuthContext, kind *records.Kind, input map[string]any) (models.Record, error)
	Update(ctx context.Context, ac models.AuthContext, kind *records.Kind, id uuid.UUID, input map[string]any) (models.Record, error)
	Delete(ctx context.Context, ac models.AuthContext, kind *records.Kind, id uuid.UUID) error
	Overview(ctx context.Context, ac models.AuthContext) (map[string]int64, error)
}

// Records serves one record kind.
type Records struct {
	svc  RecordService
	kind *records.Kind
}

func NewRecordsHandler(svc RecordService, kind *records.Kind) *Records {
	return &Records{svc: svc, kind: kind}
}

// Routes mounts the collection and item endpoints.
func (h *Records) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

func (h *Records) List(w http.ResponseWriter, r *http.Request) {
	ac, ok := authContext(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, err := intParam(q.Get("page"), defaultPage)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "page must be an integer", nil)
		return
	}
	limit, err := intParam(q.Get("limit"), defaultLimit)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be an integer", nil)
		return
	}

	filters := map[string]string{}
	for _, name := range h.kind.FilterNames() {
		if v := q.Get(name); v != "" {
			filters[name] = v
		}
	}

	res, err := h.svc.List(r.Context(), ac, h.kind, records.ListParams{Filters: filters, Page: page, Limit: limit})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Collection(w, res.Items, response.NewPaginationMeta(res.Page, res.Limit, res.Total))
}

func (h *Records) Create(w http.ResponseWriter, r *http.Request) {
	ac, ok := authContext(w, r)
	if !ok {
		return
	}
	input, ok := decodeFields(w, r, false)
	if !ok {
		return
	}

	rec, err := h.svc.Create(r.Context(), ac, h.kind, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Created(w, rec)
}

func (h *Records) Get(w http.ResponseWriter, r *http.Request) {
	ac, ok := authContext(w, r)
	if !ok {
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.Get(r.Context(), ac, h.kind, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, rec)
}

func (h *Records) Update(w http.ResponseWriter, r *http.Request) {
	ac, ok := authContext(w, r)
	if !ok {
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	input, ok := decodeFields(w, r, true)
	if !ok {
		return
	}

	rec, err := h.svc.Update(r.Context(), ac, h.kind, id, input)
	if errors.Is(err, records.ErrNoChanges) {
		response.JSON(w, map[string]string{"status": "no_changes"})
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, rec)
}

func (h *Records) Delete(w http.ResponseWriter, r *http.Request) {
	ac, ok := authContext(w, r)
	if !ok {
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), ac, h.kind, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, map[string]string{"status": "deleted"})
}

// NewOverviewHandler returns an http.HandlerFunc for GET /api/v1/metrics/overview.
func NewOverviewHandler(svc RecordService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := authContext(w, r)
		if !ok {
			return
		}
		counts, err := svc.Overview(r.Context(), ac)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, counts)
	}
}

func authContext(w http.ResponseWriter, r *http.Request) (models.AuthContext, bool) {
	ac, ok := mw.GetAuthContext(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing auth context", nil)
	}
	return ac, ok
}

// recordID parses the {id} path parameter. A malformed id cannot name any
// record, so it is reported as not found.
func recordID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found", nil)
		return uuid.Nil, false
	}
	return id, true
}

// decodeFields reads a JSON object body. Numbers are kept as json.Number.
func decodeFields(w http.ResponseWriter, r *http.Request, allowEmpty bool) (map[string]any, bool) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var input map[string]any
	err := dec.Decode(&input)
	if errors.Is(err, io.EOF) && allowEmpty {
		return map[string]any{}, true
	}
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Body must be a JSON object", nil)
		return nil, false
	}
	if input == nil {
		input = map[string]any{}
	}
	return input, true
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
