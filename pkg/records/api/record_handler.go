package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/document"
	"github.com/tendant/simple-records/pkg/records/fieldvalue"
	"github.com/tendant/simple-records/pkg/records/storage"
)

// UserHeader carries the id of the caller resolving categories.
const UserHeader = "X-User-ID"

// RecordStore is the part of storage.Store the handler uses.
type RecordStore interface {
	Save(ctx context.Context, rec *records.Record) (storage.Result, error)
	Load(ctx context.Context, inode string) (*records.Record, error)
	Related(ctx context.Context, identifier, relationshipID string, parent bool) ([]string, error)
	Representation() storage.Representation
}

// RecordHandler handles HTTP requests for records
type RecordHandler struct {
	builder    *records.Builder
	store      RecordStore
	categories *records.CategoryResolver
	logger     *slog.Logger
}

// NewRecordHandler creates a new record handler. A nil category resolver
// skips category resolution; a nil logger uses slog.Default.
func NewRecordHandler(builder *records.Builder, store RecordStore, categories *records.CategoryResolver, logger *slog.Logger) *RecordHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordHandler{
		builder:    builder,
		store:      store,
		categories: categories,
		logger:     logger,
	}
}

// Routes returns the routes for records
func (h *RecordHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateRecord)
	r.Get("/strategy", h.GetStrategy)
	r.Get("/{inode}", h.GetRecord)
	r.Get("/{identifier}/related/{relationship}", h.GetRelated)

	return r
}

// RecordResponse is the response body for a saved record
type RecordResponse struct {
	Identifier     string              `json:"identifier"`
	Inode          string              `json:"inode"`
	ContentType    string              `json:"contentType"`
	LanguageID     int64               `json:"languageId"`
	Representation string              `json:"representation"`
	IndexPolicy    string              `json:"indexPolicy"`
	Categories     map[string][]string `json:"categories,omitempty"`
}

// StrategyResponse is the response body for the storage strategy
type StrategyResponse struct {
	Representation string `json:"representation"`
	Columns        bool   `json:"columns"`
	Document       bool   `json:"document"`
}

// RelatedResponse is the response body for related identifiers
type RelatedResponse struct {
	Identifier   string   `json:"identifier"`
	Relationship string   `json:"relationship"`
	Side         string   `json:"side"`
	Related      []string `json:"related"`
}

// CreateRecord populates a record from a field map and saves it
func (h *RecordHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if policy := r.URL.Query().Get("indexPolicy"); policy != "" {
		ctx = records.WithIndexPolicyParam(ctx, policy)
	}

	rec, err := h.builder.Populate(ctx, nil, fields)
	if err != nil {
		h.logger.Error("Failed to populate record", "err", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	var categories map[string][]string
	if h.categories != nil {
		resolved, err := h.categories.ResolveRecord(ctx, rec, records.Principal{UserID: r.Header.Get(UserHeader)})
		if err != nil {
			h.logger.Error("Failed to resolve categories", "err", err)
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		categories = make(map[string][]string, len(resolved))
		for field, cats := range resolved {
			ids := make([]string, 0, len(cats))
			for _, c := range cats {
				ids = append(ids, c.ID)
			}
			categories[field] = ids
		}
	}

	res, err := h.store.Save(ctx, rec)
	if err != nil {
		h.logger.Error("Failed to save record", "err", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	h.logger.Info("Record saved", "identifier", res.Identifier, "inode", res.Inode,
		"representation", res.Representation.String())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, RecordResponse{
		Identifier:     res.Identifier,
		Inode:          res.Inode,
		ContentType:    rec.ContentTypeID,
		LanguageID:     rec.LanguageID,
		Representation: res.Representation.String(),
		IndexPolicy:    rec.IndexPolicy.String(),
		Categories:     categories,
	})
}

// GetRecord returns a stored revision as its document JSON
func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	inode := chi.URLParam(r, "inode")

	rec, err := h.store.Load(r.Context(), inode)
	if err != nil {
		h.logger.Error("Failed to load record", "inode", inode, "err", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	data, err := document.Marshal(rec)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GetStrategy reports the representation the next save will use
func (h *RecordHandler) GetStrategy(w http.ResponseWriter, r *http.Request) {
	rep := h.store.Representation()
	render.JSON(w, r, StrategyResponse{
		Representation: rep.String(),
		Columns:        rep.WritesColumns(),
		Document:       rep.WritesDocument(),
	})
}

// GetRelated lists identifiers related through a relationship. The side
// query parameter is "parent" (default) or "child".
func (h *RecordHandler) GetRelated(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	relationship := chi.URLParam(r, "relationship")
	side := r.URL.Query().Get("side")
	if side == "" {
		side = "parent"
	}
	if side != "parent" && side != "child" {
		http.Error(w, "side must be 'parent' or 'child'", http.StatusBadRequest)
		return
	}

	related, err := h.store.Related(r.Context(), identifier, relationship, side == "parent")
	if err != nil {
		h.logger.Error("Failed to list related records", "identifier", identifier, "err", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	render.JSON(w, r, RelatedResponse{
		Identifier:   identifier,
		Relationship: relationship,
		Side:         side,
		Related:      related,
	})
}

func statusFor(err error) int {
	var (
		schemaErr   *records.SchemaResolutionError
		populateErr *records.PopulateError
		categoryErr *records.UnresolvedCategoryError
		decodeErr   *fieldvalue.DecodeError
		corruptErr  *document.CorruptionError
	)
	switch {
	case errors.As(err, &corruptErr):
		return http.StatusInternalServerError
	case errors.As(err, &schemaErr), errors.As(err, &populateErr),
		errors.As(err, &categoryErr), errors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, records.ErrRecordNotFound), errors.Is(err, records.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
