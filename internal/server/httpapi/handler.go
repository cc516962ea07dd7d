// Package httpapi exposes the collection store, the integrity surfaces and
// the seed surfaces over a plain JSON CRUD protocol.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/zhinian/blogstore/internal/logging"
	"github.com/zhinian/blogstore/internal/server/collections"
	"github.com/zhinian/blogstore/internal/server/integrity"
	"github.com/zhinian/blogstore/internal/server/seed"
)

type handler struct {
	collections *collections.Service
	checker     *integrity.Checker
	repairer    *integrity.Repairer
	loader      *seed.Loader
	logger      logging.Logger
}

// NewHandler builds the API router:
//
//	GET    /api/{collection}          list
//	POST   /api/{collection}          create
//	POST   /api/{collection}/batch    bulk replace
//	GET    /api/{collection}/{id}     get
//	PUT    /api/{collection}/{id}     update
//	DELETE /api/{collection}/{id}     delete
//	GET    /api/integrity             check
//	POST   /api/integrity             check, then repair
//	POST   /api/init                  initialize-if-empty (body or defaults)
//	POST   /api/sync                  reset-and-sync (body or defaults)
func NewHandler(
	cs *collections.Service,
	checker *integrity.Checker,
	repairer *integrity.Repairer,
	loader *seed.Loader,
	logger logging.Logger,
) http.Handler {
	h := &handler{
		collections: cs,
		checker:     checker,
		repairer:    repairer,
		loader:      loader,
		logger:      logger.With("module", "httpapi"),
	}

	r := chi.NewRouter()
	r.Use(requestLogger(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/integrity", h.handleCheck)
		r.Post("/integrity", h.handleCheckAndRepair)
		r.Post("/init", h.handleInit)
		r.Post("/sync", h.handleSync)

		r.Route("/{collection}", func(r chi.Router) {
			r.Get("/", h.handleList)
			r.Post("/", h.handleCreate)
			r.Post("/batch", h.handleBulkSet)
			r.Get("/{id}", h.handleGet)
			r.Put("/{id}", h.handleUpdate)
			r.Delete("/{id}", h.handleDelete)
		})
	})

	return r
}

func (h *handler) decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func (h *handler) handleList(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")

	value, err := h.collections.List(r.Context(), name)
	if err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}
	h.respond(w, http.StatusOK, value)
}

func (h *handler) handleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	record, err := h.collections.Get(r.Context(), name, id)
	if err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}
	h.respond(w, http.StatusOK, record)
}

func (h *handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")

	var fields collections.Record
	if err := h.decodeBody(r, &fields); err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}

	record, err := h.collections.Create(r.Context(), name, fields)
	if err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}
	h.respond(w, http.StatusOK, record)
}

func (h *handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	var fields collections.Record
	if err := h.decodeBody(r, &fields); err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}

	record, err := h.collections.Update(r.Context(), name, id, fields)
	if err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}
	h.respond(w, http.StatusOK, record)
}

func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	if err := h.collections.Delete(r.Context(), name, id); err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}
	h.respondMessage(w, http.StatusOK, "record deleted", nil)
}

func (h *handler) handleBulkSet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")

	var value any
	if err := h.decodeBody(r, &value); err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}

	count, err := h.collections.BulkSet(r.Context(), name, value)
	if err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}
	h.respondMessage(w, http.StatusOK,
		fmt.Sprintf("imported %d records", count), map[string]any{"count": count})
}

func (h *handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	report, err := h.checker.Check(r.Context())
	if err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}
	h.respondMessage(w, http.StatusOK,
		fmt.Sprintf("integrity check finished, %d issues found", len(report.Issues)), report)
}

func (h *handler) handleCheckAndRepair(w http.ResponseWriter, r *http.Request) {
	report, err := h.checker.Check(r.Context())
	if err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}

	repairResult, err := h.repairer.Repair(r.Context(), report)
	if err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}

	h.respondMessage(w, http.StatusOK,
		fmt.Sprintf("integrity check finished, %d issues found", len(report.Issues)),
		map[string]any{"report": report, "repair": repairResult})
}

// seedFromBody reads the request body as a collection-name-to-value
// mapping; an empty body means the built-in defaults.
func (h *handler) seedFromBody(r *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return seed.Defaults(time.Now())
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return data, nil
}

func (h *handler) handleInit(w http.ResponseWriter, r *http.Request) {
	seedData, err := h.seedFromBody(r)
	if err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}

	result, err := h.loader.InitializeIfEmpty(r.Context(), seedData)
	if err != nil {
		if seed.IsAlreadyInitialized(err) {
			h.logger.Warn(r.Context(), "init refused, store is not empty")
		}
		h.respondErr(r.Context(), w, err)
		return
	}

	h.respondMessage(w, http.StatusOK,
		fmt.Sprintf("initialized %d records", result.TotalRecords), result)
}

func (h *handler) handleSync(w http.ResponseWriter, r *http.Request) {
	seedData, err := h.seedFromBody(r)
	if err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}

	result, err := h.loader.ResetAndSync(r.Context(), seedData)
	if err != nil {
		h.respondErr(r.Context(), w, err)
		return
	}

	h.respondMessage(w, http.StatusOK,
		fmt.Sprintf("synchronized %d records", result.TotalRecords), result)
}
