package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

const maxBodyBytes = 1 << 20

// ItemStore is the storage the HTTP API serves.
type ItemStore interface {
	Get(ctx context.Context, id string) (Item, error)
	List(ctx context.Context, q ListQuery) (ListResult, error)
	Create(ctx context.Context, p Payload) (Item, error)
	Replace(ctx context.Context, id string, p Payload) (Item, error)
	Patch(ctx context.Context, id string, p Payload) (Item, error)
	Delete(ctx context.Context, id string) error
	Reset(ctx context.Context) error
}

// Handler handles HTTP requests for items.
type Handler struct {
	store  ItemStore
	usage  *UsageDoc
	logger *slog.Logger
}

// NewHandler creates a Handler with dependencies.
func NewHandler(store ItemStore, usage *UsageDoc, logger *slog.Logger) *Handler {
	return &Handler{store: store, usage: usage, logger: logger}
}

// itemsHandler routes requests without ID: GET for list, POST for create.
func (h *Handler) itemsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListItems(w, r)
	case http.MethodPost:
		h.handleCreateItem(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// itemHandler routes requests with ID: GET, PUT, PATCH, DELETE.
func (h *Handler) itemHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/items/")
	switch r.Method {
	case http.MethodGet:
		h.handleGetItem(w, r, id)
	case http.MethodPut:
		h.handleReplaceItem(w, r, id)
	case http.MethodPatch:
		h.handlePatchItem(w, r, id)
	case http.MethodDelete:
		h.handleDeleteItem(w, r, id)
	default:
		methodNotAllowed(w, "GET, PUT, PATCH, DELETE")
	}
}

// handleListItems processes GET /items.
func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	res, err := h.store.List(r.Context(), parseListQuery(r.URL.Query().Get))
	if err != nil {
		h.writeStoreError(w, r, "listing items", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleGetItem processes GET /items/{id}.
func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request, id string) {
	item, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, "getting item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleCreateItem processes POST /items.
func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		h.writeStoreError(w, r, "decoding payload", err)
		return
	}
	item, err := h.store.Create(r.Context(), p)
	if err != nil {
		h.writeStoreError(w, r, "creating item", err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/items/%s", item.ID))
	writeJSON(w, http.StatusCreated, item)
}

// handleReplaceItem processes PUT /items/{id}.
func (h *Handler) handleReplaceItem(w http.ResponseWriter, r *http.Request, id string) {
	p, err := decodePayload(w, r)
	if err != nil {
		h.writeStoreError(w, r, "decoding payload", err)
		return
	}
	item, err := h.store.Replace(r.Context(), id, p)
	if err != nil {
		h.writeStoreError(w, r, "replacing item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handlePatchItem processes PATCH /items/{id}.
func (h *Handler) handlePatchItem(w http.ResponseWriter, r *http.Request, id string) {
	p, err := decodePayload(w, r)
	if err != nil {
		h.writeStoreError(w, r, "decoding payload", err)
		return
	}
	item, err := h.store.Patch(r.Context(), id, p)
	if err != nil {
		h.writeStoreError(w, r, "patching item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleDeleteItem processes DELETE /items/{id}.
func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, r, "deleting item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resetHandler processes POST /reset.
func (h *Handler) resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if err := h.store.Reset(r.Context()); err != nil {
		h.writeStoreError(w, r, "resetting store", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// healthHandler processes GET /healthz.
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// usageHandler processes GET /usage. refresh=1 or refresh=true rebuilds the
// text from the API description.
func (h *Handler) usageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	if v := r.URL.Query().Get("refresh"); v == "1" || v == "true" {
		h.usage.Invalidate()
	}
	text, err := h.usage.Text()
	if err != nil {
		h.writeStoreError(w, r, "building usage", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, text)
}

// specHandler processes GET /spec by serving the API description file.
func (h *Handler) specHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	data, err := os.ReadFile(h.usage.Path())
	if err != nil {
		h.writeStoreError(w, r, "reading api description", err)
		return
	}
	w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
	_, _ = w.Write(data)
}

// writeStoreError maps err to a status code and a {"error", "kind"} body.
// Unexpected errors are logged and reported without detail.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, action string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Kind, verr.Message)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Not found")
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "error "+action, "err", err, "req_id", requestIDFrom(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// decodePayload reads a single JSON object from the request body.
func decodePayload(w http.ResponseWriter, r *http.Request) (Payload, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, &ValidationError{Kind: KindInvalidBody, Message: fmt.Sprintf("invalid request payload: %v", err)}
	}
	if err := ensureSingleJSON(dec); err != nil {
		return nil, &ValidationError{Kind: KindInvalidBody, Message: err.Error()}
	}
	if p == nil {
		p = Payload{}
	}
	return p, nil
}

// ensureSingleJSON ensures only a single JSON object is in the request body.
func ensureSingleJSON(dec *json.Decoder) error {
	// Check for extra JSON tokens
	if t, err := dec.Token(); err != io.EOF || t != nil {
		return fmt.Errorf("request body must only contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, kind, msg string) {
	writeJSON(w, code, map[string]string{"error": msg, "kind": kind})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", http.StatusText(http.StatusMethodNotAllowed))
}
