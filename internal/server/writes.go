package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Sternrassler/bistro-cache/internal/store"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds write request bodies.
const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("empty request body")
		}
		return badRequest("malformed JSON: %v", err)
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, badRequest("id must be a positive integer")
	}
	return id, nil
}

// invalidate bumps each namespace so subsequent reads miss.
func (s *Server) invalidate(namespaces ...string) {
	for _, ns := range namespaces {
		s.loader.Invalidate(ns)
	}
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in store.Category
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := s.repo.CreateCategory(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Menu item listings are grouped by category.
	s.invalidate(NamespaceCategories, NamespaceMenuItems)
	writeJSON(w, r, http.StatusCreated, c)
}

func (s *Server) handleCreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var in store.MenuItem
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	m, err := s.repo.CreateMenuItem(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate(NamespaceMenuItems)
	writeJSON(w, r, http.StatusCreated, m)
}

func (s *Server) handleUpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in store.MenuItem
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.ID = id

	m, err := s.repo.UpdateMenuItem(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate(NamespaceMenuItems)
	writeJSON(w, r, http.StatusOK, m)
}

func (s *Server) handleDeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.repo.DeleteMenuItem(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate(NamespaceMenuItems)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in store.Order
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := s.repo.CreateOrder(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate(NamespaceOrders)
	writeJSON(w, r, http.StatusCreated, o)
}

type statusUpdate struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in statusUpdate
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := s.repo.UpdateOrderStatus(r.Context(), id, in.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidate(NamespaceOrders)
	writeJSON(w, r, http.StatusOK, o)
}
