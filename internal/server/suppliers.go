package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"restodash/internal/suppliers"
)

// GET /suppliers?establishment_id=
func (s *Server) listSuppliers(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := s.establishment(r, "")
	if err != nil {
		fail(w, r, err, suppliers.UserMessage)
		return
	}

	rows, err := s.deps.Suppliers.List(r.Context(), establishmentID)
	if err != nil {
		fail(w, r, err, suppliers.UserMessage)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// PATCH /suppliers/{id}/label
func (s *Server) updateSupplierLabel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Label string `json:"label"`
	}
	if err := decode(r, &body); err != nil {
		fail(w, r, err, suppliers.UserMessage)
		return
	}

	supplier, err := s.deps.Suppliers.UpdateLabel(r.Context(), chi.URLParam(r, "id"), body.Label)
	if err != nil {
		fail(w, r, err, suppliers.UserMessage)
		return
	}
	writeJSON(w, http.StatusOK, supplier)
}

// PATCH /suppliers/{id}/market
func (s *Server) linkMarketSupplier(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MarketSupplierID string `json:"market_supplier_id"`
	}
	if err := decode(r, &body); err != nil {
		fail(w, r, err, suppliers.UserMessage)
		return
	}

	supplier, err := s.deps.Suppliers.LinkMarketSupplier(r.Context(), chi.URLParam(r, "id"), body.MarketSupplierID)
	if err != nil {
		fail(w, r, err, suppliers.UserMessage)
		return
	}
	writeJSON(w, http.StatusOK, supplier)
}

// GET /suppliers/merges?establishment_id=&status=
func (s *Server) listMerges(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := s.establishment(r, "")
	if err != nil {
		fail(w, r, err, suppliers.UserMessage)
		return
	}

	requests, err := s.deps.Suppliers.MergeRequests(r.Context(), establishmentID, r.URL.Query().Get("status"))
	if err != nil {
		fail(w, r, err, suppliers.UserMessage)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

// POST /suppliers/merges
func (s *Server) requestMerge(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EstablishmentID string   `json:"establishment_id"`
		Target          string   `json:"target"`
		Sources         []string `json:"sources"`
	}
	if err := decode(r, &body); err != nil {
		fail(w, r, err, suppliers.UserMessage)
		return
	}
	establishmentID, err := s.establishment(r, body.EstablishmentID)
	if err != nil {
		fail(w, r, err, suppliers.UserMessage)
		return
	}

	request, err := s.deps.Suppliers.RequestMerge(r.Context(), suppliers.MergeInput{
		EstablishmentID: establishmentID,
		Target:          body.Target,
		Sources:         body.Sources,
	})
	if err != nil {
		fail(w, r, err, suppliers.UserMessage)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

// POST /suppliers/merges/{id}
func (s *Server) resolveMerge(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Accepted bool `json:"accepted"`
	}
	if err := decode(r, &body); err != nil {
		fail(w, r, err, suppliers.UserMessage)
		return
	}

	request, err := s.deps.Suppliers.ResolveMerge(r.Context(), chi.URLParam(r, "id"), body.Accepted)
	if err != nil {
		fail(w, r, err, suppliers.UserMessage)
		return
	}
	writeJSON(w, http.StatusOK, request)
}
