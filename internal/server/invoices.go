package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"restodash/internal/export"
	"restodash/internal/format"
	"restodash/internal/invoices"
	"restodash/internal/validate"
	"restodash/pkg/models"
)

type listResponse struct {
	Items     []invoices.ListItem       `json:"items"`
	Suppliers []invoices.SupplierOption `json:"suppliers"`
	Summary   invoices.Summary          `json:"summary"`
}

// GET /invoices?establishment_id=&from=&to=&supplier=&sort=&dir=
func (s *Server) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	establishmentID, err := s.establishment(r, "")
	if err != nil {
		fail(w, r, err, invoices.UserMessage)
		return
	}
	from, err := queryDate(q.Get("from"), "du")
	if err != nil {
		fail(w, r, err, invoices.UserMessage)
		return
	}
	to, err := queryDate(q.Get("to"), "au")
	if err != nil {
		fail(w, r, err, invoices.UserMessage)
		return
	}
	key, err := invoices.ParseSortKey(q.Get("sort"))
	if err != nil {
		fail(w, r, &validate.Error{Field: "tri", Value: q.Get("sort"), Message: "valeur inconnue"}, invoices.UserMessage)
		return
	}
	dir, err := invoices.ParseDirection(q.Get("dir"))
	if err != nil {
		fail(w, r, &validate.Error{Field: "ordre", Value: q.Get("dir"), Message: "valeur inconnue"}, invoices.UserMessage)
		return
	}

	table := s.store(establishmentID)
	if err := table.Refresh(r.Context()); err != nil {
		fail(w, r, err, invoices.UserMessage)
		return
	}
	state := table.Snapshot()

	items := invoices.Filter(state.Items, from, to, q["supplier"])
	invoices.Sort(items, key, dir)

	writeJSON(w, http.StatusOK, listResponse{
		Items:     items,
		Suppliers: state.Suppliers,
		Summary:   invoices.Totals(items),
	})
}

type detailResponse struct {
	*invoices.Detail
	Warnings []string `json:"warnings"`
}

// GET /invoices/{id}
func (s *Server) showInvoice(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := s.establishment(r, "")
	if err != nil {
		fail(w, r, err, invoices.UserMessage)
		return
	}

	detail, err := s.deps.Details.Load(r.Context(), chi.URLParam(r, "id"), establishmentID)
	if err != nil {
		fail(w, r, err, invoices.UserMessage)
		return
	}

	warnings := detail.Discrepancy()
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, detailResponse{Detail: detail, Warnings: warnings})
}

type checkResponse struct {
	*invoices.CheckReport
	HasDiscrepancy bool     `json:"has_discrepancy"`
	Warnings       []string `json:"warnings"`
}

// GET /invoices/{id}/check
func (s *Server) checkInvoice(w http.ResponseWriter, r *http.Request) {
	if s.deps.Verifier == nil {
		writeError(w, r, http.StatusNotImplemented, "Vérification des totaux non configurée.", nil)
		return
	}

	report, err := s.deps.Verifier.Check(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err, invoices.UserMessage)
		return
	}

	outcome := "ok"
	switch {
	case report.HasDiscrepancy():
		outcome = "discrepancy"
	case report.Document == nil:
		outcome = "no_document"
	}
	s.metrics.checks.WithLabelValues(outcome).Inc()

	warnings := report.Warnings()
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, checkResponse{CheckReport: report, HasDiscrepancy: report.HasDiscrepancy(), Warnings: warnings})
}

type totalsRequest struct {
	InvoiceNumber string `json:"invoice_number"`
	Date          string `json:"date"`
	HT            string `json:"ht"`
	TVA           string `json:"tva"`
	TTC           string `json:"ttc"`
}

type totalsResponse struct {
	Invoice *models.Invoice `json:"invoice"`
	// Row is the patched table row, present once the invoice table of its
	// establishment has been listed.
	Row *invoices.ListItem `json:"row,omitempty"`
}

// PATCH /invoices/{id}/totals
func (s *Server) updateTotals(w http.ResponseWriter, r *http.Request) {
	var body totalsRequest
	if err := decode(r, &body); err != nil {
		fail(w, r, err, invoices.UserMessage)
		return
	}

	invoice, err := s.deps.Editor.UpdateTotals(r.Context(), chi.URLParam(r, "id"), invoices.TotalsInput(body))
	if err != nil {
		fail(w, r, err, invoices.UserMessage)
		return
	}
	response := totalsResponse{Invoice: invoice}
	if row, ok := s.applyInvoice(*invoice); ok {
		response.Row = &row
	}
	writeJSON(w, http.StatusOK, response)
}

type articleRequest struct {
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Total     string `json:"total"`
	Duties    string `json:"duties"`
	Discount  string `json:"discount"`
}

// PATCH /articles/{id}
func (s *Server) updateArticle(w http.ResponseWriter, r *http.Request) {
	var body articleRequest
	if err := decode(r, &body); err != nil {
		fail(w, r, err, invoices.UserMessage)
		return
	}

	article, err := s.deps.Editor.UpdateArticle(r.Context(), chi.URLParam(r, "id"), invoices.ArticleInput(body))
	if err != nil {
		fail(w, r, err, invoices.UserMessage)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

type exportRequest struct {
	EstablishmentID string   `json:"establishment_id"`
	InvoiceIDs      []string `json:"invoice_ids"`
	From            string   `json:"from"`
	To              string   `json:"to"`
	Suppliers       []string `json:"suppliers"`
	Name            string   `json:"name"`
}

type exportResponse struct {
	*export.Result
	Message string `json:"message"`
}

// POST /invoices/export
func (s *Server) exportInvoices(w http.ResponseWriter, r *http.Request) {
	var body exportRequest
	if err := decode(r, &body); err != nil {
		fail(w, r, err, export.UserMessage)
		return
	}

	establishmentID, err := s.establishment(r, body.EstablishmentID)
	if err != nil {
		fail(w, r, err, export.UserMessage)
		return
	}
	from, err := queryDate(body.From, "du")
	if err != nil {
		fail(w, r, err, export.UserMessage)
		return
	}
	to, err := queryDate(body.To, "au")
	if err != nil {
		fail(w, r, err, export.UserMessage)
		return
	}

	loaded, err := s.deps.Lister.Load(r.Context(), invoices.Query{EstablishmentID: establishmentID, From: from, To: to})
	if err != nil {
		fail(w, r, err, invoices.UserMessage)
		return
	}

	session := export.NewSession(s.deps.Exporter)
	if err := session.Open(export.Filters{From: from, To: to, Suppliers: body.Suppliers}); err != nil {
		fail(w, r, err, export.UserMessage)
		return
	}
	if err := session.Select(body.InvoiceIDs); err != nil {
		fail(w, r, err, export.UserMessage)
		return
	}

	result, err := session.Run(r.Context(), loaded.Items, export.Request{
		EstablishmentID: establishmentID,
		Name:            body.Name,
		Dir:             s.deps.ExportDir,
	})
	if err != nil {
		fail(w, r, err, export.UserMessage)
		return
	}
	s.metrics.exports.WithLabelValues(string(result.Mode)).Inc()
	writeJSON(w, http.StatusOK, exportResponse{Result: result, Message: result.Message()})
}

// queryDate parses an optional date bound.
func queryDate(value, field string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	t, ok := format.ParseDate(value)
	if !ok {
		return time.Time{}, &validate.Error{Field: field, Value: value, Message: "date invalide"}
	}
	return t, nil
}
