package suppliers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"restodash/internal/api"
	"restodash/internal/cache"
	"restodash/internal/logger"
	"restodash/internal/validate"
	"restodash/pkg/models"
)

var (
	ErrLoadFailed   = errors.New("suppliers: load failed")
	ErrUpdateFailed = errors.New("suppliers: update failed")
	ErrMergeFailed  = errors.New("suppliers: merge request failed")
)

// Messages shown to users.
const (
	MsgLoadFailed   = "Impossible de charger les fournisseurs."
	MsgUpdateFailed = "Impossible de mettre à jour le fournisseur."
	MsgMergeFailed  = "Impossible de traiter la demande de fusion."
	MsgUnknown      = "Une erreur est survenue."
)

// UserMessage converts an error of this package into the French message
// displayed to the user.
func UserMessage(err error) string {
	var verr *validate.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return fmt.Sprintf("Champ « %s » : %s.", verr.Field, verr.Message)
	case errors.Is(err, ErrLoadFailed):
		return MsgLoadFailed
	case errors.Is(err, ErrUpdateFailed):
		return MsgUpdateFailed
	case errors.Is(err, ErrMergeFailed):
		return MsgMergeFailed
	default:
		return MsgUnknown
	}
}

// API is the part of the API client the service needs.
type API interface {
	ListSuppliers(ctx context.Context, opts api.ListOptions) ([]models.Supplier, error)
	UpdateSupplier(ctx context.Context, id string, patch api.SupplierPatch) (*models.Supplier, error)
	ListMarketSuppliers(ctx context.Context, opts api.ListOptions) ([]models.MarketSupplier, error)
	CreateMergeRequest(ctx context.Context, input api.MergeRequestInput) (*models.MergeRequest, error)
	ListMergeRequests(ctx context.Context, opts api.ListOptions) ([]models.MergeRequest, error)
	UpdateMergeRequestStatus(ctx context.Context, id, status string) (*models.MergeRequest, error)
}

// Row is a supplier shaped for display.
type Row struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Label          string `json:"label"`
	LabelName      string `json:"label_name"`
	ActiveAnalysis bool   `json:"active_analysis"`
	MarketSupplier string `json:"market_supplier"`
}

// MergeInput asks to merge Sources into Target.
type MergeInput struct {
	EstablishmentID string   `field:"établissement" validate:"required"`
	Target          string   `field:"fournisseur cible" validate:"required"`
	Sources         []string `field:"fournisseurs à fusionner" validate:"required,min=1,dive,required"`
}

type labelInput struct {
	Label string `field:"catégorie" validate:"required,label"`
}

type linkInput struct {
	SupplierID       string `field:"fournisseur" validate:"required"`
	MarketSupplierID string `field:"fournisseur mercuriale" validate:"required"`
}

// Service manages suppliers of an establishment.
type Service struct {
	api   API
	cache cache.Cache
	log   zerolog.Logger
}

// NewService creates a supplier service. A nil cache disables caching of the
// market supplier catalogue.
func NewService(client API, c cache.Cache) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{api: client, cache: c, log: logger.WithComponent("suppliers")}
}

// List returns the suppliers of an establishment sorted by name, with their
// market supplier resolved when linked.
func (s *Service) List(ctx context.Context, establishmentID string) ([]Row, error) {
	const op = "suppliers.List"

	list, err := s.api.ListSuppliers(ctx, api.ListOptions{
		EstablishmentID: establishmentID,
		OrderBy:         "name",
		Direction:       "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrLoadFailed, err)
	}

	market := map[string]string{}
	if hasMarketLinks(list) {
		catalogue, err := s.MarketSuppliers(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("Market supplier catalogue unavailable")
		}
		for _, m := range catalogue {
			market[m.ID] = m.Name
		}
	}

	rows := make([]Row, 0, len(list))
	for _, supplier := range list {
		row := Row{
			ID:             supplier.ID,
			Name:           supplier.Name,
			Label:          NormalizeLabel(supplier.Label),
			LabelName:      DisplayLabel(supplier.Label),
			ActiveAnalysis: supplier.ActiveAnalysis,
		}
		if supplier.MarketSupplierID != nil {
			row.MarketSupplier = market[*supplier.MarketSupplierID]
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name)
	})
	return rows, nil
}

func hasMarketLinks(list []models.Supplier) bool {
	for _, supplier := range list {
		if supplier.MarketSupplierID != nil {
			return true
		}
	}
	return false
}

// MarketSuppliers returns the market supplier catalogue, from cache when
// possible.
func (s *Service) MarketSuppliers(ctx context.Context) ([]models.MarketSupplier, error) {
	const op = "suppliers.MarketSuppliers"

	var cached []models.MarketSupplier
	if found, err := s.cache.Get(ctx, cache.MarketSuppliersKey, &cached); err == nil && found {
		return cached, nil
	}

	catalogue, err := s.api.ListMarketSuppliers(ctx, api.ListOptions{OrderBy: "name", Direction: "asc"})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrLoadFailed, err)
	}
	if err := s.cache.Set(ctx, cache.MarketSuppliersKey, catalogue); err != nil {
		s.log.Debug().Err(err).Msg("Failed to cache market suppliers")
	}
	return catalogue, nil
}

// UpdateLabel sets the category of a supplier. label may be an API value or
// a display name; anything else is rejected before any request.
func (s *Service) UpdateLabel(ctx context.Context, id, label string) (*models.Supplier, error) {
	const op = "suppliers.UpdateLabel"

	if err := checkID("fournisseur", id); err != nil {
		return nil, err
	}

	input := labelInput{Label: strings.TrimSpace(label)}
	if IsKnownLabel(label) {
		input.Label = NormalizeLabel(label)
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	supplier, err := s.api.UpdateSupplier(ctx, id, api.SupplierPatch{Label: &input.Label})
	if err != nil {
		s.log.Error().Err(err).Str("supplier_id", id).Msg("Failed to update supplier label")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUpdateFailed, err)
	}

	s.log.Info().Str("supplier_id", id).Str("label", input.Label).Msg("Supplier label updated")
	return supplier, nil
}

// LinkMarketSupplier links a supplier to a market supplier of the catalogue.
func (s *Service) LinkMarketSupplier(ctx context.Context, id, marketSupplierID string) (*models.Supplier, error) {
	const op = "suppliers.LinkMarketSupplier"

	input := linkInput{SupplierID: strings.TrimSpace(id), MarketSupplierID: strings.TrimSpace(marketSupplierID)}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if err := checkID("fournisseur", input.SupplierID); err != nil {
		return nil, err
	}

	supplier, err := s.api.UpdateSupplier(ctx, input.SupplierID, api.SupplierPatch{MarketSupplierID: &input.MarketSupplierID})
	if err != nil {
		s.log.Error().Err(err).Str("supplier_id", id).Msg("Failed to link market supplier")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUpdateFailed, err)
	}

	s.log.Info().
		Str("supplier_id", input.SupplierID).
		Str("market_supplier_id", input.MarketSupplierID).
		Msg("Supplier linked to market supplier")
	return supplier, nil
}

// RequestMerge files a request to merge the source suppliers into the
// target. Duplicate sources are collapsed; the target may not be a source.
func (s *Service) RequestMerge(ctx context.Context, in MergeInput) (*models.MergeRequest, error) {
	const op = "suppliers.RequestMerge"

	in.Target = strings.TrimSpace(in.Target)
	in.Sources = dedupe(in.Sources)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := checkID("fournisseur cible", in.Target); err != nil {
		return nil, err
	}
	for _, source := range in.Sources {
		if source == in.Target {
			return nil, &validate.Error{
				Field:   "fournisseurs à fusionner",
				Value:   source,
				Message: "le fournisseur cible ne peut pas être fusionné avec lui-même",
			}
		}
		if err := checkID("fournisseurs à fusionner", source); err != nil {
			return nil, err
		}
	}

	request, err := s.api.CreateMergeRequest(ctx, api.MergeRequestInput{
		EstablishmentID:   in.EstablishmentID,
		SourceSupplierIDs: in.Sources,
		TargetSupplierID:  in.Target,
	})
	if err != nil {
		s.log.Error().Err(err).Str("target", in.Target).Msg("Failed to create merge request")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMergeFailed, err)
	}

	s.log.Info().
		Str("merge_request_id", request.ID).
		Str("target", in.Target).
		Strs("sources", in.Sources).
		Msg("Merge request created")
	return request, nil
}

// MergeRequests lists the merge requests of an establishment, optionally
// restricted to one status.
func (s *Service) MergeRequests(ctx context.Context, establishmentID, status string) ([]models.MergeRequest, error) {
	const op = "suppliers.MergeRequests"

	requests, err := s.api.ListMergeRequests(ctx, api.ListOptions{
		EstablishmentID: establishmentID,
		OrderBy:         "created_at",
		Direction:       "desc",
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrLoadFailed, err)
	}
	if status == "" {
		return requests, nil
	}

	filtered := make([]models.MergeRequest, 0, len(requests))
	for _, r := range requests {
		if strings.EqualFold(r.Status, status) {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// ResolveMerge accepts or refuses a merge request.
func (s *Service) ResolveMerge(ctx context.Context, id string, accepted bool) (*models.MergeRequest, error) {
	const op = "suppliers.ResolveMerge"

	if err := checkID("demande de fusion", id); err != nil {
		return nil, err
	}

	status := models.MergeRefused
	if accepted {
		status = models.MergeAccepted
	}

	request, err := s.api.UpdateMergeRequestStatus(ctx, id, status)
	if err != nil {
		s.log.Error().Err(err).Str("merge_request_id", id).Msg("Failed to resolve merge request")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMergeFailed, err)
	}

	s.log.Info().Str("merge_request_id", id).Str("status", status).Msg("Merge request resolved")
	return request, nil
}

func checkID(field, id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return &validate.Error{Field: field, Value: id, Message: "ce champ est obligatoire"}
	case models.IsTempID(id):
		return &validate.Error{Field: field, Value: id, Message: "élément pas encore enregistré"}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
