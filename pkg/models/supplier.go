package models

import "time"

// Supplier labels accepted by the API.
const (
	LabelFood          = "FOOD"
	LabelBeverages     = "BEVERAGES"
	LabelFixedCosts    = "FIXED_COSTS"
	LabelVariableCosts = "VARIABLE_COSTS"
	LabelOthers        = "OTHERS"
)

// Merge request statuses.
const (
	MergePending  = "pending"
	MergeAccepted = "accepted"
	MergeRefused  = "refused"
)

type Supplier struct {
	ID               string  `json:"id"`
	EstablishmentID  string  `json:"establishment_id"`
	Name             string  `json:"name"`
	Label            string  `json:"label"`
	ActiveAnalysis   bool    `json:"active_analysis"`
	MarketSupplierID *string `json:"market_supplier_id"`
}

// MarketSupplier is a canonical supplier of the mercuriale catalogue.
type MarketSupplier struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// MergeRequest asks to consolidate duplicate suppliers under one target.
type MergeRequest struct {
	ID                string    `json:"id"`
	EstablishmentID   string    `json:"establishment_id"`
	SourceSupplierIDs []string  `json:"source_supplier_ids"`
	TargetSupplierID  string    `json:"target_supplier_id"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}
