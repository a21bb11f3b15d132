package invoices

import (
	"errors"
	"fmt"

	"restodash/internal/validate"
)

// Sentinel errors returned by the invoice layer. The underlying API error is
// always wrapped alongside them.
var (
	ErrLoadFailed   = errors.New("invoices: load failed")
	ErrDetailFailed = errors.New("invoices: detail load failed")
	ErrUpdateFailed = errors.New("invoices: update failed")
	ErrNotFound     = errors.New("invoices: invoice not found")
)

// Messages shown to users for each failure class.
const (
	MsgLoadFailed   = "Impossible de charger les factures."
	MsgDetailFailed = "Impossible de charger la facture."
	MsgUpdateFailed = "Impossible de mettre à jour la facture."
	MsgNotFound     = "Facture introuvable."
	MsgUnknown      = "Une erreur est survenue."
)

// UserMessage converts an error of this package into the French message
// displayed to the user. Technical details are never leaked.
func UserMessage(err error) string {
	var verr *validate.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return fmt.Sprintf("Champ « %s » : %s.", verr.Field, verr.Message)
	case errors.Is(err, ErrNotFound):
		return MsgNotFound
	case errors.Is(err, ErrLoadFailed):
		return MsgLoadFailed
	case errors.Is(err, ErrDetailFailed):
		return MsgDetailFailed
	case errors.Is(err, ErrUpdateFailed):
		return MsgUpdateFailed
	default:
		return MsgUnknown
	}
}
