// Package suppliers manages supplier categories, the link to the market
// supplier catalogue and supplier merge requests.
package suppliers

import (
	"strings"

	"restodash/pkg/models"
)

// labelNames maps API labels to their French display names.
var labelNames = map[string]string{
	models.LabelFood:          "Alimentaire",
	models.LabelBeverages:     "Boissons",
	models.LabelFixedCosts:    "Frais fixes",
	models.LabelVariableCosts: "Frais variables",
	models.LabelOthers:        "Autres",
}

// NormalizeLabel returns the API label matching s, accepting either an API
// value or a display name in any case. Unknown or empty values become
// models.LabelOthers.
func NormalizeLabel(s string) string {
	cleaned := strings.TrimSpace(s)
	upper := strings.ToUpper(cleaned)
	if _, ok := labelNames[upper]; ok {
		return upper
	}
	for label, name := range labelNames {
		if strings.EqualFold(name, cleaned) {
			return label
		}
	}
	return models.LabelOthers
}

// DisplayLabel returns the French name of a label, "Autres" when unknown.
func DisplayLabel(label string) string {
	return labelNames[NormalizeLabel(label)]
}

// IsKnownLabel reports whether s names a label, by API value or display name.
func IsKnownLabel(s string) bool {
	cleaned := strings.TrimSpace(s)
	if _, ok := labelNames[strings.ToUpper(cleaned)]; ok {
		return true
	}
	for _, name := range labelNames {
		if strings.EqualFold(name, cleaned) {
			return true
		}
	}
	return false
}
