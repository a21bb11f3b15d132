package invoices

import (
	"sort"
	"time"

	"restodash/internal/format"
	"restodash/pkg/models"
)

// now is replaced in tests.
var now = time.Now

// BuildPriceHistory turns the price variations of one master article into a
// chart series sorted by date. Variations with an unreadable date are
// skipped. When nothing is left the series is a single point holding price
// at date, or at the current time when date is missing or invalid.
func BuildPriceHistory(variations []models.Variation, date string, price float64) []models.PricePoint {
	points := make([]models.PricePoint, 0, len(variations))
	for _, v := range variations {
		t, ok := format.ParseDate(v.Date)
		if !ok {
			continue
		}
		points = append(points, models.PricePoint{Date: t, Value: v.NewUnitPrice})
	}

	if len(points) == 0 {
		t, ok := format.ParseDate(date)
		if !ok {
			t = now()
		}
		return []models.PricePoint{{Date: t, Value: price}}
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	return points
}

// partitionVariations groups variations by master article id.
func partitionVariations(variations []models.Variation) map[string][]models.Variation {
	byMaster := make(map[string][]models.Variation)
	for _, v := range variations {
		if v.MasterArticleID == "" {
			continue
		}
		byMaster[v.MasterArticleID] = append(byMaster[v.MasterArticleID], v)
	}
	return byMaster
}
