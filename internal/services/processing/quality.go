package processing

import "github.com/bobmcallan/simtrade/internal/models"

// enrichmentPoints is added to the base score for each enrichment present on a bar.
const enrichmentPoints = 10

// qualityScore rates a processed bar by how many enrichments were computed:
// change figures, limit prices, moving averages and market cap.
func qualityScore(b *models.Bar, base int) int {
	score := base
	if !models.IsMissing(b.ChangeAmount) && !models.IsMissing(b.ChangePercent) {
		score += enrichmentPoints
	}
	if !models.IsMissing(b.HighLimit) && !models.IsMissing(b.LowLimit) {
		score += enrichmentPoints
	}
	if !models.IsMissing(b.MA5) {
		score += enrichmentPoints
	}
	if !models.IsMissing(b.TotalValue) {
		score += enrichmentPoints
	}

	// Clamp to 0-100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// barSource tags a bar processed_enhanced when derived or market-cap
// enrichment succeeded, processed when only baseline fields are present.
func barSource(b *models.Bar) models.Source {
	if !models.IsMissing(b.ChangePercent) || !models.IsMissing(b.TotalValue) {
		return models.SourceProcessedEnhanced
	}
	return models.SourceProcessed
}
