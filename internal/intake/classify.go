package intake

import (
	"strings"

	"github.com/kiranshivaraju/errdesk/pkg/models"
)

// ClassifyRisk triages an automatically captured error that carries no
// explicit risk level. Rules are checked in order and the first match wins:
// authentication failures are critical, persistence failures high, and
// everything else (network and timeout failures included) medium.
// Matching is case-sensitive.
func ClassifyRisk(code, message string) models.RiskLevel {
	switch {
	case strings.Contains(code, "AUTH") || strings.Contains(message, "authentication"):
		return models.RiskCritical
	case strings.Contains(code, "PGRST") || strings.Contains(message, "database"):
		return models.RiskHigh
	case strings.Contains(message, "network") || strings.Contains(message, "timeout"):
		return models.RiskMedium
	default:
		return models.RiskMedium
	}
}
