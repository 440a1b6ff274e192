package category

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kiranshivaraju/errdesk/pkg/models"
	"gopkg.in/yaml.v3"
)

// Upserter is the store dependency of Seed.
type Upserter interface {
	UpsertCategory(ctx context.Context, c *models.ErrorCategory) (*models.ErrorCategory, error)
}

// LoadSeed decodes a YAML list of categories from path.
func LoadSeed(path string) ([]models.ErrorCategory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open category seed: %w", err)
	}
	defer f.Close()

	var cats []models.ErrorCategory
	if err := yaml.NewDecoder(f).Decode(&cats); err != nil {
		return nil, fmt.Errorf("decode category seed: %w", err)
	}

	for i := range cats {
		c := &cats[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return nil, fmt.Errorf("category seed entry %d: name is required", i)
		}
		if c.DefaultRiskLevel == "" {
			c.DefaultRiskLevel = models.RiskMedium
		}
		if !c.DefaultRiskLevel.Valid() {
			return nil, fmt.Errorf("category %q: invalid default_risk_level %q", c.Name, c.DefaultRiskLevel)
		}
		if c.Color == "" {
			c.Color = "#6B7280"
		}
	}
	return cats, nil
}

// Seed upserts every category by name and returns how many were written.
func Seed(ctx context.Context, s Upserter, cats []models.ErrorCategory) (int, error) {
	for i := range cats {
		if _, err := s.UpsertCategory(ctx, &cats[i]); err != nil {
			return i, fmt.Errorf("seed category %q: %w", cats[i].Name, err)
		}
	}
	return len(cats), nil
}
