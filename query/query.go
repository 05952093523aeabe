// Package query builds the per-day search queries.
package query

import (
	"time"

	"github.com/aluiziolira/go-harvest-apps/config"
	"github.com/aluiziolira/go-harvest-apps/models"
)

// Generator produces the cartesian product of layouts, buckets and conditions for a day.
type Generator struct {
	Site       string
	Layouts    []string
	Buckets    []string
	Conditions []string
}

// NewGenerator builds a generator from the harvester configuration.
func NewGenerator(cfg *config.Config) *Generator {
	return &Generator{
		Site:       cfg.SiteScope,
		Layouts:    append([]string(nil), cfg.DateLayouts...),
		Buckets:    append([]string(nil), cfg.Buckets...),
		Conditions: append([]string(nil), cfg.Conditions...),
	}
}

// ForDay returns every query for day, grouped by layout, then bucket, then condition.
func (g *Generator) ForDay(day time.Time) []models.Query {
	out := make([]models.Query, 0, g.PerDay())
	for _, layout := range g.Layouts {
		for _, bucket := range g.Buckets {
			for _, condition := range g.Conditions {
				out = append(out, models.Query{
					Site:      g.Site,
					Date:      day,
					Layout:    layout,
					Bucket:    bucket,
					Condition: condition,
				})
			}
		}
	}
	return out
}

// PerDay is the number of queries ForDay yields.
func (g *Generator) PerDay() int {
	return len(g.Layouts) * len(g.Buckets) * len(g.Conditions)
}
