package query

import (
	"testing"
	"time"

	"github.com/aluiziolira/go-harvest-apps/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForDayProduct(t *testing.T) {
	g := &Generator{
		Site:       "site:example.test",
		Layouts:    []string{config.LayoutShort, config.LayoutFull},
		Buckets:    []string{"1K+", "10K+"},
		Conditions: []string{"game", "-game"},
	}
	day := time.Date(2024, time.August, 17, 0, 0, 0, 0, time.UTC)

	queries := g.ForDay(day)
	require.Len(t, queries, 8)
	assert.Equal(t, 8, g.PerDay())

	assert.Equal(t, `site:example.test "17 Aug 2024" "1K+" "game"`, queries[0].Text())
	assert.Equal(t, `site:example.test "17 Aug 2024" "1K+" "-game"`, queries[1].Text())
	assert.Equal(t, `site:example.test "17 Aug 2024" "10K+" "game"`, queries[2].Text())
	assert.Equal(t, `site:example.test "17 August 2024" "1K+" "game"`, queries[4].Text())

	seen := map[string]bool{}
	for _, q := range queries {
		assert.False(t, seen[q.Text()], "duplicate query %q", q.Text())
		seen[q.Text()] = true
		assert.True(t, q.Date.Equal(day))
	}
}

func TestNewGeneratorCopiesConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	g := NewGenerator(cfg)
	cfg.Buckets[0] = "changed"

	assert.Equal(t, "0+", g.Buckets[0])
	assert.Equal(t, 60, g.PerDay())
}
