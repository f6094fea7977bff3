package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/council/internal/domain"
)

// TestPanelFor tests that trigger-relevant personas face the council only
// when enough of them exist to form a meaningful panel.
func TestPanelFor(t *testing.T) {
	tests := []struct {
		name     string
		relevant []string
		want     []string
	}{
		{
			name:     "three relevant personas form a panel",
			relevant: []string{"buffett", "burry", "munger"},
			want:     []string{"buffett", "burry", "munger"},
		},
		{
			name:     "four relevant personas form a panel",
			relevant: []string{"buffett", "burry", "dalio", "munger"},
			want:     []string{"buffett", "burry", "dalio", "munger"},
		},
		{
			name:     "two relevant personas fall back to the full council",
			relevant: []string{"buffett", "burry"},
			want:     nil,
		},
		{
			name:     "no relevant personas fall back to the full council",
			relevant: nil,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset := domain.TriggeredAsset{Symbol: "AAPL", RelevantPersonaIDs: tt.relevant}
			assert.Equal(t, tt.want, panelFor(asset))
		})
	}
}

// TestLoadUniverse tests the metrics file parsing and watchlist filtering.
func TestLoadUniverse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- symbol: AAPL
  price: 187.45
  metrics:
    pe_ratio: 28.5
    drawdown_from_high: -0.12
- symbol: MSFT
  price: 410.10
  metrics:
    pe_ratio: 35.2
- symbol: NVDA
  price: 880.00
  metrics:
    pe_ratio: 65.0
`), 0o644))

	t.Run("no watchlist keeps everything", func(t *testing.T) {
		universe, err := loadUniverse(path, nil)
		require.NoError(t, err)
		require.Len(t, universe, 3)
		assert.Equal(t, "AAPL", universe[0].Symbol)
		assert.Equal(t, 187.45, universe[0].Price)
		assert.Equal(t, 28.5, universe[0].Metrics["pe_ratio"])
	})

	t.Run("watchlist filters", func(t *testing.T) {
		universe, err := loadUniverse(path, []string{"MSFT", "NVDA"})
		require.NoError(t, err)
		require.Len(t, universe, 2)
		assert.Equal(t, "MSFT", universe[0].Symbol)
		assert.Equal(t, "NVDA", universe[1].Symbol)
	})

	t.Run("missing path fails", func(t *testing.T) {
		_, err := loadUniverse("", nil)
		assert.Error(t, err)
	})

	t.Run("unreadable file fails", func(t *testing.T) {
		_, err := loadUniverse(filepath.Join(t.TempDir(), "absent.yaml"), nil)
		assert.Error(t, err)
	})
}
