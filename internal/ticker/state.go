package ticker

import (
	"time"

	"github.com/Alpha162/armoured-candles/internal/render"
	"github.com/Alpha162/armoured-candles/pkg/models"
)

// chartState is one slot's committed pipeline output. A failed cycle leaves
// the previous committed state untouched, so the panel keeps showing the last
// good data with its original fetch timestamp.
type chartState struct {
	data    render.ChartData
	haveNew bool // at least one successful commit since boot
	lastErr error
}

// ChartStatus is the API-facing view of one chart slot.
type ChartStatus struct {
	Slot          int                `json:"slot"`
	Config        models.ChartConfig `json:"config"`
	LastPrice     float64            `json:"last_price"`
	PercentChange float64            `json:"percent_change"`
	FetchedAt     time.Time          `json:"fetched_at"`
	LastError     string             `json:"last_error,omitempty"`
}

// Snapshot is the full device status exposed over the API.
type Snapshot struct {
	Charts           []ChartStatus `json:"charts"`
	ConnectionMode   string        `json:"connection_mode"`
	FetchFailures    int           `json:"fetch_failures"`
	UptimeSeconds    int64         `json:"uptime_seconds"`
	FreeMemoryBytes  uint64        `json:"free_memory_bytes"`
	UpdateInProgress bool          `json:"update_in_progress"`
	UpdateProgress   int           `json:"update_progress"`
	UpdateFailed     bool          `json:"update_failed"`
}
