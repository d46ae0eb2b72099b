package delta

import (
	"encoding/json"
	"fmt"
)

// FileStats contains file-level statistics recorded by writers.
type FileStats struct {
	NumRecords int64                  `json:"numRecords"`
	MinValues  map[string]interface{} `json:"minValues,omitempty"`
	MaxValues  map[string]interface{} `json:"maxValues,omitempty"`
	NullCount  map[string]interface{} `json:"nullCount,omitempty"`
}

// ParseStats decodes the stats of an add action. It returns nil, nil when the
// file carries no statistics.
func (a *AddFile) ParseStats() (*FileStats, error) {
	if a.Stats == "" {
		return nil, nil
	}
	var stats FileStats
	if err := json.Unmarshal([]byte(a.Stats), &stats); err != nil {
		return nil, fmt.Errorf("failed to parse stats of %s: %w", a.Path, err)
	}
	return &stats, nil
}
