package storage

import (
	"encoding/json"
	"fmt"

	"github.com/xtxerr/metricsd/internal/model"
)

// marshalPayload serializes the denormalized JSON columns for a payload:
// the per-mount disk list, the optional network block, and the complete
// payload verbatim. networkData is nil when the snapshot carried no
// network block so the column stays NULL.
func marshalPayload(p *model.Payload) (diskData string, networkData *string, rawData string, err error) {
	disk, err := json.Marshal(p.Metrics.Disk)
	if err != nil {
		return "", nil, "", fmt.Errorf("marshal disk data: %w", err)
	}

	if p.Metrics.Network != nil {
		network, err := json.Marshal(p.Metrics.Network)
		if err != nil {
			return "", nil, "", fmt.Errorf("marshal network data: %w", err)
		}
		ns := string(network)
		networkData = &ns
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", nil, "", fmt.Errorf("marshal payload: %w", err)
	}

	return string(disk), networkData, string(raw), nil
}
