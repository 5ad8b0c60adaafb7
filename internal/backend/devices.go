package backend

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/signal-setup/internal/account"
)

// wireDevice mirrors one entry of `signal-cli -o json listDevices`.
type wireDevice struct {
	ID                int     `json:"id"`
	Name              *string `json:"name"`
	CreatedTimestamp  int64   `json:"createdTimestamp"`
	LastSeenTimestamp int64   `json:"lastSeenTimestamp"`
}

// ParseDevices decodes listDevices JSON output.
func ParseDevices(stdout string) ([]account.DeviceRecord, error) {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return nil, nil
	}

	var wire []wireDevice
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return nil, fmt.Errorf("failed to parse device list: %w", err)
	}

	devices := make([]account.DeviceRecord, 0, len(wire))
	for _, w := range wire {
		d := account.DeviceRecord{ID: w.ID}
		if w.Name != nil {
			d.Name = *w.Name
		}
		if w.CreatedTimestamp > 0 {
			d.Created = time.UnixMilli(w.CreatedTimestamp)
		}
		if w.LastSeenTimestamp > 0 {
			d.LastSeen = time.UnixMilli(w.LastSeenTimestamp)
		}
		devices = append(devices, d)
	}
	return devices, nil
}
