package relay

import (
	"encoding/json"

	"github.com/goliatone/go-pushrelay/pkg/domain"
)

// ParseOrDefault decodes data into T. Any decode failure yields fallback
// together with a MalformedPushPayload error the caller may log; the
// returned value is always usable.
func ParseOrDefault[T any](data []byte, fallback T) (T, error) {
	var out T
	if len(data) == 0 {
		return fallback, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return fallback, domain.MalformedPushPayload(err)
	}
	return out, nil
}
