package pattern

import (
	"encoding/json"
	"fmt"

	"github.com/MeKo-Tech/textilegen/internal/noise"
)

// Request is a JSON render request as sent by the browser studio.
type Request struct {
	Pattern  string         `json:"pattern"`
	Settings Settings       `json:"settings"`
	Noise    noise.Settings `json:"noise"`
}

// DecodeRequest parses data on top of DefaultSettings(w, h) and the default
// noise settings, so fields the request leaves out keep their defaults.
func DecodeRequest(data []byte, w, h int) (Request, error) {
	req := Request{
		Settings: DefaultSettings(w, h),
		Noise:    noise.DefaultSettings(),
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}
