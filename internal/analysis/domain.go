package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DateLayout is the wire format of analysis dates.
const DateLayout = "2006-01-02"

// Monitoring modules shown on the dashboard.
const (
	ModuleGlacialLakes    = "glacial-lakes"
	ModuleRoadNetworks    = "road-networks"
	ModuleDrainageSystems = "drainage-systems"
)

// Modules lists the accepted monitoring modules in display order.
var Modules = []string{ModuleGlacialLakes, ModuleRoadNetworks, ModuleDrainageSystems}

// ErrUnknownModule is returned for a module outside Modules.
var ErrUnknownModule = errors.New("analysis: unknown module")

// Request selects a location and a date range.
type Request struct {
	Lat    float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon    float64 `json:"lon" validate:"gte=-180,lte=180"`
	Before string  `json:"before" validate:"required,datetime=2006-01-02"`
	After  string  `json:"after" validate:"required,datetime=2006-01-02"`
}

// Result is the change-detection output for one module.
type Result struct {
	Module       string `json:"module"`
	AreaType     string `json:"area_type"`
	BeforeURL    string `json:"before_url"`
	AfterURL     string `json:"after_url"`
	ChangeMapURL string `json:"change_map_url"`
}

// Comparison is the satellite comparison output.
type Comparison struct {
	BeforeImageURL  string         `json:"before_image_url"`
	AfterImageURL   string         `json:"after_image_url"`
	ImpactImageURL  string         `json:"impact_image_url"`
	AIAnalysis      Text           `json:"ai_analysis"`
	Location        map[string]any `json:"location,omitempty"`
	DateRange       map[string]any `json:"date_range,omitempty"`
	ChangeDetection Text           `json:"change_detection"`
	Timestamp       string         `json:"timestamp"`
}

// Text decodes either a JSON string or any other JSON value, which is kept as
// its compact JSON text.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*t = Text(buf.String())
	return nil
}

// StatusError reports a non-2xx response from the analysis backend.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("analysis: backend returned %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("analysis: backend returned %d", e.Code)
}

// ValidModule reports whether m is one of Modules.
func ValidModule(m string) bool {
	for _, known := range Modules {
		if m == known {
			return true
		}
	}
	return false
}
