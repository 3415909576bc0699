package models

// RateUpdate reports what an upload did to one HSN. Old is nil for new rates.
type RateUpdate struct {
	HSN string   `json:"hsn"`
	Old *float64 `json:"old"`
	New float64  `json:"new"`
}

// UploadResult is returned by the PDF upload endpoints.
type UploadResult struct {
	OK         bool         `json:"ok"`
	Message    string       `json:"message,omitempty"`
	Error      string       `json:"error,omitempty"`
	Filename   string       `json:"filename,omitempty"`
	ParsedRows int          `json:"parsed_rows"`
	SavedRows  int          `json:"rates_count"`
	Updates    []RateUpdate `json:"updates"`
}

// RatesUpdatedEvent is broadcast to websocket clients after an import.
type RatesUpdatedEvent struct {
	Type       string `json:"type"`
	Source     string `json:"source"`
	ParsedRows int    `json:"parsed_rows"`
	Updated    int    `json:"updated"`
}
