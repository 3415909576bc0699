package models

// CalcRequest is the body of POST /api/calc.
type CalcRequest struct {
	Description string   `json:"description" binding:"required"`
	Price       *float64 `json:"price" binding:"required"`
	Inclusive   bool     `json:"inclusive"`
	TopK        int      `json:"top_k"`
}

// Calc is the computed breakdown. Amounts are rounded to 2 decimals.
type Calc struct {
	Rate  float64 `json:"rate"`
	Base  float64 `json:"base"`
	GST   float64 `json:"gst"`
	CGST  float64 `json:"cgst"`
	SGST  float64 `json:"sgst"`
	Total float64 `json:"total"`
}

// Match is the stored rate a description resolved to.
type Match struct {
	HSN         string  `json:"hsn"`
	Description string  `json:"description"`
	Rate        float64 `json:"rate"`
	CGSTRate    float64 `json:"cgst_rate"`
	SGSTRate    float64 `json:"sgst_rate"`
}

// Suggestion is a near miss offered when nothing matched well enough.
type Suggestion struct {
	Description string  `json:"description"`
	HSN         string  `json:"hsn,omitempty"`
	Rate        float64 `json:"rate"`
	Score       float64 `json:"score"`
}

// CalcResponse is returned by POST /api/calc.
type CalcResponse struct {
	Matched     bool         `json:"matched"`
	Score       float64      `json:"score,omitempty"`
	Match       *Match       `json:"match,omitempty"`
	Calc        *Calc        `json:"calc,omitempty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	Message     string       `json:"message,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// LookupResponse is returned by GET /calculate/:product.
type LookupResponse struct {
	Product     string   `json:"product"`
	HSN         string   `json:"hsn,omitempty"`
	Description string   `json:"description,omitempty"`
	Rate        *float64 `json:"rate"`
	Score       float64  `json:"score,omitempty"`
	Matched     bool     `json:"matched"`
	Error       string   `json:"error,omitempty"`
}
