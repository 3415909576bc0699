package models

import "time"

// GSTRate is one row of the rate schedule, keyed by HSN code.
type GSTRate struct {
	ID          string    `json:"-" db:"id"`
	RateKey     string    `json:"-" db:"rate_key"`
	HSN         string    `json:"hsn" db:"hsn"`
	Description string    `json:"description" db:"description"`
	Rate        float64   `json:"rate" db:"rate"`
	Source      string    `json:"source,omitempty" db:"source"`
	SourcePDF   string    `json:"source_pdf,omitempty" db:"source_pdf"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// RateChange is a history record written whenever an existing rate is replaced.
type RateChange struct {
	ID             string    `json:"id" db:"id"`
	HSN            string    `json:"hsn" db:"hsn"`
	RateKey        string    `json:"-" db:"rate_key"`
	OldRate        float64   `json:"old_rate" db:"old_rate"`
	NewRate        float64   `json:"new_rate" db:"new_rate"`
	OldDescription string    `json:"old_description" db:"old_description"`
	NewDescription string    `json:"new_description" db:"new_description"`
	SourcePDF      string    `json:"source_pdf" db:"source_pdf"`
	ChangedAt      time.Time `json:"changed_at" db:"changed_at"`
}

// CalculationLog is the audit trail of product lookups.
type CalculationLog struct {
	ID           string    `json:"id" db:"id"`
	ProductName  string    `json:"product_name" db:"product_name"`
	HSNCode      string    `json:"hsn_code" db:"hsn_code"`
	Rate         float64   `json:"rate" db:"rate"`
	IPAddress    string    `json:"ip_address" db:"ip_address"`
	CalculatedAt time.Time `json:"calculated_at" db:"calculated_at"`
}

// UploadRecord describes a processed rate PDF.
type UploadRecord struct {
	ID         string    `json:"id" db:"id"`
	Filename   string    `json:"filename" db:"filename"`
	StoredPath string    `json:"stored_path" db:"stored_path"`
	ParsedRows int       `json:"parsed_rows" db:"parsed_rows"`
	SavedRows  int       `json:"saved_rows" db:"saved_rows"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// ParsedRow is one rate row extracted from a PDF.
type ParsedRow struct {
	HSN         string  `json:"hsn"`
	Description string  `json:"description"`
	Rate        float64 `json:"rate"`
}

// RateStats summarises where the stored rates came from.
type RateStats struct {
	TotalRates   int `json:"total_rates"`
	SeedRates    int `json:"seed_rates"`
	UserUploaded int `json:"user_uploaded"`
}
