package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LovationAdmin/gst-api/models"
	"github.com/LovationAdmin/gst-api/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("not found")

const maxRateKeyLen = 500

// RateKey identifies a rate row: the HSN code when there is one, otherwise
// the normalized description.
func RateKey(hsn, description string) string {
	if hsn = strings.TrimSpace(hsn); hsn != "" {
		return "hsn:" + hsn
	}
	key := "desc:" + NormalizeText(description)
	if len(key) > maxRateKeyLen {
		key = key[:maxRateKeyLen]
	}
	return key
}

// RateRepository persists rates, their history and the audit tables. Queries
// are written with ? placeholders and rebound for the active driver.
type RateRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewRateRepository(db *sqlx.DB) *RateRepository {
	return &RateRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (r *RateRepository) q(query string) string {
	return r.db.Rebind(query)
}

const rateColumns = `id, rate_key, hsn, description, rate, source, source_pdf, created_at, updated_at`

// SaveRate inserts the rate or replaces the one with the same key. When it
// replaces a row whose rate or description differ, the previous values go to
// rate_history. The old rate is returned whenever the key already existed.
func (r *RateRepository) SaveRate(ctx context.Context, rate models.GSTRate) (*float64, error) {
	rate.RateKey = RateKey(rate.HSN, rate.Description)
	now := r.now()
	var previous *float64

	err := utils.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var existing models.GSTRate
		err := tx.GetContext(ctx, &existing,
			r.q(`SELECT `+rateColumns+` FROM gst_rates WHERE rate_key = ?`), rate.RateKey)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx, r.q(`
				INSERT INTO gst_rates (id, rate_key, hsn, description, rate, source, source_pdf, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`), uuid.NewString(), rate.RateKey, rate.HSN, rate.Description, rate.Rate,
				rate.Source, rate.SourcePDF, now, now)
			if err != nil {
				return fmt.Errorf("insert rate: %w", err)
			}
			return nil

		case err != nil:
			return fmt.Errorf("lookup rate: %w", err)
		}

		old := existing.Rate
		previous = &old

		if existing.Rate == rate.Rate && existing.Description == rate.Description {
			_, err = tx.ExecContext(ctx, r.q(`
				UPDATE gst_rates SET source = ?, source_pdf = ?, updated_at = ? WHERE rate_key = ?
			`), rate.Source, rate.SourcePDF, now, rate.RateKey)
			if err != nil {
				return fmt.Errorf("touch rate: %w", err)
			}
			return nil
		}

		_, err = tx.ExecContext(ctx, r.q(`
			INSERT INTO rate_history (id, hsn, rate_key, old_rate, new_rate, old_description, new_description, source_pdf, changed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`), uuid.NewString(), rate.HSN, rate.RateKey, existing.Rate, rate.Rate,
			existing.Description, rate.Description, rate.SourcePDF, now)
		if err != nil {
			return fmt.Errorf("insert history: %w", err)
		}

		_, err = tx.ExecContext(ctx, r.q(`
			UPDATE gst_rates
			SET hsn = ?, description = ?, rate = ?, source = ?, source_pdf = ?, updated_at = ?
			WHERE rate_key = ?
		`), rate.HSN, rate.Description, rate.Rate, rate.Source, rate.SourcePDF, now, rate.RateKey)
		if err != nil {
			return fmt.Errorf("update rate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// entryKey keys an additional description filed under an HSN code that
// already has a primary row.
func entryKey(hsn, description string) string {
	key := "hsn:" + strings.TrimSpace(hsn) + "|" + NormalizeText(description)
	if len(key) > maxRateKeyLen {
		key = key[:maxRateKeyLen]
	}
	return key
}

// InsertIfAbsent adds the rate unless the same HSN and description pair is
// already stored. The first description of an HSN code takes the primary
// key so uploads update it; later descriptions get their own entry key.
func (r *RateRepository) InsertIfAbsent(ctx context.Context, rate models.GSTRate) (bool, error) {
	rate.HSN = strings.TrimSpace(rate.HSN)
	rate.RateKey = RateKey(rate.HSN, rate.Description)
	now := r.now()
	inserted := false

	err := utils.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if rate.HSN == "" {
			var exists int
			err := tx.GetContext(ctx, &exists, r.q(`SELECT COUNT(*) FROM gst_rates WHERE rate_key = ?`), rate.RateKey)
			if err != nil {
				return fmt.Errorf("lookup rate: %w", err)
			}
			if exists > 0 {
				return nil
			}
		} else {
			var descriptions []string
			err := tx.SelectContext(ctx, &descriptions, r.q(`SELECT description FROM gst_rates WHERE hsn = ?`), rate.HSN)
			if err != nil {
				return fmt.Errorf("lookup rate: %w", err)
			}
			want := NormalizeText(rate.Description)
			for _, d := range descriptions {
				if NormalizeText(d) == want {
					return nil
				}
			}
			if len(descriptions) > 0 {
				rate.RateKey = entryKey(rate.HSN, rate.Description)
			}
		}

		_, err := tx.ExecContext(ctx, r.q(`
			INSERT INTO gst_rates (id, rate_key, hsn, description, rate, source, source_pdf, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`), uuid.NewString(), rate.RateKey, rate.HSN, rate.Description, rate.Rate,
			rate.Source, rate.SourcePDF, now, now)
		if err != nil {
			return fmt.Errorf("insert rate: %w", err)
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (r *RateRepository) GetByHSN(ctx context.Context, hsn string) (*models.GSTRate, error) {
	var rate models.GSTRate
	err := r.db.GetContext(ctx, &rate,
		r.q(`SELECT `+rateColumns+` FROM gst_rates WHERE rate_key = ?`), RateKey(hsn, ""))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rate: %w", err)
	}
	return &rate, nil
}

func (r *RateRepository) List(ctx context.Context, limit int) ([]models.GSTRate, error) {
	rates := []models.GSTRate{}
	err := r.db.SelectContext(ctx, &rates,
		r.q(`SELECT `+rateColumns+` FROM gst_rates ORDER BY hsn, description LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	return rates, nil
}

func (r *RateRepository) All(ctx context.Context) ([]models.GSTRate, error) {
	rates := []models.GSTRate{}
	err := r.db.SelectContext(ctx, &rates,
		`SELECT `+rateColumns+` FROM gst_rates ORDER BY hsn, description`)
	if err != nil {
		return nil, fmt.Errorf("load rates: %w", err)
	}
	return rates, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes % and _ in user input match literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// SearchDescription does a case-insensitive substring search.
func (r *RateRepository) SearchDescription(ctx context.Context, term string, limit int) ([]models.GSTRate, error) {
	rates := []models.GSTRate{}
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(term))) + "%"
	err := r.db.SelectContext(ctx, &rates, r.q(`
		SELECT `+rateColumns+` FROM gst_rates
		WHERE LOWER(description) LIKE ? ESCAPE '\'
		ORDER BY hsn, description
		LIMIT ?
	`), pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search rates: %w", err)
	}
	return rates, nil
}

func (r *RateRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM gst_rates`); err != nil {
		return 0, fmt.Errorf("count rates: %w", err)
	}
	return n, nil
}

func (r *RateRepository) CountBySourcePrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.q(`SELECT COUNT(*) FROM gst_rates WHERE source LIKE ? ESCAPE '\'`), escapeLike(prefix)+"%")
	if err != nil {
		return 0, fmt.Errorf("count rates: %w", err)
	}
	return n, nil
}

// History returns rate changes newest first; an empty hsn returns all of them.
func (r *RateRepository) History(ctx context.Context, hsn string, limit int) ([]models.RateChange, error) {
	changes := []models.RateChange{}
	var err error
	if hsn == "" {
		err = r.db.SelectContext(ctx, &changes, r.q(`
			SELECT id, hsn, rate_key, old_rate, new_rate, old_description, new_description, source_pdf, changed_at
			FROM rate_history ORDER BY changed_at DESC LIMIT ?
		`), limit)
	} else {
		err = r.db.SelectContext(ctx, &changes, r.q(`
			SELECT id, hsn, rate_key, old_rate, new_rate, old_description, new_description, source_pdf, changed_at
			FROM rate_history WHERE hsn = ? ORDER BY changed_at DESC LIMIT ?
		`), hsn, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("rate history: %w", err)
	}
	return changes, nil
}

func (r *RateRepository) LogCalculation(ctx context.Context, product, hsn string, rate float64, ip string) error {
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO product_logs (id, product_name, hsn_code, rate, ip_address, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), uuid.NewString(), product, hsn, rate, ip, r.now())
	if err != nil {
		return fmt.Errorf("log calculation: %w", err)
	}
	return nil
}

func (r *RateRepository) RecentCalculations(ctx context.Context, limit int) ([]models.CalculationLog, error) {
	logs := []models.CalculationLog{}
	err := r.db.SelectContext(ctx, &logs, r.q(`
		SELECT id, product_name, hsn_code, rate, ip_address, calculated_at
		FROM product_logs ORDER BY calculated_at DESC LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("calculation logs: %w", err)
	}
	return logs, nil
}

func (r *RateRepository) RecordUpload(ctx context.Context, rec models.UploadRecord) (*models.UploadRecord, error) {
	rec.ID = uuid.NewString()
	rec.UploadedAt = r.now()
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO uploads (id, filename, stored_path, parsed_rows, saved_rows, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), rec.ID, rec.Filename, rec.StoredPath, rec.ParsedRows, rec.SavedRows, rec.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("record upload: %w", err)
	}
	return &rec, nil
}

func (r *RateRepository) RecentUploads(ctx context.Context, limit int) ([]models.UploadRecord, error) {
	uploads := []models.UploadRecord{}
	err := r.db.SelectContext(ctx, &uploads, r.q(`
		SELECT id, filename, stored_path, parsed_rows, saved_rows, uploaded_at
		FROM uploads ORDER BY uploaded_at DESC LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("uploads: %w", err)
	}
	return uploads, nil
}
