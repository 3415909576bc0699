package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/LovationAdmin/gst-api/models"
	"github.com/LovationAdmin/gst-api/utils"

	"go.uber.org/zap"
)

var ErrEmptyDescription = errors.New("description is required")

const (
	defaultTopK = 3
	maxTopK     = 10
	maxListSize = 1000
)

// RateEventPublisher is notified after imports that touched the rate table.
type RateEventPublisher interface {
	PublishRatesUpdated(event models.RatesUpdatedEvent)
}

// RateServiceConfig carries the matching and pricing knobs.
type RateServiceConfig struct {
	MatchThreshold float64
	DefaultGSTRate float64
	RateBasis      string
	UploadDir      string
}

type RateService struct {
	repo      *RateRepository
	index     *RateIndex
	parser    *PDFParser
	cfg       RateServiceConfig
	publisher RateEventPublisher
	now       func() time.Time
}

func NewRateService(repo *RateRepository, parser *PDFParser, cfg RateServiceConfig) *RateService {
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = 65
	}
	if cfg.DefaultGSTRate <= 0 {
		cfg.DefaultGSTRate = 18
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	return &RateService{
		repo:   repo,
		index:  NewRateIndex(),
		parser: parser,
		cfg:    cfg,
		now:    time.Now,
	}
}

// SetPublisher wires live update notifications.
func (s *RateService) SetPublisher(p RateEventPublisher) {
	s.publisher = p
}

func (s *RateService) Repository() *RateRepository {
	return s.repo
}

const indexLoadAttempts = 3

func (s *RateService) ensureIndex(ctx context.Context) error {
	for attempt := 0; attempt < indexLoadAttempts; attempt++ {
		if s.index.Loaded() {
			return nil
		}
		gen := s.index.Generation()
		rates, err := s.repo.All(ctx)
		if err != nil {
			return err
		}
		// A write that lands while All runs invalidates gen; drop the read.
		if s.index.ReplaceIfCurrent(rates, gen) {
			utils.Logger().Debug("[Rates] index loaded", zap.Int("rates", len(rates)))
			return nil
		}
	}
	utils.Logger().Debug("[Rates] index still stale after concurrent writes")
	return nil
}

// ============================================================================
// CALCULATION
// ============================================================================

// Calculate resolves a free-text description to a stored rate and prices it.
// When no rate scores at or above the threshold it returns suggestions and a
// calculation at the default rate instead.
func (s *RateService) Calculate(ctx context.Context, req models.CalcRequest) (*models.CalcResponse, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, ErrEmptyDescription
	}
	if req.Price == nil || *req.Price < 0 {
		return nil, ErrInvalidPrice
	}
	price := *req.Price

	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}
	matches := s.index.Search(description, topK)

	if len(matches) > 0 && matches[0].Score >= s.cfg.MatchThreshold {
		best := matches[0]
		total, cgst, sgst := SplitRate(best.Rate.Rate, s.cfg.RateBasis)
		calc, err := CalculateGST(price, total, req.Inclusive)
		if err != nil {
			return nil, err
		}
		utils.Logger().Debug("[Calc] matched",
			zap.String("query", description),
			zap.String("description", best.Rate.Description),
			zap.Float64("score", best.Score),
			zap.String("hsn", best.Rate.HSN),
			zap.Float64("rate", total))

		hsn := best.Rate.HSN
		if hsn == "" {
			hsn = "N/A"
		}
		return &models.CalcResponse{
			Matched: true,
			Score:   best.Score,
			Match: &models.Match{
				HSN:         hsn,
				Description: best.Rate.Description,
				Rate:        total,
				CGSTRate:    cgst,
				SGSTRate:    sgst,
			},
			Calc: calc,
		}, nil
	}

	calc, err := CalculateGST(price, s.cfg.DefaultGSTRate, req.Inclusive)
	if err != nil {
		return nil, err
	}
	suggestions := make([]models.Suggestion, 0, len(matches))
	for _, m := range matches {
		total, _, _ := SplitRate(m.Rate.Rate, s.cfg.RateBasis)
		suggestions = append(suggestions, models.Suggestion{
			Description: m.Rate.Description,
			HSN:         m.Rate.HSN,
			Rate:        total,
			Score:       m.Score,
		})
	}

	message := "No exact match found in database, using default rate"
	if s.index.Len() == 0 {
		message = "No GST rates loaded yet, using default rate"
	}
	return &models.CalcResponse{
		Matched:     false,
		Calc:        calc,
		Suggestions: suggestions,
		Message:     message,
	}, nil
}

// Lookup returns the best stored rate for a product name and records the
// hit in the calculation log.
func (s *RateService) Lookup(ctx context.Context, product, clientIP string) (*models.LookupResponse, error) {
	product = strings.TrimSpace(product)
	if product == "" {
		return nil, ErrEmptyDescription
	}
	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}

	matches := s.index.Search(product, 1)
	if len(matches) == 0 || matches[0].Score < s.cfg.MatchThreshold {
		return &models.LookupResponse{Product: product, Error: "Product not found"}, nil
	}

	best := matches[0]
	total, _, _ := SplitRate(best.Rate.Rate, s.cfg.RateBasis)
	if err := s.repo.LogCalculation(ctx, product, best.Rate.HSN, total, clientIP); err != nil {
		utils.Logger().Warn("[Calc] failed to log calculation", zap.Error(err))
	}

	return &models.LookupResponse{
		Product:     product,
		HSN:         best.Rate.HSN,
		Description: best.Rate.Description,
		Rate:        &total,
		Score:       best.Score,
		Matched:     true,
	}, nil
}

// DebugResult shows how a product name resolves against the rate table.
type DebugResult struct {
	SearchTerm    string              `json:"search_term"`
	ExactMatches  []models.GSTRate    `json:"exact_matches"`
	FuzzyMatches  []models.Suggestion `json:"fuzzy_matches"`
	TotalProducts int                 `json:"total_products_in_db"`
}

func (s *RateService) Debug(ctx context.Context, product string) (*DebugResult, error) {
	exact, err := s.repo.SearchDescription(ctx, product, 50)
	if err != nil {
		return nil, err
	}
	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}

	fuzzy := []models.Suggestion{}
	for _, m := range s.index.Search(product, 5) {
		fuzzy = append(fuzzy, models.Suggestion{
			Description: m.Rate.Description,
			HSN:         m.Rate.HSN,
			Rate:        m.Rate.Rate,
			Score:       m.Score,
		})
	}

	return &DebugResult{
		SearchTerm:    product,
		ExactMatches:  exact,
		FuzzyMatches:  fuzzy,
		TotalProducts: s.index.Len(),
	}, nil
}

// ============================================================================
// IMPORT
// ============================================================================

// ImportRows upserts parsed rows and reports new and changed rates.
func (s *RateService) ImportRows(ctx context.Context, rows []models.ParsedRow, source, sourcePDF string) ([]models.RateUpdate, int, error) {
	updates := []models.RateUpdate{}
	saved := 0
	defer s.index.Invalidate()

	for _, row := range rows {
		desc := strings.TrimSpace(row.Description)
		if desc == "" {
			continue
		}
		old, err := s.repo.SaveRate(ctx, models.GSTRate{
			HSN:         strings.TrimSpace(row.HSN),
			Description: desc,
			Rate:        row.Rate,
			Source:      source,
			SourcePDF:   sourcePDF,
		})
		if err != nil {
			return updates, saved, err
		}
		saved++

		if old != nil && *old == row.Rate {
			continue
		}
		hsn := row.HSN
		if hsn == "" {
			hsn = "N/A"
		}
		updates = append(updates, models.RateUpdate{HSN: hsn, Old: old, New: row.Rate})
	}
	return updates, saved, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// StoredFilename builds the name an upload is kept under.
func StoredFilename(original string, at time.Time) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	if base == "" || base == "." || base == "_" {
		base = "upload.pdf"
	}
	return fmt.Sprintf("gst_%s_%s", at.Format("20060102_150405"), base)
}

// UploadPDF stores an uploaded rate schedule, parses it and imports the rows.
func (s *RateService) UploadPDF(ctx context.Context, originalName string, content io.Reader) (*models.UploadResult, error) {
	if !strings.EqualFold(filepath.Ext(originalName), ".pdf") {
		return nil, ErrNotPDF
	}
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	filename := StoredFilename(originalName, s.now())
	path := filepath.Join(s.cfg.UploadDir, filename)

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if _, err := io.Copy(out, content); err != nil {
		out.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	rows, err := s.parser.ParseFile(path)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRates
	}

	updates, saved, err := s.ImportRows(ctx, rows, "upload", path)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.RecordUpload(ctx, models.UploadRecord{
		Filename:   filename,
		StoredPath: path,
		ParsedRows: len(rows),
		SavedRows:  saved,
	}); err != nil {
		utils.Logger().Warn("[Upload] failed to record upload", zap.Error(err))
	}

	utils.LogUpload(filename, len(rows), len(updates))
	s.publish(models.RatesUpdatedEvent{
		Type:       "rates_updated",
		Source:     "upload",
		ParsedRows: len(rows),
		Updated:    len(updates),
	})

	return &models.UploadResult{
		OK:         true,
		Message:    fmt.Sprintf("PDF processed successfully. %d rates saved.", saved),
		Filename:   filename,
		ParsedRows: len(rows),
		SavedRows:  saved,
		Updates:    updates,
	}, nil
}

func (s *RateService) publish(event models.RatesUpdatedEvent) {
	if s.publisher == nil || event.Updated == 0 {
		return
	}
	s.publisher.PublishRatesUpdated(event)
}

// ============================================================================
// READS
// ============================================================================

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxListSize {
		return maxListSize
	}
	return limit
}

func (s *RateService) ListRates(ctx context.Context, limit int) ([]models.GSTRate, error) {
	return s.repo.List(ctx, clampLimit(limit, 100))
}

func (s *RateService) GetRate(ctx context.Context, hsn string) (*models.GSTRate, error) {
	return s.repo.GetByHSN(ctx, strings.TrimSpace(hsn))
}

func (s *RateService) History(ctx context.Context, hsn string, limit int) ([]models.RateChange, error) {
	return s.repo.History(ctx, strings.TrimSpace(hsn), clampLimit(limit, 100))
}

func (s *RateService) CalculationLogs(ctx context.Context, limit int) ([]models.CalculationLog, error) {
	return s.repo.RecentCalculations(ctx, clampLimit(limit, 100))
}

func (s *RateService) Uploads(ctx context.Context, limit int) ([]models.UploadRecord, error) {
	return s.repo.RecentUploads(ctx, clampLimit(limit, 50))
}

// Stats splits the rate count into seeded and uploaded rows.
func (s *RateService) Stats(ctx context.Context) (*models.RateStats, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	seeded, err := s.repo.CountBySourcePrefix(ctx, seedSourcePrefix)
	if err != nil {
		return nil, err
	}
	return &models.RateStats{
		TotalRates:   total,
		SeedRates:    seeded,
		UserUploaded: total - seeded,
	}, nil
}
