package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/LovationAdmin/gst-api/models"
	"github.com/LovationAdmin/gst-api/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const seedSourcePrefix = "seed_"

// Seeder fills an empty rate table from the PDFs shipped in the seed directory.
type Seeder struct {
	rates       *RateService
	parser      *PDFParser
	dir         string
	Concurrency int
}

func NewSeeder(rates *RateService, parser *PDFParser, dir string) *Seeder {
	return &Seeder{rates: rates, parser: parser, dir: dir, Concurrency: 4}
}

func (s *Seeder) Dir() string {
	return s.dir
}

// SeedFiles lists the PDFs in the seed directory, sorted by name.
func (s *Seeder) SeedFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seed dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		files = append(files, filepath.Join(s.dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func seedSource(path string) string {
	return seedSourcePrefix + filepath.Base(path)
}

// SeedIfEmpty parses every seed PDF in parallel and inserts the rows that
// carry an HSN code, keeping each distinct HSN and description pair. It does nothing when rates already exist. A file that
// fails to parse is logged and skipped.
func (s *Seeder) SeedIfEmpty(ctx context.Context) (int, error) {
	log := utils.Logger()

	existing, err := s.rates.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		log.Info("✅ Database already contains GST rates", zap.Int("count", existing))
		return 0, nil
	}

	files, err := s.SeedFiles()
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		log.Info("📊 No seed PDFs found, skipping database seeding", zap.String("dir", s.dir))
		return 0, nil
	}

	log.Info("📊 Database is empty, seeding GST rates", zap.Int("files", len(files)))

	parsed := make([][]models.ParsedRow, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows, err := s.parser.ParseFile(file)
			if err != nil {
				log.Warn("❌ Failed to parse seed PDF", zap.String("file", file), zap.Error(err))
				return nil
			}
			parsed[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	inserted, parsedRows := 0, 0
	defer s.rates.index.Invalidate()
	for i, file := range files {
		parsedRows += len(parsed[i])
		for _, row := range parsed[i] {
			if row.HSN == "" || strings.TrimSpace(row.Description) == "" {
				continue
			}
			ok, err := s.rates.repo.InsertIfAbsent(ctx, models.GSTRate{
				HSN:         row.HSN,
				Description: strings.TrimSpace(row.Description),
				Rate:        row.Rate,
				Source:      seedSource(file),
				SourcePDF:   file,
			})
			if err != nil {
				return inserted, err
			}
			if ok {
				inserted++
			}
		}
	}

	log.Info("✅ Database seeded", zap.Int("parsed", parsedRows), zap.Int("inserted", inserted))
	s.rates.publish(models.RatesUpdatedEvent{
		Type:       "rates_updated",
		Source:     "seed",
		ParsedRows: parsedRows,
		Updated:    inserted,
	})
	return inserted, nil
}

// ImportFile upserts one seed PDF, as when a file is dropped into the seed
// directory while the server runs.
func (s *Seeder) ImportFile(ctx context.Context, path string) ([]models.RateUpdate, error) {
	rows, err := s.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRates
	}

	updates, _, err := s.rates.ImportRows(ctx, rows, seedSource(path), path)
	if err != nil {
		return updates, err
	}
	s.rates.publish(models.RatesUpdatedEvent{
		Type:       "rates_updated",
		Source:     "seed",
		ParsedRows: len(rows),
		Updated:    len(updates),
	})
	return updates, nil
}
