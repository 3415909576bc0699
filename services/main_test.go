package services

import (
	"context"
	"sync"
	"testing"

	"github.com/LovationAdmin/gst-api/config"
	"github.com/LovationAdmin/gst-api/models"
	"github.com/LovationAdmin/gst-api/utils"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	utils.SetLogger(zap.NewNop())
}

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := config.InitDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, config.RunMigrations(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestService(t *testing.T) *RateService {
	t.Helper()
	return NewRateService(NewRateRepository(newTestDB(t)), NewPDFParser(), RateServiceConfig{
		MatchThreshold: 65,
		DefaultGSTRate: 18,
		RateBasis:      config.RateBasisCGST,
		UploadDir:      t.TempDir(),
	})
}

var sampleRows = []models.ParsedRow{
	{HSN: "0401", Description: "Fresh milk and pasteurised milk", Rate: 0},
	{HSN: "1006", Description: "Rice", Rate: 2.5},
	{HSN: "8517", Description: "Mobile phones and smartphones", Rate: 9},
}

func seedSample(t *testing.T, s *RateService) {
	t.Helper()
	_, _, err := s.ImportRows(context.Background(), sampleRows, "upload", "sample.pdf")
	require.NoError(t, err)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.RatesUpdatedEvent
}

func (p *recordingPublisher) PublishRatesUpdated(e models.RatesUpdatedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Events() []models.RatesUpdatedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.RatesUpdatedEvent(nil), p.events...)
}
