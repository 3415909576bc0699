package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LovationAdmin/gst-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSeedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.pdf", "%PDF-")
	writeFile(t, dir, "a.PDF", "%PDF-")
	writeFile(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755))

	seeder := NewSeeder(newTestService(t), NewPDFParser(), dir)
	files, err := seeder.SeedFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.PDF"), filepath.Join(dir, "b.pdf")}, files)

	missing := NewSeeder(newTestService(t), NewPDFParser(), filepath.Join(dir, "missing"))
	files, err = missing.SeedFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSeedIfEmptySkipsPopulatedTable(t *testing.T) {
	s := newTestService(t)
	seedSample(t, s)

	dir := t.TempDir()
	writeFile(t, dir, "schedule.pdf", "not a pdf")

	inserted, err := NewSeeder(s, NewPDFParser(), dir).SeedIfEmpty(context.Background())
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestSeedIfEmptySkipsUnreadableFiles(t *testing.T) {
	s := newTestService(t)
	pub := &recordingPublisher{}
	s.SetPublisher(pub)

	dir := t.TempDir()
	writeFile(t, dir, "broken.pdf", "not a pdf")
	writeFile(t, dir, "truncated.pdf", "%PDF-1.4\n")

	inserted, err := NewSeeder(s, NewPDFParser(), dir).SeedIfEmpty(context.Background())
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Empty(t, pub.Events())

	n, err := s.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSeedIfEmptyFromPDFs(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	pub := &recordingPublisher{}
	s.SetPublisher(pub)

	dir := t.TempDir()
	writeRatePDF(t, dir, "a.pdf",
		[]string{"1", "0402", "Milk powder", "2.5"},
		[]string{"2", "0402", "Condensed milk", "2.5"},
		[]string{"3", "1006", "Rice, other than pre-packaged", "2.5"},
	)
	writeRatePDF(t, dir, "b.pdf",
		[]string{"1", "0402", "Milk powder", "5"},
		[]string{"2", "8517", "Mobile phones and smartphones", "9"},
		[]string{"3", "Handmade paper items", "6"},
	)

	inserted, err := NewSeeder(s, NewPDFParser(), dir).SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, inserted)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalRates)
	assert.Equal(t, 4, stats.SeedRates)
	assert.Zero(t, stats.UserUploaded)

	milk, err := s.GetRate(ctx, "0402")
	require.NoError(t, err)
	assert.Equal(t, "Milk powder", milk.Description)
	assert.Equal(t, 2.5, milk.Rate)
	assert.Equal(t, "seed_a.pdf", milk.Source)

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "seed", events[0].Source)
	assert.Equal(t, 6, events[0].ParsedRows)
	assert.Equal(t, 4, events[0].Updated)

	resp, err := s.Calculate(ctx, models.CalcRequest{Description: "Condensed milk", Price: price(100)})
	require.NoError(t, err)
	require.True(t, resp.Matched)
	assert.Equal(t, "0402", resp.Match.HSN)
	assert.Equal(t, "Condensed milk", resp.Match.Description)
}

func TestImportFileUpsertsSeedPDF(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	seedSample(t, s)
	pub := &recordingPublisher{}
	s.SetPublisher(pub)

	dir := t.TempDir()
	path := writeRatePDF(t, dir, "late.pdf",
		[]string{"1", "1006", "Rice", "6"},
		[]string{"2", "2201", "Packaged drinking water", "9"},
	)

	updates, err := NewSeeder(s, NewPDFParser(), dir).ImportFile(ctx, path)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	require.NotNil(t, updates[0].Old)
	assert.Equal(t, 2.5, *updates[0].Old)
	assert.Nil(t, updates[1].Old)

	rate, err := s.GetRate(ctx, "2201")
	require.NoError(t, err)
	assert.Equal(t, "seed_late.pdf", rate.Source)

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].ParsedRows)
	assert.Equal(t, 2, events[0].Updated)
}

func TestSeedIfEmptyNoDirectory(t *testing.T) {
	s := newTestService(t)
	inserted, err := NewSeeder(s, NewPDFParser(), filepath.Join(t.TempDir(), "none")).SeedIfEmpty(context.Background())
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestImportFileRejectsNonPDF(t *testing.T) {
	s := newTestService(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "rates.pdf", "plain text")

	_, err := NewSeeder(s, NewPDFParser(), dir).ImportFile(context.Background(), path)
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestSeedWatcherStopsWithContext(t *testing.T) {
	s := newTestService(t)
	dir := filepath.Join(t.TempDir(), "seed")
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	w := NewSeedWatcher(NewSeeder(s, NewPDFParser(), dir))
	w.Debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Run creates the directory before it starts watching.
	require.Eventually(t, func() bool {
		_, err := os.Stat(dir)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	writeFile(t, dir, "late.pdf", "not a pdf")
	writeFile(t, dir, "readme.txt", "ignored")
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}

	n, err := s.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSeedWatcherDebounce(t *testing.T) {
	s := newTestService(t)
	w := NewSeedWatcher(NewSeeder(s, NewPDFParser(), t.TempDir()))
	w.Debounce = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.schedule(ctx, "a.pdf")
	w.schedule(ctx, "a.pdf")
	w.schedule(ctx, "b.pdf")

	w.mu.Lock()
	pending := len(w.pending)
	w.mu.Unlock()
	assert.Equal(t, 2, pending)

	w.stopPending()
	assert.Empty(t, w.pending)
}

func TestRateIndex(t *testing.T) {
	idx := NewRateIndex()
	assert.False(t, idx.Loaded())
	assert.Empty(t, idx.Search("rice", 3))

	require.True(t, idx.ReplaceIfCurrent([]models.GSTRate{
		{HSN: "1006", Description: "Rice", Rate: 2.5},
		{HSN: "0401", Description: "Fresh milk", Rate: 0},
	}, idx.Generation()))
	assert.True(t, idx.Loaded())
	assert.Equal(t, 2, idx.Len())

	matches := idx.Search("RICE", 1)
	require.Len(t, matches, 1)
	assert.Equal(t, "1006", matches[0].Rate.HSN)
	assert.Equal(t, 100.0, matches[0].Score)

	gen := idx.Generation()
	idx.Invalidate()
	assert.False(t, idx.Loaded())
	assert.Equal(t, 2, idx.Len())

	assert.False(t, idx.ReplaceIfCurrent(nil, gen))
	assert.False(t, idx.Loaded())
	assert.Equal(t, 2, idx.Len())
	assert.True(t, idx.ReplaceIfCurrent(nil, idx.Generation()))
	assert.Zero(t, idx.Len())
}
