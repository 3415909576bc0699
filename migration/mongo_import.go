// migration/mongo_import.go
// Imports the rate table of the legacy MongoDB deployment (database
// "gst_calculator", collection "gst_rates") into the SQL rate table.
//
// USAGE:
//   gst-api migrate-mongo --mongo-url mongodb://localhost:27017/ --database gst_calculator

package migration

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/LovationAdmin/gst-api/models"
	"github.com/LovationAdmin/gst-api/services"
	"github.com/LovationAdmin/gst-api/utils"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

const (
	DefaultMongoDatabase = "gst_calculator"
	legacyRatesColl      = "gst_rates"
)

// Stats counts what an import did.
type Stats struct {
	Read     int `json:"read"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Invalid  int `json:"invalid"`
}

// RateWriter is the part of the rate repository the import needs.
type RateWriter interface {
	InsertIfAbsent(ctx context.Context, rate models.GSTRate) (bool, error)
}

var _ RateWriter = (*services.RateRepository)(nil)

// ImportFromMongo copies every legacy rate document that is not already
// stored. Existing SQL rows always win.
func ImportFromMongo(ctx context.Context, mongoURL, database string, dst RateWriter) (*Stats, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}

	client, err := mongo.Connect(options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			utils.Logger().Warn("[Migration] mongodb disconnect failed", zap.Error(err))
		}
	}()

	cursor, err := client.Database(database).Collection(legacyRatesColl).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy rates: %w", err)
	}
	defer cursor.Close(ctx)

	stats := &Stats{}
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			utils.Logger().Warn("[Migration] undecodable document", zap.Error(err))
			stats.Invalid++
			continue
		}
		stats.Read++

		rate, ok := LegacyRate(doc)
		if !ok {
			stats.Invalid++
			continue
		}

		inserted, err := dst.InsertIfAbsent(ctx, rate)
		if err != nil {
			return stats, fmt.Errorf("failed to import rate %q: %w", rate.HSN, err)
		}
		if inserted {
			stats.Imported++
		} else {
			stats.Skipped++
		}
	}
	if err := cursor.Err(); err != nil {
		return stats, fmt.Errorf("cursor failed: %w", err)
	}

	utils.Logger().Info("✅ Legacy rates imported",
		zap.Int("read", stats.Read),
		zap.Int("imported", stats.Imported),
		zap.Int("skipped", stats.Skipped),
		zap.Int("invalid", stats.Invalid))
	return stats, nil
}

// LegacyRate converts one legacy document. Rates were written as numbers or
// strings depending on which script stored them.
func LegacyRate(doc bson.M) (models.GSTRate, bool) {
	description := strings.TrimSpace(stringField(doc, "description"))
	if description == "" {
		return models.GSTRate{}, false
	}

	rate, ok := numberField(doc["rate"])
	if !ok || rate < 0 || rate > 100 {
		return models.GSTRate{}, false
	}

	source := stringField(doc, "source")
	if source == "" {
		source = "mongo_import"
	}

	return models.GSTRate{
		HSN:         strings.TrimSpace(stringField(doc, "hsn")),
		Description: description,
		Rate:        rate,
		Source:      source,
		SourcePDF:   stringField(doc, "source_pdf"),
	}, true
}

func stringField(doc bson.M, key string) string {
	switch v := doc[key].(type) {
	case string:
		return v
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func numberField(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "%")), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
