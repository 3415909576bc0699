package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/LovationAdmin/gst-api/migration"
	"github.com/LovationAdmin/gst-api/services"
	"github.com/LovationAdmin/gst-api/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedForce bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the rate table from the PDFs in SEED_DIR",
	Long: `seed parses every PDF in SEED_DIR and inserts its rates when the rate
table is empty. With --force each file is imported even if rates exist,
updating rates whose HSN code is already stored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, rates, err := openRateService()
		if err != nil {
			return err
		}
		defer db.Close()

		seeder := services.NewSeeder(rates, services.NewPDFParser(), settings.SeedDir)
		if !seedForce {
			if _, err := seeder.SeedIfEmpty(cmd.Context()); err != nil {
				return err
			}
		} else {
			files, err := seeder.SeedFiles()
			if err != nil {
				return err
			}
			for _, file := range files {
				updates, err := seeder.ImportFile(cmd.Context(), file)
				if err != nil {
					utils.Logger().Warn("❌ Failed to import seed PDF", zap.String("file", file), zap.Error(err))
					continue
				}
				utils.Logger().Info("📄 Imported seed PDF", zap.String("file", file), zap.Int("updates", len(updates)))
			}
		}

		stats, err := rates.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse <pdf>",
	Short: "Print the rate rows extracted from a PDF without storing them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := services.NewPDFParser().ParseFile(args[0])
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"file":        args[0],
			"parsed_rows": len(rows),
			"rows":        rows,
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many rates are stored and where they came from",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, rates, err := openRateService()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := rates.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <admin-key>",
	Short: "Print the bcrypt hash to put in ADMIN_KEY_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := utils.HashAdminKey(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var totpSetupCmd = &cobra.Command{
	Use:   "totp-setup [account]",
	Short: "Generate an ADMIN_TOTP_SECRET and its authenticator URL",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account := "admin"
		if len(args) == 1 {
			account = args[0]
		}
		secret, url, err := utils.GenerateTOTPSecret(account)
		if err != nil {
			return err
		}
		return printJSON(map[string]string{"secret": secret, "url": url})
	},
}

var (
	mongoURL      string
	mongoDatabase string
)

var migrateMongoCmd = &cobra.Command{
	Use:   "migrate-mongo",
	Short: "Import rates from the legacy MongoDB deployment",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, rates, err := openRateService()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := migration.ImportFromMongo(cmd.Context(), mongoURL, mongoDatabase, rates.Repository())
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "import seed PDFs even when rates already exist")

	defaultMongo := os.Getenv("MONGO_URL")
	if defaultMongo == "" {
		defaultMongo = "mongodb://localhost:27017/"
	}
	migrateMongoCmd.Flags().StringVar(&mongoURL, "mongo-url", defaultMongo, "legacy MongoDB connection string")
	migrateMongoCmd.Flags().StringVar(&mongoDatabase, "database", migration.DefaultMongoDatabase, "legacy database name")
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
