package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"courtbook/internal/database"
	"courtbook/internal/domain"
	"courtbook/internal/models"
	"courtbook/internal/registry"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type FieldsConfig struct {
	Fields []models.Field `yaml:"fields"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		fieldsPath        = flag.String("fields", "configs/fields.yaml", "path to fields.yaml")
		dbPath            = flag.String("db", "./data/ledger.db", "path to sqlite ledger")
		deactivateMissing = flag.Bool("deactivate-missing", false, "deactivate stored fields absent from the file")
	)
	flag.Parse()

	data, err := os.ReadFile(*fieldsPath)
	if err != nil {
		return fmt.Errorf("read fields: %w", err)
	}
	var cfg FieldsConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse fields: %w", err)
	}
	if len(cfg.Fields) == 0 {
		return fmt.Errorf("no fields in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reg := registry.New(db, db, &logger)

	created, updated := 0, 0
	wanted := make(map[string]bool, len(cfg.Fields))
	batch := make([]*models.Field, 0, len(cfg.Fields))
	for i := range cfg.Fields {
		f := &cfg.Fields[i]
		wanted[f.Code] = true
		batch = append(batch, f)

		_, err = db.GetField(ctx, f.Code)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, domain.ErrNotFound):
			created++
		default:
			return fmt.Errorf("get %s: %w", f.Code, err)
		}
	}

	if err = reg.Sync(ctx, batch); err != nil {
		return fmt.Errorf("sync fields: %w", err)
	}

	deactivated := 0
	if *deactivateMissing {
		stored, err := reg.List(ctx, true)
		if err != nil {
			return fmt.Errorf("list fields: %w", err)
		}
		for _, f := range stored {
			if wanted[f.Code] {
				continue
			}
			if err := reg.Deactivate(ctx, f.Code); err != nil {
				return fmt.Errorf("deactivate %s: %w", f.Code, err)
			}
			n, _ := reg.BookingCount(ctx, f.Code)
			logger.Info().Str("field", f.Code).Int("bookings", n).Msg("field deactivated, existing bookings kept")
			deactivated++
		}
	}

	fmt.Printf("done: created=%d updated=%d deactivated=%d\n", created, updated, deactivated)
	return nil
}
