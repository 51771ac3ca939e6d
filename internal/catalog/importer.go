// Package catalog imports instrument definitions from object storage into
// the instrument store.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rioporto/orderdesk/internal/domain"
)

// instrumentRecord is the JSON shape of one instrument in a catalog dump.
// Decimal fields accept both JSON strings and numbers.
type instrumentRecord struct {
	Symbol      string          `json:"symbol"`
	BaseAsset   string          `json:"base_asset"`
	QuoteAsset  string          `json:"quote_asset"`
	TickSize    decimal.Decimal `json:"tick_size"`
	StepSize    decimal.Decimal `json:"step_size"`
	MinQuantity decimal.Decimal `json:"min_quantity"`
	MaxQuantity decimal.Decimal `json:"max_quantity"`
	Status      string          `json:"status"`
}

// Result summarises a completed import run.
type Result struct {
	Files       int
	Instruments int
	Skipped     int
}

// Importer reads instrument catalog dumps from an incoming bucket prefix,
// upserts them into the store, and moves processed files to a processed
// prefix. Each dump is a JSON array of instrument records.
type Importer struct {
	reader  domain.BlobReader
	writer  domain.BlobWriter
	deleter domain.BlobDeleter
	store   domain.InstrumentStore
	audit   domain.AuditStore
	logger  *slog.Logger

	incomingPrefix  string
	processedPrefix string
}

// NewImporter creates an Importer over the given blob and store backends.
// incomingPrefix and processedPrefix default to "catalog/incoming/" and
// "catalog/processed/" when empty.
func NewImporter(
	reader domain.BlobReader,
	writer domain.BlobWriter,
	deleter domain.BlobDeleter,
	store domain.InstrumentStore,
	audit domain.AuditStore,
	logger *slog.Logger,
	incomingPrefix, processedPrefix string,
) *Importer {
	if incomingPrefix == "" {
		incomingPrefix = "catalog/incoming/"
	}
	if processedPrefix == "" {
		processedPrefix = "catalog/processed/"
	}
	return &Importer{
		reader:          reader,
		writer:          writer,
		deleter:         deleter,
		store:           store,
		audit:           audit,
		logger:          logger.With(slog.String("component", "catalog_importer")),
		incomingPrefix:  incomingPrefix,
		processedPrefix: processedPrefix,
	}
}

// Run executes a single import pass over every JSON dump under the incoming
// prefix. Files that fail to parse are skipped and left in place; files that
// import cleanly are moved to the processed prefix.
func (im *Importer) Run(ctx context.Context) (Result, error) {
	infos, err := im.reader.List(ctx, im.incomingPrefix)
	if err != nil {
		return Result{}, fmt.Errorf("catalog: list incoming dumps: %w", err)
	}

	var res Result
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("catalog: import cancelled: %w", err)
		}
		if !strings.HasSuffix(info.Path, ".json") {
			continue
		}

		count, err := im.importFile(ctx, info.Path)
		if err != nil {
			res.Skipped++
			im.logger.Error("import file failed",
				slog.String("path", info.Path),
				slog.String("error", err.Error()),
			)
			continue
		}

		res.Files++
		res.Instruments += count
		im.logger.Info("imported catalog file",
			slog.String("path", info.Path),
			slog.Int("instruments", count),
		)
	}

	if err := im.audit.Log(ctx, "catalog.import", map[string]any{
		"files":       res.Files,
		"instruments": res.Instruments,
		"skipped":     res.Skipped,
	}); err != nil {
		return res, fmt.Errorf("catalog: audit import run: %w", err)
	}

	im.logger.Info("catalog import complete",
		slog.Int("files", res.Files),
		slog.Int("instruments", res.Instruments),
		slog.Int("skipped", res.Skipped),
	)
	return res, nil
}

// RunLoop runs the importer on a repeating interval until the context is
// cancelled.
func (im *Importer) RunLoop(ctx context.Context, interval time.Duration) error {
	// Run immediately on start.
	if _, err := im.Run(ctx); err != nil {
		im.logger.Error("catalog import failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			im.logger.Info("catalog importer loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := im.Run(ctx); err != nil {
				im.logger.Error("catalog import failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (im *Importer) importFile(ctx context.Context, key string) (int, error) {
	body, err := im.reader.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}

	data, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}

	insts, err := parseDump(data)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	if err := im.store.UpsertBatch(ctx, insts); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", key, err)
	}

	if err := im.archive(ctx, key, data); err != nil {
		return 0, fmt.Errorf("archive %s: %w", key, err)
	}

	return len(insts), nil
}

// archive copies a processed dump to the processed prefix and deletes the
// original from the incoming prefix. Re-runs after a partial failure (copy
// succeeded, delete did not) skip the upload so the verified processed copy
// is never overwritten.
func (im *Importer) archive(ctx context.Context, key string, data []byte) error {
	dest := im.processedPrefix + path.Base(key)
	exists, err := im.reader.Exists(ctx, dest)
	if err != nil {
		return err
	}
	if exists {
		im.logger.Warn("processed copy already archived, keeping existing object",
			slog.String("path", dest))
	} else if err := im.writer.Put(ctx, dest, strings.NewReader(string(data)), "application/json"); err != nil {
		return err
	}
	return im.deleter.Delete(ctx, key)
}

// parseDump decodes a JSON array of instrument records and converts them to
// validated domain instruments.
func parseDump(data []byte) ([]domain.Instrument, error) {
	var records []instrumentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty dump")
	}

	insts := make([]domain.Instrument, 0, len(records))
	for i, rec := range records {
		status := domain.InstrumentStatus(rec.Status)
		if rec.Status == "" {
			status = domain.InstrumentStatusActive
		}

		inst := domain.Instrument{
			Symbol:      rec.Symbol,
			BaseAsset:   rec.BaseAsset,
			QuoteAsset:  rec.QuoteAsset,
			TickSize:    rec.TickSize,
			StepSize:    rec.StepSize,
			MinQuantity: rec.MinQuantity,
			MaxQuantity: rec.MaxQuantity,
			Status:      status,
			UpdatedAt:   time.Now().UTC(),
		}
		if err := inst.Validate(); err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, rec.Symbol, err)
		}
		insts = append(insts, inst)
	}
	return insts, nil
}
