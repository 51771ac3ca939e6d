package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/rioporto/orderdesk/internal/domain"
)

// memBlobStore is an in-memory stand-in for the S3 reader, writer, and
// deleter.
type memBlobStore struct {
	objects map[string]string
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: make(map[string]string)}
}

func (m *memBlobStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (m *memBlobStore) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	for path := range m.objects {
		if strings.HasPrefix(path, prefix) {
			infos = append(infos, domain.BlobInfo{Path: path})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func (m *memBlobStore) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

func (m *memBlobStore) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = string(b)
	return nil
}

func (m *memBlobStore) Delete(_ context.Context, path string) error {
	delete(m.objects, path)
	return nil
}

type memInstrumentStore struct {
	instruments map[string]domain.Instrument
	upsertErr   error
}

func newMemInstrumentStore() *memInstrumentStore {
	return &memInstrumentStore{instruments: make(map[string]domain.Instrument)}
}

func (m *memInstrumentStore) Upsert(_ context.Context, inst domain.Instrument) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.instruments[inst.Symbol] = inst
	return nil
}

func (m *memInstrumentStore) UpsertBatch(ctx context.Context, insts []domain.Instrument) error {
	for _, inst := range insts {
		if err := m.Upsert(ctx, inst); err != nil {
			return err
		}
	}
	return nil
}

func (m *memInstrumentStore) GetBySymbol(_ context.Context, symbol string) (domain.Instrument, error) {
	inst, ok := m.instruments[symbol]
	if !ok {
		return domain.Instrument{}, domain.ErrNotFound
	}
	return inst, nil
}

func (m *memInstrumentStore) ListActive(_ context.Context, _ domain.ListOpts) ([]domain.Instrument, error) {
	var out []domain.Instrument
	for _, inst := range m.instruments {
		if inst.Status == domain.InstrumentStatusActive {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (m *memInstrumentStore) Count(_ context.Context) (int64, error) {
	return int64(len(m.instruments)), nil
}

type memAuditStore struct {
	events []string
}

func (m *memAuditStore) Log(_ context.Context, event string, _ map[string]any) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

const validDump = `[
	{
		"symbol": "BTC-BRL",
		"base_asset": "BTC",
		"quote_asset": "BRL",
		"tick_size": "0.01",
		"step_size": "0.00000001",
		"min_quantity": "0.0001",
		"max_quantity": "100"
	},
	{
		"symbol": "ETH-BRL",
		"base_asset": "ETH",
		"quote_asset": "BRL",
		"tick_size": 0.01,
		"step_size": 0.0001,
		"min_quantity": 0.001,
		"status": "halted"
	}
]`

func newTestImporter(blobs *memBlobStore, store *memInstrumentStore, audit *memAuditStore) *Importer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewImporter(blobs, blobs, blobs, store, audit, logger, "", "")
}

func TestRunImportsAndArchives(t *testing.T) {
	blobs := newMemBlobStore()
	blobs.objects["catalog/incoming/dump1.json"] = validDump
	blobs.objects["catalog/incoming/notes.txt"] = "ignore me"
	store := newMemInstrumentStore()
	audit := &memAuditStore{}

	res, err := newTestImporter(blobs, store, audit).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Files != 1 || res.Instruments != 2 || res.Skipped != 0 {
		t.Fatalf("result = %+v, want 1 file, 2 instruments, 0 skipped", res)
	}

	btc, err := store.GetBySymbol(context.Background(), "BTC-BRL")
	if err != nil {
		t.Fatalf("BTC-BRL not imported: %v", err)
	}
	if got := btc.TickSize.String(); got != "0.01" {
		t.Errorf("tick size = %s, want 0.01", got)
	}
	eth, err := store.GetBySymbol(context.Background(), "ETH-BRL")
	if err != nil {
		t.Fatalf("ETH-BRL not imported: %v", err)
	}
	if eth.Status != domain.InstrumentStatusHalted {
		t.Errorf("ETH-BRL status = %s, want halted", eth.Status)
	}

	if _, ok := blobs.objects["catalog/incoming/dump1.json"]; ok {
		t.Error("processed dump still present under incoming prefix")
	}
	if _, ok := blobs.objects["catalog/processed/dump1.json"]; !ok {
		t.Error("processed dump not archived under processed prefix")
	}
	if _, ok := blobs.objects["catalog/incoming/notes.txt"]; !ok {
		t.Error("non-JSON object should be left untouched")
	}

	if len(audit.events) != 1 || audit.events[0] != "catalog.import" {
		t.Errorf("audit events = %v, want [catalog.import]", audit.events)
	}
}

func TestRunSkipsBadFilesAndKeepsGoing(t *testing.T) {
	blobs := newMemBlobStore()
	blobs.objects["catalog/incoming/a_bad.json"] = `{"not": "an array"}`
	blobs.objects["catalog/incoming/b_good.json"] = validDump
	store := newMemInstrumentStore()
	audit := &memAuditStore{}

	res, err := newTestImporter(blobs, store, audit).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Files != 1 || res.Skipped != 1 {
		t.Fatalf("result = %+v, want 1 file imported and 1 skipped", res)
	}
	// Failed dumps stay in place for inspection.
	if _, ok := blobs.objects["catalog/incoming/a_bad.json"]; !ok {
		t.Error("failed dump should remain under incoming prefix")
	}
}

func TestRunKeepsExistingProcessedCopy(t *testing.T) {
	// A previous run copied the dump but failed before deleting the
	// incoming object. The retry must not overwrite the archived copy.
	blobs := newMemBlobStore()
	blobs.objects["catalog/incoming/dump1.json"] = validDump
	blobs.objects["catalog/processed/dump1.json"] = "archived by earlier run"
	store := newMemInstrumentStore()
	audit := &memAuditStore{}

	res, err := newTestImporter(blobs, store, audit).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Files != 1 || res.Skipped != 0 {
		t.Fatalf("result = %+v, want 1 file, 0 skipped", res)
	}

	if got := blobs.objects["catalog/processed/dump1.json"]; got != "archived by earlier run" {
		t.Errorf("processed copy overwritten: %q", got)
	}
	if _, ok := blobs.objects["catalog/incoming/dump1.json"]; ok {
		t.Error("incoming dump should be deleted on retry")
	}
}

func TestRunUpsertFailureLeavesDumpInPlace(t *testing.T) {
	blobs := newMemBlobStore()
	blobs.objects["catalog/incoming/dump.json"] = validDump
	store := newMemInstrumentStore()
	store.upsertErr = errors.New("connection refused")
	audit := &memAuditStore{}

	res, err := newTestImporter(blobs, store, audit).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped != 1 {
		t.Fatalf("result = %+v, want 1 skipped", res)
	}
	if _, ok := blobs.objects["catalog/incoming/dump.json"]; !ok {
		t.Error("dump should not be archived when the upsert fails")
	}
}

func TestParseDump(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: validDump},
		{name: "empty array", input: `[]`, wantErr: true},
		{name: "not json", input: `oops`, wantErr: true},
		{
			name:    "invalid instrument",
			input:   `[{"symbol": "X", "tick_size": "0", "step_size": "1"}]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDump([]byte(tt.input))
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
