package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"remanejo/internal/core"

	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("run not found")

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunRecord is the stored summary of one reallocation run.
type RunRecord struct {
	ID                string          `json:"id"`
	SourceName        string          `json:"source_name"`
	Checksum          string          `json:"checksum"`
	CreatedAt         time.Time       `json:"created_at"`
	Stats             core.Statistics `json:"statistics"`
	NoNegativeBalance bool            `json:"no_negative_balance"`
	TransfersOccurred bool            `json:"transfers_occurred"`
	Transcript        string          `json:"-"`
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; runs may be saved from several goroutines
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("History database ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveRun stores the run summary with its consolidated transfers and the
// deficits found, in one transaction.
func (r *SQLiteRepository) SaveRun(ctx context.Context, run RunRecord, transfers []core.TransferRecord, deficits []core.Deficit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	if err := q.InsertRun(ctx, Run{
		ID:                run.ID,
		SourceName:        run.SourceName,
		Checksum:          run.Checksum,
		CreatedAt:         run.CreatedAt.UTC().Format(timeLayout),
		UnitCount:         int64(run.Stats.Units),
		DeficitCount:      int64(run.Stats.Deficits),
		InternalCount:     int64(run.Stats.InternalTransfers),
		ExternalCount:     int64(run.Stats.ExternalTransfers),
		NoNegative:        boolToInt(run.NoNegativeBalance),
		TransfersOccurred: boolToInt(run.TransfersOccurred),
		Transcript:        run.Transcript,
	}); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for i, t := range transfers {
		if err := q.InsertTransfer(ctx, RunTransfer{
			RunID:        run.ID,
			Seq:          int64(i + 1),
			Kind:         string(t.Kind),
			FundCode:     int64(t.Fund),
			SourceUnit:   t.SourceUnitCode,
			SourceNature: t.SourceNatureCode,
			SourceName:   t.SourceNatureName,
			DestUnit:     t.DestUnitCode,
			DestNature:   t.DestNatureCode,
			DestName:     t.DestNatureName,
			Amount:       t.Amount.String(),
		}); err != nil {
			return fmt.Errorf("insert transfer %d of run %s: %w", i+1, run.ID, err)
		}
	}

	for i, d := range deficits {
		if err := q.InsertDeficit(ctx, RunDeficit{
			RunID:      run.ID,
			Seq:        int64(i + 1),
			UnitCode:   d.UnitCode,
			UnitName:   d.UnitName,
			NatureCode: d.NatureCode,
			NatureName: d.NatureName,
			Amount:     d.Amount.String(),
			FundCode:   int64(d.Fund),
			Prohibited: boolToInt(d.Prohibited),
		}); err != nil {
			return fmt.Errorf("insert deficit %d of run %s: %w", i+1, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}

	slog.InfoContext(ctx, "Run saved to SQLite",
		"run_id", run.ID,
		"source", run.SourceName,
		"transfers", len(transfers),
		"deficits", len(deficits))
	return nil
}

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (RunRecord, error) {
	row, err := r.queries.GetRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return toRunRecord(row)
}

// ListRuns returns the most recent runs first. A non-positive limit means 20.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.queries.ListRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]RunRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toRunRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *SQLiteRepository) ListTransfers(ctx context.Context, runID string) ([]core.TransferRecord, error) {
	rows, err := r.queries.ListTransfers(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list transfers of run %s: %w", runID, err)
	}
	out := make([]core.TransferRecord, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("run %s transfer %d: bad amount %q: %w", runID, row.Seq, row.Amount, err)
		}
		out = append(out, core.TransferRecord{
			Kind:             core.TransferKind(row.Kind),
			Fund:             core.FundCode(row.FundCode),
			SourceUnitCode:   row.SourceUnit,
			SourceNatureCode: row.SourceNature,
			SourceNatureName: row.SourceName,
			DestUnitCode:     row.DestUnit,
			DestNatureCode:   row.DestNature,
			DestNatureName:   row.DestName,
			Amount:           amount,
		})
	}
	return out, nil
}

func (r *SQLiteRepository) ListDeficits(ctx context.Context, runID string) ([]core.Deficit, error) {
	rows, err := r.queries.ListDeficits(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list deficits of run %s: %w", runID, err)
	}
	out := make([]core.Deficit, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("run %s deficit %d: bad amount %q: %w", runID, row.Seq, row.Amount, err)
		}
		out = append(out, core.Deficit{
			UnitCode:   row.UnitCode,
			UnitName:   row.UnitName,
			NatureCode: row.NatureCode,
			Fund:       core.FundCode(row.FundCode),
			NatureName: row.NatureName,
			Amount:     amount,
			Prohibited: row.Prohibited != 0,
		})
	}
	return out, nil
}

func toRunRecord(row Run) (RunRecord, error) {
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("run %s: bad created_at %q: %w", row.ID, row.CreatedAt, err)
	}
	return RunRecord{
		ID:         row.ID,
		SourceName: row.SourceName,
		Checksum:   row.Checksum,
		CreatedAt:  created,
		Stats: core.Statistics{
			Units:             int(row.UnitCount),
			Deficits:          int(row.DeficitCount),
			InternalTransfers: int(row.InternalCount),
			ExternalTransfers: int(row.ExternalCount),
		},
		NoNegativeBalance: row.NoNegative != 0,
		TransfersOccurred: row.TransfersOccurred != 0,
		Transcript:        row.Transcript,
	}, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
