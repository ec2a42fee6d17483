package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"remanejo/internal/amqp"
	"remanejo/internal/cache"
	"remanejo/internal/core"
	applog "remanejo/internal/log"
	"remanejo/internal/realloc"
	"remanejo/internal/sheets"
	"remanejo/internal/sheets/xlsx"
	"remanejo/internal/storage"
	"remanejo/internal/trace"
)

// ErrInvalidInput marks failures caused by the budget or the rules rather
// than by infrastructure. Retrying them gives the same result.
var ErrInvalidInput = errors.New("invalid input")

// OutputPrefix is prepended to the source name of rendered workbooks.
const OutputPrefix = "orcamento_ajustado_"

const (
	defaultCacheSize = 64
	defaultCacheTTL  = time.Hour
)

// RunStore persists finished runs.
type RunStore interface {
	SaveRun(ctx context.Context, run storage.RunRecord, transfers []core.TransferRecord, deficits []core.Deficit) error
	GetRun(ctx context.Context, id string) (storage.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error)
	ListTransfers(ctx context.Context, runID string) ([]core.TransferRecord, error)
	ListDeficits(ctx context.Context, runID string) ([]core.Deficit, error)
	Close() error
}

// Publisher announces finished runs.
type Publisher interface {
	PublishRunCompleted(ctx context.Context, evt *amqp.RunCompleted) error
	Close() error
}

var (
	_ RunStore  = (*storage.SQLiteRepository)(nil)
	_ Publisher = (*amqp.Client)(nil)
)

// RunOutcome is a finished run together with its rendered workbook.
type RunOutcome struct {
	ID         string          `json:"id"`
	SourceName string          `json:"source_name"`
	Checksum   string          `json:"checksum"`
	CreatedAt  time.Time       `json:"created_at"`
	Result     *realloc.Result `json:"result"`
	Workbook   []byte          `json:"-"`
}

// OutputName is the file name of the rendered workbook.
func (o *RunOutcome) OutputName() string {
	return OutputName(o.SourceName)
}

// StoredRun is a run read back from history.
type StoredRun struct {
	storage.RunRecord
	Transcript string                `json:"transcript"`
	Deficits   []core.Deficit        `json:"deficits"`
	Transfers  []core.TransferRecord `json:"transfers"`
}

// RunService reads a budget, reallocates it and distributes the result to
// history, events and the in-memory cache.
type RunService struct {
	store     RunStore
	publisher Publisher
	outcomes  cache.Cache[*RunOutcome]
	logger    *applog.Logger

	now   func() time.Time
	newID func() string
}

// NewRunService wires the service. Store and publisher are optional; a nil
// cache gets a default LRU.
func NewRunService(store RunStore, publisher Publisher, outcomes cache.Cache[*RunOutcome], logger *applog.Logger) *RunService {
	if outcomes == nil {
		outcomes = cache.NewLRUCache[*RunOutcome](defaultCacheSize, defaultCacheTTL)
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &RunService{
		store:     store,
		publisher: publisher,
		outcomes:  outcomes,
		logger:    logger.WithComponent(applog.ComponentService),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Execute runs one reallocation over src. An empty name falls back to the
// source name.
func (s *RunService) Execute(ctx context.Context, src sheets.BudgetSource, name string, cfg realloc.Config) (*RunOutcome, error) {
	if name == "" {
		name = src.Name()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	start := s.now()
	id := s.newID()
	logger := s.logger.With(applog.FieldRunID, id, applog.FieldSource, name)

	rows, err := src.ReadGrid(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("read %s: %w", name, err))
	}

	tr := trace.New(logger.WithComponent(applog.ComponentRealloc))
	l, err := sheets.Parse(rows, tr)
	if err != nil {
		return nil, classify(fmt.Errorf("parse %s: %w", name, err))
	}

	res, err := realloc.Execute(l, cfg, tr)
	if err != nil {
		return nil, classify(fmt.Errorf("reallocate %s: %w", name, err))
	}

	workbook, err := xlsx.Bytes(res)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}

	out := &RunOutcome{
		ID:         id,
		SourceName: name,
		Checksum:   Checksum(rows),
		CreatedAt:  start.UTC(),
		Result:     res,
		Workbook:   workbook,
	}

	if err := s.persist(ctx, out); err != nil {
		return nil, err
	}
	s.publish(ctx, out)
	s.outcomes.Set(out.ID, out)

	logger.InfoContext(ctx, "Run completed",
		"units", res.Stats.Units,
		"deficits", res.Stats.Deficits,
		"internal", res.Stats.InternalTransfers,
		"external", res.Stats.ExternalTransfers,
		"no_negative", res.Validation.NoNegativeBalance,
		applog.FieldDuration, s.now().Sub(start).Milliseconds())
	return out, nil
}

// Get returns a run computed by this process, if still cached.
func (s *RunService) Get(id string) (*RunOutcome, bool) {
	return s.outcomes.Get(id)
}

// Lookup reads a run back from history.
func (s *RunService) Lookup(ctx context.Context, id string) (*StoredRun, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
	}
	rec, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	deficits, err := s.store.ListDeficits(ctx, id)
	if err != nil {
		return nil, err
	}
	transfers, err := s.store.ListTransfers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &StoredRun{RunRecord: rec, Transcript: rec.Transcript, Deficits: deficits, Transfers: transfers}, nil
}

// History lists recent runs, newest first. Without storage it is empty.
func (s *RunService) History(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	if s.store == nil {
		return []storage.RunRecord{}, nil
	}
	return s.store.ListRuns(ctx, limit)
}

// Close closes storage and the event publisher.
func (s *RunService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close run service: %w", errors.Join(errs...))
	}
	return nil
}

func (s *RunService) persist(ctx context.Context, out *RunOutcome) error {
	if s.store == nil {
		return nil
	}
	res := out.Result
	rec := storage.RunRecord{
		ID:                out.ID,
		SourceName:        out.SourceName,
		Checksum:          out.Checksum,
		CreatedAt:         out.CreatedAt,
		Stats:             res.Stats,
		NoNegativeBalance: res.Validation.NoNegativeBalance,
		TransfersOccurred: res.Validation.TransfersOccurred,
		Transcript:        res.Transcript,
	}
	if err := s.store.SaveRun(ctx, rec, res.Consolidated, res.Deficits); err != nil {
		return fmt.Errorf("save run %s: %w", out.ID, err)
	}
	return nil
}

func (s *RunService) publish(ctx context.Context, out *RunOutcome) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not available, skipping run event", applog.FieldRunID, out.ID)
		return
	}
	evt := &amqp.RunCompleted{
		RunID:             out.ID,
		RequestID:         RequestIDFromContext(ctx),
		SourceName:        out.SourceName,
		Stats:             out.Result.Stats,
		NoNegativeBalance: out.Result.Validation.NoNegativeBalance,
		Timestamp:         s.now(),
	}
	if err := s.publisher.PublishRunCompleted(ctx, evt); err != nil {
		// the run is saved; losing the event is not fatal
		s.logger.ErrorContext(ctx, "Failed to publish run event",
			applog.FieldRunID, out.ID, applog.FieldError, err)
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, sheets.ErrBalanceColumnNotFound),
		errors.Is(err, sheets.ErrNoUnits),
		errors.Is(err, xlsx.ErrNotWorkbook),
		errors.Is(err, realloc.ErrEmptyLedger):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}

// Checksum fingerprints a cell grid.
func Checksum(rows [][]string) string {
	h := sha256.New()
	for _, row := range rows {
		for _, c := range row {
			h.Write([]byte(c))
			h.Write([]byte{0x1f})
		}
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RulesKey renders cfg canonically, for use in de-duplication keys.
func RulesKey(cfg realloc.Config) string {
	return fmt.Sprintf("fund=%d;natures=%s;reserve=%s;max=%s;single=%t",
		cfg.ProhibitedFund,
		strings.Join(cfg.ProhibitedNatures.Sorted(), ","),
		cfg.ReservePct.String(),
		cfg.MaxPerOperationPct.String(),
		cfg.PreferSingleDonor)
}

// OutputName derives the adjusted workbook file name from a source name.
func OutputName(source string) string {
	base := filepath.Base(source)
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
	if !strings.EqualFold(filepath.Ext(base), ".xlsx") {
		base += ".xlsx"
	}
	return OutputPrefix + base
}

type requestIDKey struct{}

// WithRequestID attaches the id of the request that triggered a run, so the
// completion event can refer back to it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
