package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remanejo/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSaveAndGetRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 14, 9, 30, 0, 123, time.UTC)

	run := RunRecord{
		ID:                "run-1",
		SourceName:        "orcamento.xlsx",
		Checksum:          "abc",
		CreatedAt:         created,
		Stats:             core.Statistics{Units: 3, Deficits: 2, InternalTransfers: 1, ExternalTransfers: 1},
		NoNegativeBalance: true,
		TransfersOccurred: true,
		Transcript:        "[scan] deficit found\n",
	}
	transfers := []core.TransferRecord{
		{Kind: core.KindInternalSingle, Fund: 500, SourceUnitCode: "450201", SourceNatureCode: "319011",
			SourceNatureName: "Pay", DestUnitCode: "450201", DestNatureCode: "339039", DestNatureName: "Svc",
			Amount: decimal.RequireFromString("200.10")},
		{Kind: core.KindExternal, SourceUnitCode: "450202", SourceNatureCode: "449052",
			DestUnitCode: "450201", DestNatureCode: "339040", Amount: decimal.RequireFromString("0.01")},
	}
	deficits := []core.Deficit{
		{UnitCode: "450201", UnitName: "ALPHA", Fund: 500, NatureCode: "339039", NatureName: "Svc", Amount: decimal.RequireFromString("200.1")},
		{UnitCode: "450201", UnitName: "ALPHA", Fund: 500, NatureCode: "339018", NatureName: "Grants",
			Amount: decimal.RequireFromString("50"), Prohibited: true},
	}
	require.NoError(t, repo.SaveRun(ctx, run, transfers, deficits))

	got, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Stats, got.Stats)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.NoNegativeBalance)
	assert.Equal(t, run.Transcript, got.Transcript)

	gotTransfers, err := repo.ListTransfers(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, gotTransfers, 2)
	assert.Equal(t, core.KindInternalSingle, gotTransfers[0].Kind)
	assert.Equal(t, core.FundCode(500), gotTransfers[0].Fund)
	assert.Equal(t, "200.1", gotTransfers[0].Amount.String())
	assert.Equal(t, core.NoFund, gotTransfers[1].Fund)

	gotDeficits, err := repo.ListDeficits(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, gotDeficits, 2)
	assert.Equal(t, "ALPHA", gotDeficits[0].UnitName)
	assert.Equal(t, core.FundCode(500), gotDeficits[0].Fund)
	assert.False(t, gotDeficits[0].Prohibited)
	assert.True(t, gotDeficits[1].Prohibited)
}

func TestGetRunNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSaveRunDuplicateIsRejected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	run := RunRecord{ID: "dup", SourceName: "a.xlsx", CreatedAt: time.Now()}
	require.NoError(t, repo.SaveRun(ctx, run, nil, nil))
	assert.Error(t, repo.SaveRun(ctx, run, nil, nil))
}

func TestListRunsNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.SaveRun(ctx, RunRecord{ID: id, SourceName: id + ".xlsx", CreatedAt: base.Add(time.Duration(i) * time.Hour)}, nil, nil))
	}

	runs, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	all, err := repo.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	version, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.Zero(t, version)

	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	version, err = RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	version, err = SchemaVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}
