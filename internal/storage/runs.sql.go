package storage

import (
	"context"
)

const insertRun = `
INSERT INTO runs (
    id, source_name, checksum, created_at, unit_count, deficit_count,
    internal_count, external_count, no_negative, transfers_occurred, transcript
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertRun(ctx context.Context, arg Run) error {
	_, err := q.db.ExecContext(ctx, insertRun,
		arg.ID,
		arg.SourceName,
		arg.Checksum,
		arg.CreatedAt,
		arg.UnitCount,
		arg.DeficitCount,
		arg.InternalCount,
		arg.ExternalCount,
		arg.NoNegative,
		arg.TransfersOccurred,
		arg.Transcript,
	)
	return err
}

const runColumns = `id, source_name, checksum, created_at, unit_count, deficit_count,
    internal_count, external_count, no_negative, transfers_occurred, transcript`

const getRun = `SELECT ` + runColumns + ` FROM runs WHERE id = ? LIMIT 1`

func (q *Queries) GetRun(ctx context.Context, id string) (Run, error) {
	row := q.db.QueryRowContext(ctx, getRun, id)
	var i Run
	err := row.Scan(
		&i.ID,
		&i.SourceName,
		&i.Checksum,
		&i.CreatedAt,
		&i.UnitCount,
		&i.DeficitCount,
		&i.InternalCount,
		&i.ExternalCount,
		&i.NoNegative,
		&i.TransfersOccurred,
		&i.Transcript,
	)
	return i, err
}

const listRuns = `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]Run, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Run
	for rows.Next() {
		var i Run
		if err := rows.Scan(
			&i.ID,
			&i.SourceName,
			&i.Checksum,
			&i.CreatedAt,
			&i.UnitCount,
			&i.DeficitCount,
			&i.InternalCount,
			&i.ExternalCount,
			&i.NoNegative,
			&i.TransfersOccurred,
			&i.Transcript,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertTransfer = `
INSERT INTO run_transfers (
    run_id, seq, kind, fund_code, source_unit, source_nature, source_name,
    dest_unit, dest_nature, dest_name, amount
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertTransfer(ctx context.Context, arg RunTransfer) error {
	_, err := q.db.ExecContext(ctx, insertTransfer,
		arg.RunID,
		arg.Seq,
		arg.Kind,
		arg.FundCode,
		arg.SourceUnit,
		arg.SourceNature,
		arg.SourceName,
		arg.DestUnit,
		arg.DestNature,
		arg.DestName,
		arg.Amount,
	)
	return err
}

const listTransfers = `
SELECT run_id, seq, kind, fund_code, source_unit, source_nature, source_name,
    dest_unit, dest_nature, dest_name, amount
FROM run_transfers WHERE run_id = ? ORDER BY seq
`

func (q *Queries) ListTransfers(ctx context.Context, runID string) ([]RunTransfer, error) {
	rows, err := q.db.QueryContext(ctx, listTransfers, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RunTransfer
	for rows.Next() {
		var i RunTransfer
		if err := rows.Scan(
			&i.RunID,
			&i.Seq,
			&i.Kind,
			&i.FundCode,
			&i.SourceUnit,
			&i.SourceNature,
			&i.SourceName,
			&i.DestUnit,
			&i.DestNature,
			&i.DestName,
			&i.Amount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertDeficit = `
INSERT INTO run_deficits (run_id, seq, unit_code, unit_name, nature_code, nature_name, amount, fund_code, prohibited)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertDeficit(ctx context.Context, arg RunDeficit) error {
	_, err := q.db.ExecContext(ctx, insertDeficit,
		arg.RunID,
		arg.Seq,
		arg.UnitCode,
		arg.UnitName,
		arg.NatureCode,
		arg.NatureName,
		arg.Amount,
		arg.FundCode,
		arg.Prohibited,
	)
	return err
}

const listDeficits = `
SELECT run_id, seq, unit_code, unit_name, nature_code, nature_name, amount, fund_code, prohibited
FROM run_deficits WHERE run_id = ? ORDER BY seq
`

func (q *Queries) ListDeficits(ctx context.Context, runID string) ([]RunDeficit, error) {
	rows, err := q.db.QueryContext(ctx, listDeficits, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RunDeficit
	for rows.Next() {
		var i RunDeficit
		if err := rows.Scan(
			&i.RunID,
			&i.Seq,
			&i.UnitCode,
			&i.UnitName,
			&i.NatureCode,
			&i.NatureName,
			&i.Amount,
			&i.FundCode,
			&i.Prohibited,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
