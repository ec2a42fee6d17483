package realloc

import (
	"remanejo/internal/core"
	"remanejo/internal/trace"
)

type consolidationKey struct {
	fund       core.FundCode
	sourceUnit string
	sourceCode string
	destUnit   string
	destCode   string
}

// Consolidate merges records sharing fund, source and destination into one
// line per key, in first-seen order. The first record of a key provides the
// kind and names. Amounts are summed exactly.
func Consolidate(records []core.TransferRecord, tr *trace.Trace) []core.TransferRecord {
	index := make(map[consolidationKey]int, len(records))
	out := make([]core.TransferRecord, 0, len(records))
	for _, rec := range records {
		k := consolidationKey{
			fund:       rec.Fund,
			sourceUnit: rec.SourceUnitCode,
			sourceCode: rec.SourceNatureCode,
			destUnit:   rec.DestUnitCode,
			destCode:   rec.DestNatureCode,
		}
		if i, ok := index[k]; ok {
			out[i].Amount = out[i].Amount.Add(rec.Amount)
			continue
		}
		index[k] = len(out)
		out = append(out, rec)
	}
	if tr != nil {
		tr.Stage("consolidate")
		tr.Info("transfers consolidated", "before", len(records), "after", len(out))
	}
	return out
}
