package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remanejo/internal/sheets/memory"
	"remanejo/internal/sheets/xlsx"
)

// isolate points every setting the commands read at the test directory.
func isolate(t *testing.T, history bool) string {
	t.Helper()
	dir := t.TempDir()
	for _, key := range []string{"AMQP_URL", "RULES_FILE", "PROHIBITED_FUND", "PROHIBITED_NATURES",
		"RESERVE_PCT", "MAX_PER_OPERATION_PCT", "PREFER_SINGLE_DONOR", "PORT", "CACHE_SIZE", "CACHE_TTL"} {
		t.Setenv(key, "")
	}
	db := ""
	if history {
		db = filepath.Join(dir, "history.db")
	}
	t.Setenv("SQLITE_DB_PATH", db)
	return dir
}

func writeBudget(t *testing.T, dir, name string) string {
	t.Helper()
	rows := memory.NewBudget().
		Unit(100, "450201", "UNIDADE A", "800").
		Nature(100, "339030", "Material de consumo", "-200").
		Nature(100, "339039", "Outros serviços", "1000").
		Rows()
	data, err := xlsx.GridBytes(rows)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--env-file", filepath.Join(dir, "missing.env"), "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRunWritesAdjustedWorkbooks(t *testing.T) {
	dir := isolate(t, false)
	a := writeBudget(t, dir, "a.xlsx")
	b := writeBudget(t, dir, "b.xlsx")
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, dir, "run", a, b, "--out", outDir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(outDir, "orcamento_ajustado_a.xlsx"))
	assert.FileExists(t, filepath.Join(outDir, "orcamento_ajustado_b.xlsx"))
	assert.Less(t, strings.Index(out, "a.xlsx"), strings.Index(out, "b.xlsx"))
	assert.Contains(t, out, "internal transfers: 1")
	assert.Contains(t, out, "no negative:        true")
}

func TestRunJSONAndTranscript(t *testing.T) {
	dir := isolate(t, false)
	path := writeBudget(t, dir, "orcamento.xlsx")

	out, err := execute(t, dir, "run", path, "--json")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "orcamento_ajustado_orcamento.xlsx"))

	var decoded []struct {
		ID     string `json:"id"`
		Result struct {
			Statistics struct {
				Deficits int `json:"deficits"`
			} `json:"statistics"`
			Transfers []struct {
				Kind string `json:"kind"`
			} `json:"transfers"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 1)
	assert.NotEmpty(t, decoded[0].ID)
	assert.Equal(t, 1, decoded[0].Result.Statistics.Deficits)
	require.Len(t, decoded[0].Result.Transfers, 1)
	assert.Equal(t, "interna-única", decoded[0].Result.Transfers[0].Kind)

	out, err = execute(t, dir, "run", path, "--transcript")
	require.NoError(t, err)
	assert.Contains(t, out, "[scan]")
}

func TestRunRejectsBadInput(t *testing.T) {
	dir := isolate(t, false)
	path := writeBudget(t, dir, "orcamento.xlsx")

	_, err := execute(t, dir, "run", path, "--prohibited-fund", "abc")
	assert.Error(t, err)

	_, err = execute(t, dir, "run", path, "--prohibited-natures", "12")
	assert.Error(t, err)

	_, err = execute(t, dir, "run", filepath.Join(dir, "missing.xlsx"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = execute(t, dir, "run")
	assert.Error(t, err)
}

func TestHistoryAndShow(t *testing.T) {
	dir := isolate(t, true)
	path := writeBudget(t, dir, "orcamento.xlsx")

	out, err := execute(t, dir, "run", path, "--json")
	require.NoError(t, err)
	var runs []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)

	out, err = execute(t, dir, "history", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, runs[0].ID)
	assert.Contains(t, out, "orcamento.xlsx")

	out, err = execute(t, dir, "show", runs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Transfers")
	assert.Contains(t, out, "450201/339039")
	assert.Contains(t, out, "200.00")

	_, err = execute(t, dir, "show", "no-such-run")
	assert.Error(t, err)
}

func TestHistoryDisabled(t *testing.T) {
	dir := isolate(t, false)
	_, err := execute(t, dir, "history")
	assert.ErrorContains(t, err, "disabled")
}

func TestEnqueueRequiresBroker(t *testing.T) {
	dir := isolate(t, false)
	_, err := execute(t, dir, "enqueue", "budget.xlsx")
	assert.ErrorContains(t, err, "AMQP_URL")
}
