package sanctions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"repdig-scraper/lib/scrapers/repdig"

	"github.com/stretchr/testify/require"
)

func TestProgressSave(t *testing.T) {
	dir := t.TempDir()
	record := repdig.Record{
		RowIndex:       "0",
		CaseNumber:     "0001-2020-OEFA/DFAI/PAS",
		SubjectName:    "EMPRESA 1 S.A.C.",
		FacilityUnit:   "Unidad 1",
		Sector:         "Minería",
		ResolutionCode: "001-2021-OEFA/TFA-SE",
		DownloadToken:  "3f2b8c1e-0000-4000-8000-000000000000",
	}

	err := Progress{Records: []repdig.Record{record}}.Save(dir)
	require.NoError(t, err)
	require.NoFileExists(t, filepath.Join(dir, FailuresFile))

	contents, err := os.ReadFile(filepath.Join(dir, DataFile))
	require.NoError(t, err)
	var raw []map[string]string
	require.NoError(t, json.Unmarshal(contents, &raw))
	require.Equal(t, []map[string]string{{
		"id":                 "0",
		"expediente":         "0001-2020-OEFA/DFAI/PAS",
		"administrado":       "EMPRESA 1 S.A.C.",
		"unidadFiscalizable": "Unidad 1",
		"sector":             "Minería",
		"resolucion":         "001-2021-OEFA/TFA-SE",
		"downloadUuid":       "3f2b8c1e-0000-4000-8000-000000000000",
	}}, raw)

	progress := Progress{
		Records:  []repdig.Record{record, record},
		Failures: []Failure{{Doc: record, Error: "timeout"}},
	}
	require.NoError(t, progress.Save(dir))

	contents, err = os.ReadFile(filepath.Join(dir, FailuresFile))
	require.NoError(t, err)
	var failures []struct {
		Doc   map[string]string `json:"doc"`
		Error string            `json:"error"`
	}
	require.NoError(t, json.Unmarshal(contents, &failures))
	require.Len(t, failures, 1)
	require.Equal(t, "timeout", failures[0].Error)
	require.Equal(t, record.CaseNumber, failures[0].Doc["expediente"])

	loaded, err := LoadProgress(dir)
	require.NoError(t, err)
	require.Equal(t, progress, loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestLoadProgressMissing(t *testing.T) {
	progress, err := LoadProgress(t.TempDir())
	require.NoError(t, err)
	require.Len(t, progress.Records, 0)
	require.Len(t, progress.Failures, 0)
}

func TestLoadProgressCorrupt(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, DataFile), []byte("[{"), 0666)
	require.NoError(t, err)

	_, err = LoadProgress(dir)
	require.Error(t, err)
}
