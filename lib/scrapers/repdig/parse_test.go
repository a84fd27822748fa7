package repdig

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	_ "embed"
)

//go:embed testdata/search.xml
var searchResponse []byte

//go:embed testdata/page.xml
var pageResponse []byte

//go:embed testdata/empty.xml
var emptyResponse []byte

//go:embed testdata/landing.html
var landingPage []byte

func TestParseSearchResponse(t *testing.T) {
	res, err := ParsePartialResponse(context.Background(), searchResponse, "old")
	require.NoError(t, err)
	require.Equal(t, "-4311982207514127071:1111111111111111111", res.ViewState)

	expected := []Record{
		{
			RowIndex:       "0",
			CaseNumber:     "0123-2019-OEFA/DFAI/PAS",
			SubjectName:    "MINERA LOS ANDES S.A.C.",
			FacilityUnit:   "Planta Concentradora Santa Rosa",
			Sector:         "Minería",
			ResolutionCode: "045-2021-OEFA/TFA-SE",
			DownloadToken:  "3f2b8c1e-9a4d-4e0f-b1c2-7d8e9f0a1b2c",
		},
		{
			RowIndex:       "1",
			CaseNumber:     "0456-2018-OEFA/DFSAI/PAS",
			SubjectName:    "PETROLERA DEL NORTE S.A.",
			FacilityUnit:   "Lote 8",
			Sector:         "Hidrocarburos",
			ResolutionCode: "112-2020-OEFA/TFA-SMEPIM",
			DownloadToken:  "a0b1c2d3-e4f5-4a6b-8c7d-9e0f1a2b3c4d",
		},
		{
			RowIndex:       "2",
			CaseNumber:     "0789-2020-OEFA/DFAI/PAS",
			SubjectName:    "AGRO & PESCA E.I.R.L.",
			FacilityUnit:   "Planta de harina",
			Sector:         "Pesquería",
			ResolutionCode: "007-2022-OEFA/TFA-SE",
			DownloadToken:  "ffee0011-2233-4455-6677-8899aabbccdd",
		},
	}
	if diff := cmp.Diff(expected, res.Records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePageResponse(t *testing.T) {
	res, err := ParsePartialResponse(context.Background(), pageResponse, "old")
	require.NoError(t, err)
	require.Equal(t, "-4311982207514127071:2222222222222222222", res.ViewState)

	// the row without a param_uuid handler is dropped, the short row keeps
	// whatever cells it has
	expected := []Record{
		{
			RowIndex:       "10",
			CaseNumber:     "1001-2019-OEFA/DFAI/PAS",
			SubjectName:    "ELECTRO SUR S.A.",
			FacilityUnit:   "Central Térmica Ilo",
			Sector:         "Electricidad",
			ResolutionCode: "201-2021-OEFA/TFA-SE",
			DownloadToken:  "0a1b2c3d-4e5f-4a6b-9c8d-7e6f5a4b3c2d",
		},
		{
			RowIndex:      "12",
			CaseNumber:    "1003-2019-OEFA/DFAI/PAS",
			SubjectName:   "PDF",
			DownloadToken: "12345678-9abc-4def-8123-456789abcdef",
		},
	}
	if diff := cmp.Diff(expected, res.Records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestParseNoTableFragment(t *testing.T) {
	for i := 0; i < 3; i++ {
		res, err := ParsePartialResponse(context.Background(), emptyResponse, "old")
		require.NoError(t, err)
		require.NotNil(t, res.Records)
		require.Len(t, res.Records, 0)
		require.Equal(t, "-4311982207514127071:3333333333333333333", res.ViewState)
	}
}

func TestParseKeepsViewStateWhenAbsent(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="UTF-8"?><partial-response><changes><update id="other"><![CDATA[<span/>]]></update></changes></partial-response>`)

	res, err := ParsePartialResponse(context.Background(), body, "current")
	require.NoError(t, err)
	require.Equal(t, "current", res.ViewState)
	require.Empty(t, res.Records)
}

func TestParseEmptyTableFragment(t *testing.T) {
	body := []byte(`<partial-response><changes><update id="listarDetalleInfraccionRAAForm:dt"><![CDATA[<tr class="ui-datatable-empty-message"><td colspan="7">No se encontraron registros</td></tr>]]></update></changes></partial-response>`)

	res, err := ParsePartialResponse(context.Background(), body, "current")
	require.NoError(t, err)
	require.Empty(t, res.Records)
}

func TestParseNotAPartialResponse(t *testing.T) {
	_, err := ParsePartialResponse(context.Background(), landingPage, "current")
	require.Error(t, err)
}

func TestRecordFileName(t *testing.T) {
	table := []struct {
		record   Record
		expected string
	}{
		{
			record:   Record{ResolutionCode: "045-2021-OEFA/TFA-SE", DownloadToken: "3f2b8c1e-9a4d-4e0f-b1c2-7d8e9f0a1b2c"},
			expected: "045_2021_OEFA_TFA_SE_3f2b8c1e.pdf",
		},
		{
			record:   Record{ResolutionCode: "N° 12 año", DownloadToken: "abc"},
			expected: "N__12_a_o_abc.pdf",
		},
		{
			record:   Record{ResolutionCode: "", DownloadToken: "12345678"},
			expected: "_12345678.pdf",
		},
	}

	for _, row := range table {
		require.Equal(t, row.expected, row.record.FileName())
	}
}
