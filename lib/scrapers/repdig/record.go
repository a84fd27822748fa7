package repdig

import (
	"fmt"
	"regexp"
)

// Record is one row of the sanctions table.
type Record struct {
	RowIndex       string `json:"id"`
	CaseNumber     string `json:"expediente"`
	SubjectName    string `json:"administrado"`
	FacilityUnit   string `json:"unidadFiscalizable"`
	Sector         string `json:"sector"`
	ResolutionCode string `json:"resolucion"`
	DownloadToken  string `json:"downloadUuid"`
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9]`)

// FileName is the name the record's document is stored under, derived only from
// the resolution code and the first 8 characters of the download token so that
// reruns find files written by earlier runs.
func (r Record) FileName() string {
	token := r.DownloadToken
	if len(token) > 8 {
		token = token[:8]
	}
	return fmt.Sprintf(
		"%s_%s.pdf",
		unsafeFilenameChars.ReplaceAllString(r.ResolutionCode, "_"),
		token,
	)
}
