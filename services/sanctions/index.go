package sanctions

import (
	"context"
	"database/sql"
	"time"

	"repdig-scraper/lib/scrapers/repdig"
	"repdig-scraper/services/sanctions/db"

	"go.opentelemetry.io/otel/codes"
)

// Index mirrors every listed record and its download outcome into sqlite.
type Index struct {
	db  *sql.DB
	qry *db.Queries
}

func NewIndex(database *sql.DB) Index {
	return Index{
		db:  database,
		qry: db.New(database),
	}
}

// SavePage upserts all the records of the page starting at `first`.
func (i Index) SavePage(ctx context.Context, first int, records []repdig.Record) error {
	ctx, span := tracer.Start(ctx, "Index:SavePage")
	defer span.End()

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer tx.Rollback()
	txqry := i.qry.WithTx(tx)

	now := time.Now().Unix()
	for _, r := range records {
		err := txqry.UpsertRecord(ctx, db.UpsertRecordParams{
			DownloadToken:  r.DownloadToken,
			RowIndex:       r.RowIndex,
			CaseNumber:     r.CaseNumber,
			SubjectName:    r.SubjectName,
			FacilityUnit:   r.FacilityUnit,
			Sector:         r.Sector,
			ResolutionCode: r.ResolutionCode,
			PageFirst:      int64(first),
			SeenAt:         now,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// SaveDownload records the outcome of downloading `record`, the record must
// have been saved with SavePage first.
func (i Index) SaveDownload(ctx context.Context, record repdig.Record, status db.DownloadStatus, path string, cause error) error {
	errMessage := ""
	if cause != nil {
		errMessage = cause.Error()
	}
	return i.qry.RecordDownload(ctx, db.RecordDownloadParams{
		DownloadToken: record.DownloadToken,
		Status:        string(status),
		Path:          path,
		Error:         errMessage,
		UpdatedAt:     time.Now().Unix(),
	})
}

type IndexSummary struct {
	Records  int64
	Statuses []db.GetDownloadStatusCountsRow
	Failed   []db.GetFailedDownloadsRow
}

func (i Index) Summary(ctx context.Context) (IndexSummary, error) {
	count, err := i.qry.CountRecords(ctx)
	if err != nil {
		return IndexSummary{}, err
	}
	statuses, err := i.qry.GetDownloadStatusCounts(ctx)
	if err != nil {
		return IndexSummary{}, err
	}
	failed, err := i.qry.GetFailedDownloads(ctx)
	if err != nil {
		return IndexSummary{}, err
	}
	return IndexSummary{
		Records:  count,
		Statuses: statuses,
		Failed:   failed,
	}, nil
}
