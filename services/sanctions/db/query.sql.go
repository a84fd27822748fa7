package db

import (
	"context"
)

const upsertRecord = `-- name: UpsertRecord :exec
insert into record (
    download_token, row_index, case_number, subject_name,
    facility_unit, sector, resolution_code, page_first, seen_at
) values (?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict (download_token) do update set
    row_index = excluded.row_index,
    case_number = excluded.case_number,
    subject_name = excluded.subject_name,
    facility_unit = excluded.facility_unit,
    sector = excluded.sector,
    resolution_code = excluded.resolution_code,
    page_first = excluded.page_first,
    seen_at = excluded.seen_at
`

type UpsertRecordParams struct {
	DownloadToken  string
	RowIndex       string
	CaseNumber     string
	SubjectName    string
	FacilityUnit   string
	Sector         string
	ResolutionCode string
	PageFirst      int64
	SeenAt         int64
}

func (q *Queries) UpsertRecord(ctx context.Context, arg UpsertRecordParams) error {
	_, err := q.db.ExecContext(ctx, upsertRecord,
		arg.DownloadToken,
		arg.RowIndex,
		arg.CaseNumber,
		arg.SubjectName,
		arg.FacilityUnit,
		arg.Sector,
		arg.ResolutionCode,
		arg.PageFirst,
		arg.SeenAt,
	)
	return err
}

const recordDownload = `-- name: RecordDownload :exec
insert into download (download_token, status, path, error, updated_at)
values (?, ?, ?, ?, ?)
on conflict (download_token) do update set
    status = excluded.status,
    path = excluded.path,
    error = excluded.error,
    updated_at = excluded.updated_at
`

type RecordDownloadParams struct {
	DownloadToken string
	Status        string
	Path          string
	Error         string
	UpdatedAt     int64
}

func (q *Queries) RecordDownload(ctx context.Context, arg RecordDownloadParams) error {
	_, err := q.db.ExecContext(ctx, recordDownload,
		arg.DownloadToken,
		arg.Status,
		arg.Path,
		arg.Error,
		arg.UpdatedAt,
	)
	return err
}

const countRecords = `-- name: CountRecords :one
select count(*) from record
`

func (q *Queries) CountRecords(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countRecords)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getDownloadStatusCounts = `-- name: GetDownloadStatusCounts :many
select status, count(*) as count from download
group by status
order by status
`

type GetDownloadStatusCountsRow struct {
	Status string
	Count  int64
}

func (q *Queries) GetDownloadStatusCounts(ctx context.Context) ([]GetDownloadStatusCountsRow, error) {
	rows, err := q.db.QueryContext(ctx, getDownloadStatusCounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetDownloadStatusCountsRow
	for rows.Next() {
		var i GetDownloadStatusCountsRow
		if err := rows.Scan(&i.Status, &i.Count); err != nil {
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

const getFailedDownloads = `-- name: GetFailedDownloads :many
select record.case_number, record.resolution_code, download.error
from download
inner join record on record.download_token = download.download_token
where download.status = 'failed'
order by record.page_first, cast(record.row_index as integer)
`

type GetFailedDownloadsRow struct {
	CaseNumber     string
	ResolutionCode string
	Error          string
}

func (q *Queries) GetFailedDownloads(ctx context.Context) ([]GetFailedDownloadsRow, error) {
	rows, err := q.db.QueryContext(ctx, getFailedDownloads)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetFailedDownloadsRow
	for rows.Next() {
		var i GetFailedDownloadsRow
		if err := rows.Scan(&i.CaseNumber, &i.ResolutionCode, &i.Error); err != nil {
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
