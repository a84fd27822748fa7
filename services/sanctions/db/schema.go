package db

import (
	_ "embed"
)

//go:embed schema.sql
var Schema string

// DownloadStatus is the value of download.status.
type DownloadStatus string

const (
	DOWNLOAD_DOWNLOADED DownloadStatus = "downloaded"
	DOWNLOAD_SKIPPED    DownloadStatus = "skipped"
	DOWNLOAD_FAILED     DownloadStatus = "failed"
)
