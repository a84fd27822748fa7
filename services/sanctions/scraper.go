package sanctions

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"repdig-scraper/lib/scrapers/repdig"
	"repdig-scraper/services/sanctions/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("services/sanctions")
var meter = otel.Meter("services/sanctions")

var pagesCounter, _ = meter.Int64Counter(
	"sanctions.pages",
	metric.WithDescription("result pages fetched"),
)
var recordsCounter, _ = meter.Int64Counter(
	"sanctions.records",
	metric.WithDescription("records extracted from result pages"),
)
var downloadsCounter, _ = meter.Int64Counter(
	"sanctions.downloads",
	metric.WithDescription("documents downloaded"),
)
var skipsCounter, _ = meter.Int64Counter(
	"sanctions.skips",
	metric.WithDescription("documents skipped because they already exist"),
)
var failuresCounter, _ = meter.Int64Counter(
	"sanctions.failures",
	metric.WithDescription("documents that could not be downloaded"),
)

type State int

const (
	StateUninitialized State = iota
	StateSessionReady
	StateSearching
	StatePageFetched
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSessionReady:
		return "session_ready"
	case StateSearching:
		return "searching"
	case StatePageFetched:
		return "page_fetched"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Portal is the part of repdig.Client the scraper drives.
type Portal interface {
	Initialize(ctx context.Context) error
	Search(ctx context.Context) ([]repdig.Record, error)
	Page(ctx context.Context, first int) ([]repdig.Record, error)
	Download(ctx context.Context, record repdig.Record, dir string) (path string, skipped bool, err error)
}

type Options struct {
	OutputDir string
	// MaxPages stops the run after that many pages, 0 means no limit.
	MaxPages int
	// Index is optional.
	Index *Index
}

type Result struct {
	Progress
	State State
	Pages int
	// Err is what moved the run into StateFailed.
	Err error
}

type Scraper struct {
	portal Portal
	opts   Options
	state  State
	// every state entered, in order
	history []State
}

func NewScraper(portal Portal, opts Options) *Scraper {
	return &Scraper{
		portal: portal,
		opts:   opts,
	}
}

func (s *Scraper) State() State {
	return s.state
}

// History returns the states the scraper went through, not including the
// initial StateUninitialized.
func (s *Scraper) History() []State {
	out := make([]State, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Scraper) transition(ctx context.Context, next State) {
	slog.DebugContext(ctx, "state transition", "from", s.state, "to", next)
	s.state = next
	s.history = append(s.history, next)
}

func (s *Scraper) fail(ctx context.Context, result *Result, err error) {
	s.transition(ctx, StateFailed)
	result.State = StateFailed
	result.Err = err
}

// Run walks every result page, downloading the document of every record and
// saving the progress snapshot to the output directory after each page. The
// returned error is only set when the session could not be started, failures
// after that end the run in StateFailed with result.Err set.
func (s *Scraper) Run(ctx context.Context) (Result, error) {
	ctx, span := tracer.Start(ctx, "Scraper:Run")
	defer span.End()

	result := Result{State: s.state}

	err := os.MkdirAll(s.opts.OutputDir, 0777)
	if err != nil {
		s.fail(ctx, &result, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("create output dir: %w", err)
	}

	err = s.portal.Initialize(ctx)
	if err != nil {
		s.fail(ctx, &result, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("initialize session: %w", err)
	}
	s.transition(ctx, StateSessionReady)
	slog.InfoContext(ctx, "session ready")

	s.transition(ctx, StateSearching)
	first := 0
	records, err := s.portal.Search(ctx)

	for {
		if err != nil {
			slog.ErrorContext(ctx, "failed to fetch page", "first", first, "err", err)
			s.fail(ctx, &result, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return result, nil
		}
		pagesCounter.Add(ctx, 1)
		s.transition(ctx, StatePageFetched)

		if len(records) == 0 {
			if result.Pages == 0 {
				err = s.save(ctx, result.Progress)
				if err != nil {
					s.fail(ctx, &result, err)
					return result, nil
				}
			}
			slog.InfoContext(ctx, "no more records", "first", first)
			break
		}
		recordsCounter.Add(ctx, int64(len(records)))

		err = s.processPage(ctx, first, records, &result.Progress)
		if err != nil {
			s.fail(ctx, &result, err)
			return result, nil
		}
		result.Pages++

		slog.InfoContext(
			ctx, "page processed",
			"page", result.Pages,
			"first", first,
			"records", len(records),
			"total", len(result.Records),
			"failed", len(result.Failures),
		)

		if s.opts.MaxPages > 0 && result.Pages >= s.opts.MaxPages {
			slog.InfoContext(ctx, "page limit reached", "max_pages", s.opts.MaxPages)
			break
		}

		first += repdig.PageSize
		s.transition(ctx, StateSearching)
		records, err = s.portal.Page(ctx, first)
	}

	s.transition(ctx, StateDone)
	result.State = StateDone
	span.SetAttributes(
		attribute.Int("pages", result.Pages),
		attribute.Int("records", len(result.Records)),
		attribute.Int("failures", len(result.Failures)),
	)
	return result, nil
}

// processPage downloads every record of a page and saves the snapshot. Only
// context cancellation and snapshot write failures are returned, download
// failures are accumulated into `progress`.
func (s *Scraper) processPage(ctx context.Context, first int, records []repdig.Record, progress *Progress) error {
	ctx, span := tracer.Start(ctx, "Scraper:processPage")
	defer span.End()
	span.SetAttributes(attribute.Int("first", first))

	if s.opts.Index != nil {
		err := s.opts.Index.SavePage(ctx, first, records)
		if err != nil {
			slog.WarnContext(ctx, "failed to index page", "first", first, "err", err)
		}
	}

	for _, record := range records {
		progress.Records = append(progress.Records, record)
		if ctx.Err() != nil {
			continue
		}

		path, skipped, err := s.portal.Download(ctx, record, s.opts.OutputDir)
		if err != nil && ctx.Err() != nil {
			continue
		}

		var status db.DownloadStatus
		switch {
		case err != nil:
			status = db.DOWNLOAD_FAILED
			failuresCounter.Add(ctx, 1)
			slog.WarnContext(ctx, "download failed", "case_number", record.CaseNumber, "err", err)
			progress.Failures = append(progress.Failures, Failure{
				Doc:   record,
				Error: err.Error(),
			})
		case skipped:
			status = db.DOWNLOAD_SKIPPED
			skipsCounter.Add(ctx, 1)
			slog.DebugContext(ctx, "already downloaded", "case_number", record.CaseNumber, "path", path)
		default:
			status = db.DOWNLOAD_DOWNLOADED
			downloadsCounter.Add(ctx, 1)
			slog.DebugContext(ctx, "downloaded", "case_number", record.CaseNumber, "path", path)
		}

		if s.opts.Index != nil {
			indexErr := s.opts.Index.SaveDownload(ctx, record, status, path, err)
			if indexErr != nil {
				slog.WarnContext(ctx, "failed to index download", "case_number", record.CaseNumber, "err", indexErr)
			}
		}
	}

	err := s.save(ctx, *progress)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (s *Scraper) save(ctx context.Context, progress Progress) error {
	err := progress.Save(s.opts.OutputDir)
	if err != nil {
		slog.ErrorContext(ctx, "failed to save progress", "err", err)
		return err
	}
	return nil
}
