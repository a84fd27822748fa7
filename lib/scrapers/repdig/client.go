package repdig

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"repdig-scraper/lib/restyutil"
	"repdig-scraper/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("scrapers/repdig")
var meter = otel.Meter("scrapers/repdig")

var rateLimitedCounter, _ = meter.Int64Counter(
	"repdig.rate_limited",
	metric.WithDescription("429 responses received from the portal"),
)

// Sleeper suspends the caller for `d` or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type ClientOptions struct {
	BaseUrl string
	// RequestDelay is waited before every request, retries included.
	RequestDelay time.Duration
	// RetryBaseDelay is the base of the exponential backoff applied on 429.
	RetryBaseDelay time.Duration
	// MaxRetries is how many times a request is repeated after a 429.
	MaxRetries int
	// Timeout is the per request transport timeout, 0 means DefaultTimeout.
	Timeout time.Duration
	// CloudflareBypass wraps the transport with browser-like TLS and headers.
	CloudflareBypass bool
	// Sleep defaults to Sleep, tests replace it to observe delays.
	Sleep Sleeper
	// Dump receives every request/response pair when not nil.
	Dump restyutil.InstrumentOutput
}

const (
	DefaultBaseUrl        = "https://publico.oefa.gob.pe"
	DefaultRequestDelay   = 2 * time.Second
	DefaultRetryBaseDelay = 2 * time.Second
	DefaultMaxRetries     = 5
	DefaultTimeout        = 30 * time.Second
)

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		BaseUrl:        DefaultBaseUrl,
		RequestDelay:   DefaultRequestDelay,
		RetryBaseDelay: DefaultRetryBaseDelay,
		MaxRetries:     DefaultMaxRetries,
		Timeout:        DefaultTimeout,
	}
}

// Client is a single session against the portal. The server keeps one UI state
// per session and rotates the view state on every response, so every request
// made through a Client is serialized.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	opts  ClientOptions
	sleep Sleeper
	dump  restyutil.Dumper

	// lock is held for whole request cycles (delay, request, retries)
	lock      sync.Mutex
	viewState string
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseUrl)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	client.SetHeaders(map[string]string{
		"User-Agent":    "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":        "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Cache-Control": "no-cache",
		"Pragma":        "no-cache",
		"Origin":        strings.TrimSuffix(baseUrl.String(), "/"),
		"Referer":       baseUrl.JoinPath(Endpoint).String(),
	})
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(client, "scrapers/repdig/http")
	dump := restyutil.InstrumentClient(client, opts.Dump)

	return &Client{
		BaseUrl: baseUrl,
		Http:    client,
		opts:    opts,
		sleep:   sleep,
		dump:    dump,
	}, nil
}

// ViewState returns the token that will be sent with the next request.
func (c *Client) ViewState() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.viewState
}

// do runs one request cycle: the fixed delay, the request, and the retries on
// 429. Non 2xx statuses other than 429 are returned as ErrTransport. When
// `stream` is set the caller owns the returned response's RawBody.
func (c *Client) do(ctx context.Context, method string, stream bool, build func() *resty.Request) (*resty.Response, error) {
	for attempt := 0; ; attempt++ {
		err := c.sleep(ctx, c.opts.RequestDelay)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}

		req := build().SetContext(ctx)
		if stream {
			req.SetDoNotParseResponse(true)
		}
		res, err := req.Execute(method, Endpoint)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, Endpoint, err)
		}
		if stream {
			telemetry.EndStreamedResponse(res)
			c.dump(res)
		}

		status := res.StatusCode()
		if status == http.StatusTooManyRequests {
			if stream {
				res.RawBody().Close()
			}
			rateLimitedCounter.Add(ctx, 1)
			if attempt >= c.opts.MaxRetries {
				return nil, fmt.Errorf(
					"%w: still receiving 429 after %d attempts",
					ErrRateLimitExceeded, attempt+1,
				)
			}
			backoff := Backoff(attempt, c.opts.RetryBaseDelay)
			slog.WarnContext(ctx, "429 too many requests, retrying", "attempt", attempt+1, "backoff", backoff)
			err = c.sleep(ctx, backoff)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrTransport, err)
			}
			continue
		}

		if res.IsError() {
			if stream {
				res.RawBody().Close()
			}
			return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, Endpoint, &StatusError{Status: status})
		}
		return res, nil
	}
}

// withViewState copies `fields` and embeds the current view state, the caller
// must hold the lock.
func (c *Client) withViewState(fields map[string]string) map[string]string {
	form := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		form[k] = v
	}
	form[viewStateField] = c.viewState
	return form
}

// Initialize opens the session: it loads the landing page (which also sets
// the session cookie) and reads the initial view state out of it.
func (c *Client) Initialize(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Initialize")
	defer span.End()

	c.lock.Lock()
	defer c.lock.Unlock()

	res, err := c.do(ctx, resty.MethodGet, false, func() *resty.Request {
		return c.Http.R()
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch landing page")
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse landing page")
		return fmt.Errorf("%w: %w", ErrSessionInit, err)
	}

	viewState := strings.TrimSpace(
		doc.Find(`input[name="javax.faces.ViewState"]`).First().AttrOr("value", ""),
	)
	if viewState == "" {
		span.SetStatus(codes.Error, ErrSessionInit.Error())
		return ErrSessionInit
	}

	c.viewState = viewState
	slog.DebugContext(ctx, "session initialized", "view_state", viewState)
	return nil
}

// SubmitForm posts `fields` as a partial ajax request with the current view
// state embedded and returns the raw response body. A newer view state found in
// the response replaces the current one.
func (c *Client) SubmitForm(ctx context.Context, fields map[string]string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:SubmitForm")
	defer span.End()

	c.lock.Lock()
	defer c.lock.Unlock()

	form := c.withViewState(fields)
	res, err := c.do(ctx, resty.MethodPost, false, func() *resty.Request {
		return c.Http.R().
			SetHeader("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8").
			SetHeader("Faces-Request", "partial/ajax").
			SetFormData(form)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}

	body := res.Body()
	env, err := decodeEnvelope(body)
	if err != nil {
		// not every answer is a partial response, the caller decides whether
		// that is a problem
		slog.DebugContext(ctx, "response carries no view state", "err", err)
		return body, nil
	}
	c.viewState = env.viewState(c.viewState)

	return body, nil
}

func isMarkup(contentType string) bool {
	return strings.Contains(contentType, "html") || strings.Contains(contentType, "xml")
}

// SubmitFormForStream posts `fields` like SubmitForm but streams the response
// body into `destination`. The body is written next to the destination first
// and only renamed into place once fully copied, so `destination` exists only
// if the download completed.
func (c *Client) SubmitFormForStream(ctx context.Context, fields map[string]string, destination string) error {
	ctx, span := tracer.Start(ctx, "client:SubmitFormForStream")
	defer span.End()
	span.SetAttributes(attribute.String("destination", destination))

	c.lock.Lock()
	defer c.lock.Unlock()

	form := c.withViewState(fields)
	res, err := c.do(ctx, resty.MethodPost, true, func() *resty.Request {
		return c.Http.R().
			SetHeader("Content-Type", "application/x-www-form-urlencoded").
			SetFormData(form)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return err
	}
	body := res.RawBody()
	defer body.Close()

	contentType := res.Header().Get("Content-Type")
	if isMarkup(contentType) {
		err := fmt.Errorf("%w: expected a document but got %q", ErrTransport, contentType)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	partial := destination + ".part"
	f, err := os.Create(partial)
	if err != nil {
		span.RecordError(err)
		return err
	}
	written, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(partial)
		if copyErr != nil {
			err = fmt.Errorf("%w: read body: %w", ErrTransport, copyErr)
		} else {
			err = closeErr
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write body")
		return err
	}

	err = os.Rename(partial, destination)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Int64("bytes", written))
	return nil
}

func (c *Client) records(ctx context.Context, fields map[string]string) ([]Record, error) {
	body, err := c.SubmitForm(ctx, fields)
	if err != nil {
		return nil, err
	}
	res, err := ParsePartialResponse(ctx, body, c.ViewState())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return res.Records, nil
}

// Search submits the search form with no filters, it returns the first page.
func (c *Client) Search(ctx context.Context) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "client:Search")
	defer span.End()

	records, err := c.records(ctx, searchForm())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}
	return records, nil
}

// Page fetches the page of results starting at row `first`. An empty result
// means there are no more rows.
func (c *Client) Page(ctx context.Context, first int) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "client:Page")
	defer span.End()
	span.SetAttributes(attribute.Int("first", first))

	records, err := c.records(ctx, pageForm(first))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "page failed")
		return nil, err
	}
	return records, nil
}

// Download stores the document of `record` in `dir` under record.FileName().
// If that file already exists no request is made and `skipped` is true.
func (c *Client) Download(ctx context.Context, record Record, dir string) (path string, skipped bool, err error) {
	ctx, span := tracer.Start(ctx, "client:Download")
	defer span.End()

	path = filepath.Join(dir, record.FileName())
	span.SetAttributes(
		attribute.String("case_number", record.CaseNumber),
		attribute.String("path", path),
	)

	_, err = os.Stat(path)
	if err == nil {
		span.AddEvent("already downloaded")
		return path, true, nil
	}
	if !os.IsNotExist(err) {
		return path, false, fmt.Errorf("%w: %s: %w", ErrDownload, record.CaseNumber, err)
	}

	err = c.SubmitFormForStream(ctx, downloadForm(record), path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "download failed")
		return path, false, fmt.Errorf("%w: %s: %w", ErrDownload, record.CaseNumber, err)
	}
	return path, false, nil
}
