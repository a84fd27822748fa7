package restyutil

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type InstrumentOutput interface {
	Write(id string, contents string)
}

// Dumper writes a single exchange to the output of InstrumentClient.
type Dumper func(res *resty.Response)

// InstrumentClient dumps every request/response pair made by `client` into
// `output`, `output` can be nil, in which case this is a no-op.
//
// resty skips response middleware for requests made with
// SetDoNotParseResponse, the returned Dumper must be called for those.
// Their bodies are not read, so the dump carries headers only.
func InstrumentClient(client *resty.Client, output InstrumentOutput) Dumper {
	if output == nil {
		return func(*resty.Response) {}
	}

	var idcounter uint64
	dump := func(res *resty.Response) {
		id := fmt.Sprintf("%04d.txt", atomic.AddUint64(&idcounter, 1))
		output.Write(id, formatHttpMessage(res))
		slog.Debug(
			"dumped http message",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"status", res.StatusCode(),
			"message_id", id,
		)
	}
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		dump(res)
		return nil
	})
	return dump
}
