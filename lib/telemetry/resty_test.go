package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	recorder := tracetest.NewSpanRecorder()
	provider := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
	})
	return recorder
}

func attributeValue(span trace.ReadOnlySpan, key string) (string, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == attribute.Key(key) {
			return kv.Value.AsString(), true
		}
	}
	return "", false
}

func newServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.Error(w, "not found", http.StatusNotFound)
		case "/doc":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.4"))
		default:
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		}
	}))
}

func TestInstrumentRestyBodilessRequest(t *testing.T) {
	recorder := setupRecorder(t)
	server := newServer()
	defer server.Close()

	client := resty.New().SetBaseURL(server.URL)
	InstrumentResty(client, "test")

	res, err := client.R().Get("/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "http GET", spans[0].Name())
	_, ok := attributeValue(spans[0], "request/body")
	require.False(t, ok)
	body, ok := attributeValue(spans[0], "response/body")
	require.True(t, ok)
	require.Equal(t, "<html></html>", body)
}

func TestInstrumentRestyFormRequest(t *testing.T) {
	recorder := setupRecorder(t)
	server := newServer()
	defer server.Close()

	client := resty.New().SetBaseURL(server.URL)
	InstrumentResty(client, "test")

	_, err := client.R().SetFormData(map[string]string{"a": "b"}).Post("/")
	require.NoError(t, err)
	_, err = client.R().Get("/missing")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	body, ok := attributeValue(spans[0], "request/body")
	require.True(t, ok)
	require.Equal(t, "a=b", body)
	require.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestEndStreamedResponse(t *testing.T) {
	recorder := setupRecorder(t)
	server := newServer()
	defer server.Close()

	client := resty.New().SetBaseURL(server.URL)
	InstrumentResty(client, "test")

	res, err := client.R().SetDoNotParseResponse(true).Get("/doc")
	require.NoError(t, err)
	defer res.RawBody().Close()
	EndStreamedResponse(res)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	_, ok := attributeValue(spans[0], "response/body")
	require.False(t, ok)
}
