package restyutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	lock     sync.Mutex
	messages map[string]string
}

func (o *memoryOutput) Write(id string, contents string) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.messages[id] = contents
}

func TestInstrumentClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/doc" {
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.4"))
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte("<partial-response/>"))
	}))
	defer server.Close()

	output := &memoryOutput{messages: map[string]string{}}
	client := resty.New().SetBaseURL(server.URL)
	InstrumentClient(client, output)

	_, err := client.R().SetFormData(map[string]string{"a": "b"}).Post("/form")
	require.NoError(t, err)
	_, err = client.R().Get("/doc")
	require.NoError(t, err)

	require.Len(t, output.messages, 2)
	first := output.messages["0001.txt"]
	require.True(t, strings.Contains(first, "POST "+server.URL+"/form"), first)
	require.True(t, strings.Contains(first, "a=b"), first)
	require.True(t, strings.Contains(first, "<partial-response/>"), first)

	second := output.messages["0002.txt"]
	require.True(t, strings.Contains(second, "<application/pdf BODY OMITTED>"), second)
	require.True(t, strings.Contains(second, "<NO BODY AVAILABLE>"), second)
}

func TestInstrumentClientStreamed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	output := &memoryOutput{messages: map[string]string{}}
	client := resty.New().SetBaseURL(server.URL)
	dump := InstrumentClient(client, output)

	res, err := client.R().
		SetDoNotParseResponse(true).
		SetFormData(map[string]string{"param_uuid": "abc"}).
		Post("/doc")
	require.NoError(t, err)
	defer res.RawBody().Close()
	dump(res)

	require.Len(t, output.messages, 1)
	message := output.messages["0001.txt"]
	require.True(t, strings.Contains(message, "POST "+server.URL+"/doc"), message)
	require.True(t, strings.Contains(message, "param_uuid=abc"), message)
	require.True(t, strings.Contains(message, "200"), message)
}

func TestInstrumentClientNilOutput(t *testing.T) {
	client := resty.New()
	dump := InstrumentClient(client, nil)
	dump(nil)
}
