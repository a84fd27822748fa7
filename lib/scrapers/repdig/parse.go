package repdig

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"repdig-scraper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PartialResponse is what is extracted from a single JSF partial-response.
type PartialResponse struct {
	// ViewState is the token to use for the next request, it is the token passed
	// to ParsePartialResponse when the response did not carry a newer one.
	ViewState string
	// Records is empty when the response has no table fragment, which is how the
	// portal signals that there are no more results.
	Records []Record
}

type envelope struct {
	XMLName xml.Name `xml:"partial-response"`
	Updates []struct {
		Id      string `xml:"id,attr"`
		Content string `xml:",chardata"`
	} `xml:"changes>update"`
}

func decodeEnvelope(body []byte) (envelope, error) {
	var env envelope
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.Strict = false
	decoder.Entity = xml.HTMLEntity
	err := decoder.Decode(&env)
	if err != nil {
		return envelope{}, fmt.Errorf("decode partial response: %w", err)
	}
	return env, nil
}

// viewState returns the refreshed token or `current` if there is none.
func (e envelope) viewState(current string) string {
	for _, u := range e.Updates {
		if !strings.Contains(u.Id, "ViewState") {
			continue
		}
		token := strings.TrimSpace(u.Content)
		if token != "" {
			return token
		}
	}
	return current
}

func (e envelope) fragment(id string) (string, bool) {
	for _, u := range e.Updates {
		if u.Id == id {
			return u.Content, true
		}
	}
	return "", false
}

// tableFragment finds the results table, which lives under a different id
// depending on whether the response answers a search or a page-advance.
func (e envelope) tableFragment() (string, bool) {
	content, ok := e.fragment(searchTableFragment)
	if ok && strings.TrimSpace(content) != "" {
		return content, true
	}
	content, ok = e.fragment(pageTableFragment)
	if ok && strings.TrimSpace(content) != "" {
		return content, true
	}
	return "", false
}

// downloadTokenRegex pulls the document id out of the row's inline click
// handler. This relies on how the portal renders its commandLink and will break
// if the markup changes.
var downloadTokenRegex = regexp.MustCompile(`'param_uuid':'([a-f0-9-]+)'`)

func parseRows(fragment string) ([]Record, error) {
	// rows are wrapped in a table, otherwise the html parser drops bare <tr>s
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		"<table><tbody>" + fragment + "</tbody></table>",
	))
	if err != nil {
		return nil, fmt.Errorf("parse table fragment: %w", err)
	}

	records := []Record{}
	doc.Find("tr[data-ri]").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		cell := func(i int) string {
			if i >= cells.Length() {
				return ""
			}
			return strings.TrimSpace(htmlutil.GetText(cells.Get(i)))
		}

		token := ""
		row.Find("a[onclick]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			groups := downloadTokenRegex.FindStringSubmatch(a.AttrOr("onclick", ""))
			if len(groups) < 2 {
				return true
			}
			token = groups[1]
			return false
		})
		if token == "" {
			return
		}

		records = append(records, Record{
			RowIndex:       row.AttrOr("data-ri", ""),
			CaseNumber:     cell(1),
			SubjectName:    cell(2),
			FacilityUnit:   cell(3),
			Sector:         cell(4),
			ResolutionCode: cell(5),
			DownloadToken:  token,
		})
	})

	return records, nil
}

// ParsePartialResponse extracts the refreshed view state and the table rows
// from a partial-response body. It does not touch any session, the caller
// decides what to do with the returned token.
func ParsePartialResponse(ctx context.Context, body []byte, viewState string) (PartialResponse, error) {
	_, span := tracer.Start(ctx, "ParsePartialResponse")
	defer span.End()

	env, err := decodeEnvelope(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode envelope")
		return PartialResponse{ViewState: viewState}, err
	}

	result := PartialResponse{
		ViewState: env.viewState(viewState),
		Records:   []Record{},
	}

	fragment, ok := env.tableFragment()
	if !ok {
		span.AddEvent("no table fragment")
		return result, nil
	}

	records, err := parseRows(fragment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse rows")
		return result, err
	}
	result.Records = records
	span.SetAttributes(attribute.Int("records", len(records)))

	return result, nil
}
