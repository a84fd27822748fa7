// Package repdigtest provides an in-memory imitation of the sanctions portal
// for tests.
package repdigtest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const endpoint = "/repdig/consulta/consultaTfa.xhtml"

type Row struct {
	RowIndex       int
	CaseNumber     string
	SubjectName    string
	FacilityUnit   string
	Sector         string
	ResolutionCode string
	Token          string
}

// Rows generates `n` well formed rows starting at row index `start`.
func Rows(start, n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		idx := start + i
		rows[i] = Row{
			RowIndex:       idx,
			CaseNumber:     fmt.Sprintf("%04d-2020-OEFA/DFAI/PAS", idx+1),
			SubjectName:    fmt.Sprintf("EMPRESA %d S.A.C.", idx+1),
			FacilityUnit:   fmt.Sprintf("Unidad %d", idx+1),
			Sector:         "Minería",
			ResolutionCode: fmt.Sprintf("%03d-2021-OEFA/TFA-SE", idx+1),
			Token:          uuid.NewString(),
		}
	}
	return rows
}

// Request is what the portal saw of a request.
type Request struct {
	Method    string
	Form      url.Values
	Header    http.Header
	ViewState string
	// ExpectedViewState is the last view state the portal handed out when the
	// request arrived.
	ExpectedViewState string
	At                time.Time
}

// Kind describes what the request asked for.
func (r Request) Kind() string {
	switch {
	case r.Method == http.MethodGet:
		return "init"
	case r.Form.Get("param_uuid") != "":
		return "download"
	case strings.HasSuffix(r.Form.Get("javax.faces.source"), ":btnBuscar"):
		return "search"
	case strings.HasSuffix(r.Form.Get("javax.faces.source"), ":dt"):
		return "page"
	}
	return "unknown"
}

type Portal struct {
	Server *httptest.Server

	lock           sync.Mutex
	pages          [][]Row
	requests       []Request
	issued         int
	rateLimited    int
	noViewState    bool
	failPages      map[int]int
	failDownloads  map[string]int
	htmlDownloads  map[string]bool
	beforeResponse func(Request)
}

// NewPortal serves pages[0] for the search and pages[i] for the page starting
// at row i*10. Pages past the end are empty.
func NewPortal(pages ...[]Row) *Portal {
	p := &Portal{
		pages:         pages,
		failPages:     map[int]int{},
		failDownloads: map[string]int{},
		htmlDownloads: map[string]bool{},
	}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	return p
}

func (p *Portal) URL() string {
	return p.Server.URL
}

func (p *Portal) Close() {
	p.Server.Close()
}

// RateLimitNext answers the next `n` requests with 429.
func (p *Portal) RateLimitNext(n int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.rateLimited = n
}

// OmitViewState makes the landing page come without a view state.
func (p *Portal) OmitViewState() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.noViewState = true
}

// FailPage answers the page starting at `first` with `status`.
func (p *Portal) FailPage(first, status int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.failPages[first] = status
}

// FailDownload answers downloads of `token` with `status`.
func (p *Portal) FailDownload(token string, status int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.failDownloads[token] = status
}

// ExpireDownload answers downloads of `token` with an html page, like the
// portal does when it lost track of the view state.
func (p *Portal) ExpireDownload(token string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.htmlDownloads[token] = true
}

// BeforeResponse is called with every request before it is answered.
func (p *Portal) BeforeResponse(fn func(Request)) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.beforeResponse = fn
}

// Requests returns every request received so far.
func (p *Portal) Requests() []Request {
	p.lock.Lock()
	defer p.lock.Unlock()
	out := make([]Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// CountKind counts the requests of a given Kind.
func (p *Portal) CountKind(kind string) int {
	count := 0
	for _, r := range p.Requests() {
		if r.Kind() == kind {
			count++
		}
	}
	return count
}

// Document is the body served for a download token.
func Document(token string) []byte {
	return []byte("%PDF-1.4\n% " + token + "\n%%EOF\n")
}

func (p *Portal) viewState() string {
	return fmt.Sprintf("-4311982207514127071:%d", p.issued)
}

func (p *Portal) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != endpoint {
		http.NotFound(w, r)
		return
	}
	err := r.ParseForm()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p.lock.Lock()
	req := Request{
		Method:            r.Method,
		Form:              r.PostForm,
		Header:            r.Header.Clone(),
		ViewState:         r.PostForm.Get("javax.faces.ViewState"),
		ExpectedViewState: p.viewState(),
		At:                time.Now(),
	}
	p.requests = append(p.requests, req)
	hook := p.beforeResponse
	limited := p.rateLimited > 0
	if limited {
		p.rateLimited--
	}
	p.lock.Unlock()

	if hook != nil {
		hook(req)
	}
	if limited {
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	switch req.Kind() {
	case "init":
		p.serveLanding(w)
	case "download":
		p.serveDownload(w, req.Form.Get("param_uuid"))
	case "search":
		p.servePage(w, 0, "listarDetalleInfraccionRAAForm:pgLista")
	case "page":
		first, err := strconv.Atoi(req.Form.Get("listarDetalleInfraccionRAAForm:dt_first"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		p.servePage(w, first, "listarDetalleInfraccionRAAForm:dt")
	default:
		http.Error(w, "unknown request", http.StatusBadRequest)
	}
}

func (p *Portal) serveLanding(w http.ResponseWriter) {
	input := ""
	if !p.noViewState {
		p.issued++
		input = fmt.Sprintf(
			`<input type="hidden" name="javax.faces.ViewState" id="j_id1:javax.faces.ViewState:0" value="%s" autocomplete="off" />`,
			p.viewState(),
		)
	}
	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	fmt.Fprintf(w, `<!DOCTYPE html><html><body><form id="listarDetalleInfraccionRAAForm">%s</form></body></html>`, input)
}

func (p *Portal) serveDownload(w http.ResponseWriter, token string) {
	if status, ok := p.failDownloads[token]; ok {
		http.Error(w, "download failed", status)
		return
	}
	if p.htmlDownloads[token] {
		w.Header().Set("Content-Type", "text/html;charset=UTF-8")
		w.Write([]byte("<html><body>ViewExpiredException</body></html>"))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Write(Document(token))
}

func renderRows(rows []Row) string {
	var out strings.Builder
	for _, row := range rows {
		fmt.Fprintf(
			&out,
			`<tr data-ri="%d" role="row"><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td><a href="#" onclick="mojarra.jsfcljs(document.getElementById('listarDetalleInfraccionRAAForm'),{'listarDetalleInfraccionRAAForm:dt:%d:j_idt63':'listarDetalleInfraccionRAAForm:dt:%d:j_idt63','param_uuid':'%s'},'');return false">PDF</a></td></tr>`,
			row.RowIndex, row.RowIndex+1,
			html.EscapeString(row.CaseNumber),
			html.EscapeString(row.SubjectName),
			html.EscapeString(row.FacilityUnit),
			html.EscapeString(row.Sector),
			html.EscapeString(row.ResolutionCode),
			row.RowIndex, row.RowIndex,
			row.Token,
		)
	}
	return out.String()
}

func (p *Portal) servePage(w http.ResponseWriter, first int, fragmentId string) {
	if status, ok := p.failPages[first]; ok {
		http.Error(w, "page failed", status)
		return
	}

	p.issued++
	var updates strings.Builder
	idx := first / 10
	if idx < len(p.pages) && len(p.pages[idx]) > 0 {
		markup := renderRows(p.pages[idx])
		if fragmentId == "listarDetalleInfraccionRAAForm:pgLista" {
			markup = `<div id="listarDetalleInfraccionRAAForm:pgLista"><table><tbody>` + markup + `</tbody></table></div>`
		}
		fmt.Fprintf(&updates, `<update id="%s"><![CDATA[%s]]></update>`, fragmentId, markup)
	}
	fmt.Fprintf(&updates, `<update id="j_id1:javax.faces.ViewState:0"><![CDATA[%s]]></update>`, p.viewState())

	w.Header().Set("Content-Type", "text/xml;charset=UTF-8")
	fmt.Fprintf(
		w,
		`<?xml version='1.0' encoding='UTF-8'?>`+"\n"+`<partial-response id="j_id1"><changes>%s</changes></partial-response>`,
		updates.String(),
	)
}
