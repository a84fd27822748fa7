package repdig

import (
	"fmt"
	"strconv"
)

// Endpoint is the only page of the portal this package talks to.
const Endpoint = "/repdig/consulta/consultaTfa.xhtml"

// PageSize is how many rows the portal renders per page.
const PageSize = 10

const (
	formId         = "listarDetalleInfraccionRAAForm"
	viewStateField = "javax.faces.ViewState"

	// fragment ids of the results table in the initial search and page-advance
	// responses respectively
	searchTableFragment = formId + ":pgLista"
	pageTableFragment   = formId + ":dt"
)

// baseForm holds the (empty) search filters every request of the form posts.
func baseForm() map[string]string {
	return map[string]string{
		formId:                     formId,
		formId + ":txtNroexp":      "",
		formId + ":j_idt21":        "",
		formId + ":j_idt25":        "",
		formId + ":idsector":       "",
		formId + ":j_idt34":        "",
		formId + ":dt_scrollState": "0,0",
	}
}

func searchForm() map[string]string {
	form := baseForm()
	form["javax.faces.partial.ajax"] = "true"
	form["javax.faces.source"] = formId + ":btnBuscar"
	form["javax.faces.partial.execute"] = "@all"
	form["javax.faces.partial.render"] = searchTableFragment + " " + formId + ":txtNroexp"
	form[formId+":btnBuscar"] = formId + ":btnBuscar"
	return form
}

func pageForm(first int) map[string]string {
	form := baseForm()
	form["javax.faces.partial.ajax"] = "true"
	form["javax.faces.source"] = pageTableFragment
	form["javax.faces.partial.execute"] = pageTableFragment
	form["javax.faces.partial.render"] = pageTableFragment
	form[pageTableFragment] = pageTableFragment
	form[pageTableFragment+"_pagination"] = "true"
	form[pageTableFragment+"_first"] = strconv.Itoa(first)
	form[pageTableFragment+"_rows"] = strconv.Itoa(PageSize)
	form[pageTableFragment+"_skipChildren"] = "true"
	form[pageTableFragment+"_encodeFeature"] = "true"
	return form
}

func downloadForm(record Record) map[string]string {
	form := baseForm()
	button := fmt.Sprintf("%s:%s:j_idt63", pageTableFragment, record.RowIndex)
	form[button] = button
	form["param_uuid"] = record.DownloadToken
	return form
}
