package main

import (
	"fmt"
	"net/http"
)

func HTTPError(h *handler, w http.ResponseWriter, r *http.Request, err error, code ...int) {
	usedCode := http.StatusInternalServerError
	if len(code) > 0 {
		usedCode = code[0]
	}
	w.WriteHeader(usedCode)
	h.log.Println(r.Host, r.URL.Path, ":", usedCode, err)

	output := struct {
		StatusCode     int
		StatusCodeText string
		Error          string
	}{
		StatusCode:     usedCode,
		StatusCodeText: http.StatusText(usedCode),
		Error:          err.Error(),
	}

	// Built from the Render() function, but not calling Render()
	// to avoid possibility of infinite loop
	page := Page{
		Title:   "Error",
		Site:    h.Global.Site,
		Subject: h.Global.subject,
		Data:    output,
	}

	if err := h.Template("error.html").Execute(w, page); err != nil {
		fmt.Fprintf(w, "Error (%d) (%v) with %+v", output.StatusCode, err, page)
	}
}

// imageError reports a failure on an image endpoint as plain text, since the
// browser renders these responses inside an img tag where HTML is useless.
func imageError(h *handler, w http.ResponseWriter, r *http.Request, err error, code int) {
	h.log.Println(r.Host, r.URL.Path, ":", code, err)
	http.Error(w, err.Error(), code)
}
