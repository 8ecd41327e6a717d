package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/interpose/middleware"
	"github.com/justinas/alice"
)

func router(config *Global) http.Handler {
	router := mux.NewRouter()
	POST := router.Methods("POST").Subrouter()
	GET := router.Methods("GET", "HEAD").Subrouter()

	h := handler{Global: config, router: router}

	GET.HandleFunc("/", h.Index).Name("index")
	GET.HandleFunc("/goroutines", h.Goroutines)
	GET.HandleFunc("/subject/{subject}", h.Subject).Name("subject")
	GET.HandleFunc("/subject/{subject}/surface", h.Surface).Name("surface")
	GET.HandleFunc("/img/slice/{modality}/{plane}/{index:[0-9]+}.png", h.SliceImage)
	GET.HandleFunc("/img/surface.png", h.SurfacePNG)
	GET.HandleFunc("/api/stages", h.StagesJSON)

	//
	// POST
	//
	POST.Handle("/", http.NotFoundHandler())
	POST.HandleFunc("/export/figure", h.ExportFigure)
	POST.HandleFunc("/export/data", h.ExportData)

	standard := alice.New(
		// Log all requests to STDOUT
		middleware.GorillaLog(),
	)

	return standard.Then(router)
}
