// viewer serves the interactive browser GUI over a processed dataset: per
// subject it shows slice panels across modalities, the reconstructed cortical
// surface with mapped activations, electrode markers, and the run ledger,
// with figure and vertex-table export on demand. It renders everything
// server-side, so the browser only ever requests pages and PNGs.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/bids"
	_ "github.com/neuroviz/neuroviz/compileinfoprint"
	"github.com/neuroviz/neuroviz/config"
	"github.com/neuroviz/neuroviz/export"
	"github.com/neuroviz/neuroviz/runlog"
)

var global *Global

func main() {
	errors := make(chan error, 1)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig,
		os.Interrupt,
		os.Kill,
		syscall.SIGTERM,
		syscall.SIGUSR1,
	)

	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to the project YAML settings file.")
	flag.Parse()

	if configPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Println(err)
		os.Exit(neuroviz.ExitCode(err))
	}
	log.Println(cfg.Describe())

	layout, err := bids.NewLayout(cfg)
	if err != nil {
		log.Println(err)
		os.Exit(neuroviz.ExitCode(err))
	}

	exporter, err := export.NewExporter(cfg)
	if err != nil {
		log.Println(err)
		os.Exit(neuroviz.ExitCode(err))
	}

	// Viewing works without the ledger; the index page just loses its run
	// history table.
	ledger, err := runlog.Open(layout.RunLogPath())
	if err != nil {
		log.Println(err)
		ledger = nil
	}
	defer ledger.Close()

	global = &Global{
		log:  log.New(os.Stderr, log.Prefix(), log.Ldate|log.Ltime),
		Site: "Neuroviz",

		cfg:      cfg,
		layout:   layout,
		exporter: exporter,
		ledger:   ledger,
	}

	global.log.Println("Launching", global.Site)

	go func() {
		global.log.Printf("Serving on http://%s\n", cfg.GUI.Listen)
		if err := http.ListenAndServe(cfg.GUI.Listen, router(global)); err != nil {
			errors <- err
			global.log.Println(err)
			sig <- syscall.SIGTERM
			return
		}
	}()

Outer:
	for {
		select {
		case sigl := <-sig:
			if sigl == syscall.SIGUSR1 {
				SigStatus()
				continue
			}

			// By default, exit
			global.log.Printf("\nExit: %s\n", sigl.String())

			break Outer

		case err := <-errors:
			if err == nil {
				global.log.Println("Finished")
				break Outer
			}

			// Return a status code indicating failure
			global.log.Println("Exiting due to error", err)
			os.Exit(1)
		}
	}
}

func SigStatus() {
	global.log.Println("There are", runtime.NumGoroutine(), "goroutines running")
}
