// Command sitesense starts the website audit API server.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sitesense/sitesense/internal/logging"
	"github.com/sitesense/sitesense/internal/server"
	"github.com/sitesense/sitesense/internal/webclient"
)

func main() {
	addr := flag.String("addr", ":3001", "HTTP listen address")
	storage := flag.String("storage", "~/.sitesense", "storage root for scan artifacts and the registry database")
	persist := flag.Bool("persist", false, "keep scan history in SQLite instead of memory")
	backend := flag.String("backend", "nethttp", "webclient backend: nethttp or chromedp")
	flag.Parse()

	logger := logging.NewStdoutLogger("SiteSense")

	wcCfg := webclient.DefaultConfig()
	wcCfg.Backend = webclient.Backend(*backend)

	srv, err := server.NewServer(server.Config{
		ListenAddr:  *addr,
		StorageRoot: *storage,
		Persist:     *persist,
		WebClient:   wcCfg,
		Logger:      logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer srv.Close()

	logger.Info("listening", logging.Field{Key: "addr", Value: *addr})
	if err := srv.HTTPServer().ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
