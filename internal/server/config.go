package server

import (
	"github.com/sitesense/sitesense/internal/logging"
	"github.com/sitesense/sitesense/internal/orchestrator"
	"github.com/sitesense/sitesense/internal/webclient"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// StorageRoot is where scan artifacts (and the registry database when
	// Persist is set) are written. Supports ~ expansion.
	StorageRoot string

	// Persist switches the scan registry from in-memory to SQLite at
	// <StorageRoot>/scans.db, keeping history across restarts.
	Persist bool

	// ScanConfig bounds each scan's pipeline; nil uses defaults.
	ScanConfig *orchestrator.Config

	// WebClient selects the fetch backend for the built-in adapters.
	WebClient webclient.Config

	// Logger defaults to a stdout JSON logger when nil.
	Logger logging.Logger

	// Adapters overrides the built-in audit adapters; nil wires the
	// defaults (spider + the built-in auditors). Tests inject stubs here.
	Adapters *orchestrator.Adapters
}
