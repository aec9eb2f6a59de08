// Package cmdutil wires the operator CLI's commands to an in-process
// capsule storage core: it opens the configured storeprim backend and
// the Capsule/Blob/Upload components directly, talking to them as a
// library rather than over a transport.
package cmdutil

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/novabloom/capsulecore/pkg/blob"
	"github.com/novabloom/capsulecore/pkg/capsule"
	"github.com/novabloom/capsulecore/pkg/config"
	"github.com/novabloom/capsulecore/pkg/metrics"
	"github.com/novabloom/capsulecore/pkg/storeprim"
	"github.com/novabloom/capsulecore/pkg/upload"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values bound in root.go's
// PersistentPreRunE.
type GlobalFlags struct {
	ConfigPath string
	Output     string
	NoColor    bool
}

// Core bundles the components an operator command inspects or
// mutates. It owns the storeprim.Manager's lifetime.
type Core struct {
	Manager  *storeprim.Manager
	Capsules capsule.Store
	Blobs    blob.Store
	Uploads  *upload.Manager
	Config   *config.Config
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
}

// OpenCore loads configuration from Flags.ConfigPath and wires up the
// components it selects. Callers MUST call Close when done.
func OpenCore() (*Core, error) {
	cfg, err := config.Load(Flags.ConfigPath)
	if err != nil {
		return nil, err
	}

	var backend storeprim.Backend
	if cfg.Storage.Backend == "memory" {
		backend = storeprim.NewVolatileBackend()
	} else {
		backend, err = storeprim.OpenBadgerBackend(cfg.Storage.BadgerPath)
		if err != nil {
			return nil, err
		}
	}

	mgr, err := storeprim.Init(backend)
	if err != nil {
		return nil, err
	}

	clock := func() int64 { return time.Now().UnixNano() }

	var capsules capsule.Store
	var blobs blob.Store
	if cfg.Storage.Backend == "memory" {
		capsules = capsule.NewMemoryStore()
		blobs = blob.NewMemoryStore(clock)
	} else {
		capsules, err = capsule.NewPersistentStore(mgr)
		if err != nil {
			return nil, err
		}
		blobs, err = blob.NewPersistentStore(mgr, clock)
		if err != nil {
			return nil, err
		}
	}

	uploads, err := upload.NewManager(mgr, capsules, blobs, cfg.Session.TTL, clock)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewMetrics(registry)
	metrics.SetGlobalMetrics(collector)
	if withMetrics, ok := blobs.(interface{ SetMetrics(*metrics.Metrics) }); ok {
		withMetrics.SetMetrics(collector)
	}
	uploads.SetMetrics(collector)

	return &Core{Manager: mgr, Capsules: capsules, Blobs: blobs, Uploads: uploads, Config: cfg, Metrics: collector, Registry: registry}, nil
}

// Close releases the underlying storeprim backend.
func (c *Core) Close() error {
	return c.Manager.Close()
}
