package cmd

import (
	"fmt"
	"time"

	"github.com/grovetools/booth/command"
	"github.com/grovetools/booth/config"
	"github.com/grovetools/booth/internal/daemon/coordinator"
	"github.com/grovetools/booth/internal/daemon/engine"
	"github.com/grovetools/booth/internal/daemon/netmon"
	"github.com/grovetools/booth/internal/daemon/orchestrator"
	"github.com/grovetools/booth/internal/daemon/queue"
	"github.com/grovetools/booth/internal/daemon/reconciler"
	"github.com/grovetools/booth/internal/daemon/reload"
	"github.com/grovetools/booth/internal/daemon/server"
	"github.com/grovetools/booth/internal/daemon/store"
	"github.com/grovetools/booth/logging"
	"github.com/grovetools/booth/pkg/camera"
	"github.com/grovetools/booth/pkg/netprobe"
	"github.com/grovetools/booth/pkg/upload"
	"github.com/sirupsen/logrus"
)

const reloadDebounce = 250 * time.Millisecond

// daemon holds every long-lived component of a running boothd.
type daemon struct {
	store    *store.Store
	queue    *queue.Queue
	monitor  *netmon.Monitor
	recon    *reconciler.Reconciler
	orch     *orchestrator.Orchestrator
	reloader *reload.Reloader
	engine   *engine.Engine
	server   *server.Server
}

// openPersister returns the queue backend named by the config.
func openPersister(cfg *config.Config) (queue.Persister, error) {
	switch cfg.Queue.Backend {
	case "", "file":
		return queue.NewFilePersister(cfg.Queue.Path), nil
	case "sqlite":
		return queue.OpenSQLitePersister(cfg.Queue.Path)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

// newProber returns the connectivity probe named by the config.
func newProber(cfg *config.Config, builder *command.SafeBuilder) netmon.Prober {
	n := cfg.Network
	if n.Probe == "tcp" {
		return netprobe.NewTCPProber(builder, n.TCPAddress, n.SSIDCommand)
	}
	return netprobe.NewCommandProber(builder, n.PingHost, n.SSIDCommand)
}

// buildDaemon wires the components for cfg. Nothing runs until the engine
// is started and the server is listening.
func buildDaemon(cfg *config.Config) (*daemon, error) {
	persister, err := openPersister(cfg)
	if err != nil {
		return nil, err
	}

	builder := command.NewSafeBuilder()
	d := &daemon{
		store: store.New(),
		queue: queue.Open(persister, logging.NewLogger("queue")),
	}

	d.monitor = netmon.New(newProber(cfg, builder), reload.NetmonOptions(cfg), logging.NewLogger("netmon"))

	uploader := upload.New(reload.UploadOptions(cfg), logging.NewLogger("upload"))
	coord := coordinator.New(d.store, d.queue, d.monitor, uploader, logging.NewLogger("coordinator"))
	d.recon = reconciler.New(d.store, d.queue, d.monitor, coord, reload.ReconcilerOptions(cfg), logging.NewLogger("reconciler"))

	cam := camera.New(reload.CameraOptions(cfg), builder, logging.NewLogger("camera"))
	d.orch = orchestrator.New(d.store, d.queue, d.monitor, cam, coord, reload.OrchestratorOptions(cfg), logging.NewLogger("orchestrator"))

	d.reloader = reload.New(cfg, reloadDebounce, logging.NewLogger("config-watcher"))
	d.reloader.OnApply(func(next *config.Config) {
		logging.Reset()
		d.monitor.SetOptions(reload.NetmonOptions(next))
		d.recon.SetOptions(reload.ReconcilerOptions(next))
		d.orch.SetOptions(reload.OrchestratorOptions(next))
		cam.SetOptions(reload.CameraOptions(next))
		uploader.SetOptions(reload.UploadOptions(next))
	})

	d.engine = engine.New(d.store, logging.NewLogger("engine"))
	d.engine.Register(d.monitor)
	d.engine.Register(d.recon)
	d.engine.Register(d.reloader)

	d.server = server.New(server.Deps{
		Store:    d.store,
		Queue:    d.queue,
		Network:  d.monitor,
		Capturer: d.orch,
		Flusher:  d.recon,
		Settings: d.reloader,
		Workers:  d.engine.Workers(),
	}, logging.NewLogger("server"))

	return d, nil
}

// logStartup records the effective configuration once at boot.
func logStartup(logger *logrus.Entry, cfg *config.Config, d *daemon) {
	logger.WithFields(logrus.Fields{
		"config":   cfg.Path(),
		"queue":    d.queue.Location(),
		"pending":  d.queue.Len(),
		"socket":   cfg.Server.Socket,
		"addr":     cfg.Server.Addr,
		"workers":  d.engine.Workers(),
		"uploadTo": cfg.Upload.Endpoint,
	}).Info("Daemon configured")
}
