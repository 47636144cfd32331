// Package daemon implements the daemon lifecycle manager.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"firestige.xyz/vlanswitch/internal/api"
	"firestige.xyz/vlanswitch/internal/command"
	"firestige.xyz/vlanswitch/internal/config"
	"firestige.xyz/vlanswitch/internal/controller"
	"firestige.xyz/vlanswitch/internal/dispatch"
	"firestige.xyz/vlanswitch/internal/ingress"
	logpkg "firestige.xyz/vlanswitch/internal/log"
	"firestige.xyz/vlanswitch/internal/metrics"
	"firestige.xyz/vlanswitch/internal/store"
	"firestige.xyz/vlanswitch/internal/topology"
)

// Daemon manages the vlanswitch daemon process lifecycle.
type Daemon struct {
	// Configuration
	config     *config.GlobalConfig
	configPath string
	socketPath string
	pidFile    string

	// Core components
	controller    *controller.Controller
	dispatcher    *dispatch.Multi
	cmdHandler    *command.CommandHandler
	udsServer     *command.UDSServer
	kafkaConsumer *command.KafkaCommandConsumer // nil if command channel disabled
	eventConsumer *ingress.KafkaEventConsumer   // nil if events topic disabled
	apiServer     *api.Server                   // nil if api disabled
	metricsServer *metrics.Server               // nil if metrics disabled

	// Lifecycle management
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownChan chan struct{}
	sigChan      chan os.Signal
	stopOnce     sync.Once
}

// New creates a new Daemon instance. Empty socketPath or pidFile fall back
// to the control section of the configuration.
func New(configPath, socketPath, pidFile string) (*Daemon, error) {
	globalConfig, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if socketPath == "" {
		socketPath = globalConfig.Control.Socket
	}
	if pidFile == "" {
		pidFile = globalConfig.Control.PIDFile
	}

	d := &Daemon{
		config:       globalConfig,
		configPath:   configPath,
		socketPath:   socketPath,
		pidFile:      pidFile,
		shutdownChan: make(chan struct{}, 1),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())

	return d, nil
}

// Start initializes and starts all daemon components.
func (d *Daemon) Start() error {
	// 1. Initialize logging system
	if err := d.initLogging(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	slog.Info("starting vlanswitch daemon",
		"version", command.Version,
		"hostname", d.config.Node.Hostname,
		"config", d.configPath,
		"socket", d.socketPath,
	)

	// 2. Build the controller before anything can submit events
	if err := d.buildController(); err != nil {
		return err
	}

	// 3. Write PID file
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	// 4. Start metrics server
	if err := d.startMetrics(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 5. Create command handler
	d.cmdHandler = command.NewCommandHandler(d.controller, d)
	d.cmdHandler.SetShutdownFunc(func() {
		slog.Info("shutdown triggered via daemon_shutdown command")
		d.TriggerShutdown()
	})

	// 6. Start UDS server for CLI control and switch events
	d.udsServer = command.NewUDSServer(d.socketPath, d.cmdHandler)
	go func() {
		if err := d.udsServer.Start(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("uds server failed", "error", err)
		}
	}()

	// 7. Optional transports. Failures are non-fatal: the UDS socket still works.
	if d.config.CommandChannel.Enabled && d.config.CommandChannel.Type == "kafka" {
		if err := d.startKafkaConsumer(); err != nil {
			slog.Error("failed to start kafka command consumer", "error", err)
		}
	}
	if d.config.Events.Kafka.Enabled {
		if err := d.startEventConsumer(); err != nil {
			slog.Error("failed to start kafka event consumer", "error", err)
		}
	}
	if d.config.API.Enabled {
		if err := d.startAPI(); err != nil {
			slog.Error("failed to start api server", "error", err)
		}
	}

	slog.Info("daemon started successfully")
	return nil
}

// buildController loads the topology and wires the tables to the dispatcher.
func (d *Daemon) buildController() error {
	defs, err := d.config.VLANDefs()
	if err != nil {
		return fmt.Errorf("failed to load topology: %w", err)
	}
	table, err := topology.New(defs)
	if err != nil {
		return fmt.Errorf("invalid topology: %w", err)
	}

	bindings, err := store.Open(d.config.Bindings)
	if err != nil {
		return fmt.Errorf("failed to open bindings store: %w", err)
	}

	dispatcher, err := dispatch.New(d.config.Dispatch, d.config.Node.Hostname)
	if err != nil {
		_ = bindings.Close()
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	partitions := d.config.Engine.Partitions
	if partitions == 0 {
		partitions = runtime.GOMAXPROCS(0)
	}

	ctrl, err := controller.New(table, bindings, dispatcher, controller.Options{
		Partitions: partitions,
		QueueSize:  d.config.Engine.QueueSize,
	})
	if err != nil {
		_ = dispatcher.Close()
		_ = bindings.Close()
		return fmt.Errorf("failed to create controller: %w", err)
	}

	d.dispatcher = dispatcher
	d.controller = ctrl
	slog.Info("controller built",
		"vlans", table.Len(),
		"bindings_store", d.config.Bindings.Store,
		"sinks", dispatcher.Sinks(),
		"partitions", partitions,
	)
	return nil
}

// Stop performs graceful shutdown of all daemon components. Only the first
// call has an effect.
func (d *Daemon) Stop() {
	d.stopOnce.Do(d.stop)
}

func (d *Daemon) stop() {
	slog.Info("initiating graceful shutdown")

	// 1. Stop inbound transports first (no new events or commands)
	if d.eventConsumer != nil {
		slog.Info("stopping kafka event consumer")
		if err := d.eventConsumer.Stop(); err != nil {
			slog.Error("error stopping kafka event consumer", "error", err)
		}
	}
	if d.kafkaConsumer != nil {
		slog.Info("stopping kafka command consumer")
		if err := d.kafkaConsumer.Stop(); err != nil {
			slog.Error("error stopping kafka consumer", "error", err)
		}
	}
	if d.udsServer != nil {
		slog.Info("stopping uds server")
		if err := d.udsServer.Stop(); err != nil {
			slog.Error("error stopping uds server", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if d.apiServer != nil {
		slog.Info("stopping api server")
		if err := d.apiServer.Stop(shutdownCtx); err != nil {
			slog.Error("error stopping api server", "error", err)
		}
	}

	// 2. Drain queued events, then flush the dispatcher
	if d.controller != nil {
		slog.Info("draining controller")
		if err := d.controller.Close(); err != nil {
			slog.Error("error closing controller", "error", err)
		}
	}
	if d.dispatcher != nil {
		if err := d.dispatcher.Close(); err != nil {
			slog.Error("error closing dispatcher", "error", err)
		}
	}

	// 3. Stop metrics server
	if d.metricsServer != nil {
		slog.Info("stopping metrics server")
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			slog.Error("error stopping metrics server", "error", err)
		}
	}

	// 4. Cancel context to signal all goroutines
	d.cancel()

	// 5. Unregister signal handler to prevent goroutine leak
	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}

	// 6. Remove PID file
	if err := d.removePIDFile(); err != nil {
		slog.Error("error removing PID file", "error", err)
	}

	slog.Info("daemon stopped gracefully")

	// 7. Flush logs
	if err := logpkg.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log outputs: %v\n", err)
	}
}

// Run runs the daemon main loop, blocking until shutdown is triggered.
// Shutdown can be triggered by:
//  1. OS signals (SIGTERM, SIGINT)
//  2. daemon_shutdown command via UDS/Kafka
//
// SIGHUP triggers a config reload.
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	slog.Info("daemon running, waiting for signals or commands")

	for {
		select {
		case sig := <-d.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				slog.Info("received shutdown signal", "signal", sig)
				d.Stop()
				return nil

			case syscall.SIGHUP:
				slog.Info("received reload signal")
				if err := d.Reload(); err != nil {
					slog.Error("failed to reload config", "error", err)
				}
			}

		case <-d.shutdownChan:
			slog.Info("shutdown triggered by command")
			d.Stop()
			return nil

		case <-d.ctx.Done():
			slog.Info("context cancelled", "error", d.ctx.Err())
			d.Stop()
			return d.ctx.Err()
		}
	}
}

// Reload reloads the global configuration.
// Hot-reloadable: log level/format/outputs.
// Cold (requires restart): node.hostname, topology, dispatch sinks,
// bindings store, listen addresses.
// Implements ConfigReloader interface for CommandHandler.
func (d *Daemon) Reload() error {
	slog.Info("reloading configuration", "path", d.configPath)

	newConfig, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	oldConfig := d.config
	hotReloaded := []string{}

	// 1. Re-initialize logging with new config
	if err := logpkg.Init(newConfig.Log); err != nil {
		slog.Error("failed to reinitialize logging", "error", err)
	} else if !reflect.DeepEqual(newConfig.Log, oldConfig.Log) {
		hotReloaded = append(hotReloaded, "log")
	}

	// 2. Warn about cold-reload items that changed
	requiresRestart := []string{}
	if newConfig.Node.Hostname != oldConfig.Node.Hostname {
		requiresRestart = append(requiresRestart, "node.hostname")
	}
	if !reflect.DeepEqual(newConfig.Topology, oldConfig.Topology) {
		requiresRestart = append(requiresRestart, "topology")
	}
	if !reflect.DeepEqual(newConfig.Dispatch, oldConfig.Dispatch) {
		requiresRestart = append(requiresRestart, "dispatch")
	}
	if newConfig.Bindings != oldConfig.Bindings {
		requiresRestart = append(requiresRestart, "bindings")
	}
	if newConfig.Metrics.Listen != oldConfig.Metrics.Listen {
		requiresRestart = append(requiresRestart, "metrics.listen")
	}
	if newConfig.API.Listen != oldConfig.API.Listen {
		requiresRestart = append(requiresRestart, "api.listen")
	}

	d.config = newConfig

	slog.Info("configuration reloaded",
		"hot_reloaded", hotReloaded,
		"requires_restart", requiresRestart,
	)

	return nil
}

// TriggerShutdown triggers graceful shutdown from external caller (e.g., daemon_shutdown command).
func (d *Daemon) TriggerShutdown() {
	select {
	case d.shutdownChan <- struct{}{}:
	default:
		// already pending
	}
}

// initLogging initializes the logging system from config.
func (d *Daemon) initLogging() error {
	if err := logpkg.Init(d.config.Log); err != nil {
		return err
	}

	slog.Debug("logging initialized",
		"level", d.config.Log.Level,
		"format", d.config.Log.Format,
	)

	return nil
}

// startKafkaConsumer starts the Kafka command consumer in background.
func (d *Daemon) startKafkaConsumer() error {
	consumer, err := command.NewKafkaCommandConsumer(
		d.config.CommandChannel,
		d.config.Node.Hostname,
		d.cmdHandler,
	)
	if err != nil {
		return fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	d.kafkaConsumer = consumer

	go func() {
		if err := consumer.Start(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("kafka consumer stopped with error", "error", err)
		}
	}()

	return nil
}

// startEventConsumer starts the Kafka switch event consumer in background.
func (d *Daemon) startEventConsumer() error {
	consumer, err := ingress.NewKafkaEventConsumer(d.config.Events.Kafka, d.controller)
	if err != nil {
		return fmt.Errorf("failed to create kafka event consumer: %w", err)
	}

	d.eventConsumer = consumer

	go func() {
		if err := consumer.Start(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("kafka event consumer stopped with error", "error", err)
		}
	}()

	return nil
}

// startAPI starts the REST API server.
func (d *Daemon) startAPI() error {
	srv := api.NewServer(d.config.API.Listen, d.controller)
	if err := srv.Start(d.ctx); err != nil {
		return err
	}
	d.apiServer = srv
	return nil
}

// startMetrics starts the metrics HTTP server if enabled.
func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		slog.Info("metrics server disabled")
		return nil
	}

	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	if err := d.metricsServer.Start(d.ctx); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	return nil
}

// writePIDFile writes the current process ID to the PID file.
func (d *Daemon) writePIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	pid := os.Getpid()
	data := []byte(strconv.Itoa(pid) + "\n")

	if err := os.WriteFile(d.pidFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", d.pidFile, err)
	}

	slog.Debug("PID file written", "path", d.pidFile, "pid", pid)
	return nil
}

// removePIDFile removes the PID file.
func (d *Daemon) removePIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", d.pidFile, err)
	}

	slog.Debug("PID file removed", "path", d.pidFile)
	return nil
}
