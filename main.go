// Fitness Guide: live exercise analysis server
//
// Responsibilities:
//   - UDP :4210  → receive pose landmark frames from the camera pipeline
//   - BLE        → optionally stream landmark packets from a pose sensor
//   - Analysis   → rep counting, form feedback, fatigue, calories, punch speed
//   - WebSocket :8080/ws → broadcast session state and announcements
//   - HTTP :8080/api     → session REST API, /metrics for Prometheus
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/analytics"
	"github.com/ElectrobladeIsADev/fitnessguide/announce"
	"github.com/ElectrobladeIsADev/fitnessguide/ble"
	"github.com/ElectrobladeIsADev/fitnessguide/config"
	"github.com/ElectrobladeIsADev/fitnessguide/hub"
	"github.com/ElectrobladeIsADev/fitnessguide/ingest"
	"github.com/ElectrobladeIsADev/fitnessguide/logging"
	"github.com/ElectrobladeIsADev/fitnessguide/metrics"
	"github.com/ElectrobladeIsADev/fitnessguide/pose"
	"github.com/ElectrobladeIsADev/fitnessguide/server"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const (
	tickInterval    = time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.Log.File,
		LogToStdout:   cfg.Log.Stdout,
		LogLevel:      cfg.Log.Level,
		LogFormatJSON: cfg.Log.JSON,
	})

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
	log.Info("bye")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ─── Analysis core ───────────────────────────────────────────────────────

	table, err := cfg.Table()
	if err != nil {
		return err
	}
	settings, err := cfg.Settings(table)
	if err != nil {
		return err
	}
	analyzer, err := analytics.NewAnalyzer(table, settings)
	if err != nil {
		return err
	}

	instr := metrics.NewInstrumentation("fitnessguide", "analyzer")
	wsHub := hub.New(cfg.HTTP.AllowedOrigins...)
	wsHub.SetSnapshot(analyzer.GetState)
	announcer := announce.NewAnnouncer(announce.DefaultQueueSize, announce.LogSink{}, wsHub)

	analyzer.SetStateHandler(wsHub.BroadcastState)
	analyzer.SetFrameHandler(instr.ObserveFrame)
	analyzer.SetEventHandler(func(ev analytics.Event) {
		instr.ObserveEvent(ev)
		announcer.Notify(ev)
	})

	// ─── Ingest ──────────────────────────────────────────────────────────────

	box := ingest.NewMailbox()
	instr.WatchDrops("ingest", "Frames overwritten before the analyzer consumed them", box.Dropped)
	instr.WatchDrops("announce", "Announcements dropped on a full queue", announcer.Dropped)

	udp, err := ingest.ListenUDP(cfg.UDP.Addr, box)
	if err != nil {
		return err
	}
	log.Infof("UDP listening on %s", udp.Addr())

	srv := server.New(analyzer, table, wsHub, instr, prometheus.DefaultGatherer)

	var wg sync.WaitGroup
	goRun := func(name string, fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				log.WithError(err).Errorf("%s stopped", name)
				cancel()
			}
		}()
	}

	goRun("udp listener", udp.Run)
	goRun("frame pump", ingest.NewPump(box, analyzer).Run)
	goRun("announcer", func(ctx context.Context) error {
		announcer.Run(ctx)
		return nil
	})
	// Ticker: broadcast elapsed time every second
	goRun("ticker", func(ctx context.Context) error {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				analyzer.BroadcastTick()
			}
		}
	})

	if cfg.BLE.Enabled {
		central := ble.NewCentral(cfg.BLE.DeviceName)
		if err := central.Enable(); err != nil {
			log.WithError(err).Error("BLE unavailable, continuing with UDP only")
		} else {
			central.SetFrameHandler(func(frame *pose.LandmarkFrame) {
				box.Publish(ingest.Sample{Frame: frame, Source: "ble", Received: time.Now()})
			})
			srv.SetSensorStats(func() any { return central.Stats() })
			scanner := ble.NewScanner(central, ble.ScanConfig{
				ScanTimeout:   cfg.BLE.ScanTimeout,
				RetryDelay:    cfg.BLE.RetryDelay,
				ScanInterval:  cfg.BLE.ScanInterval,
				AutoReconnect: true,
			})
			goRun("ble scanner", func(ctx context.Context) error {
				scanner.Run(ctx)
				return nil
			})
		}
	}

	// ─── HTTP ────────────────────────────────────────────────────────────────

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Infof("HTTP/WS server on %s", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
		close(serveErr)
	}()

	log.WithFields(log.Fields{
		"exercise": settings.Exercise,
		"ble":      cfg.BLE.Enabled,
	}).Info("fitness guide ready")

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	wsHub.Close()
	shutdownErr := httpServer.Shutdown(shutdownCtx)
	box.Close()
	wg.Wait()

	return multierr.Combine(<-serveErr, shutdownErr)
}
