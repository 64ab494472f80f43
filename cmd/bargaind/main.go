package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tolmol-io/tolmol/internal/config"
	"github.com/tolmol-io/tolmol/internal/discovery"
	"github.com/tolmol-io/tolmol/internal/logbuf"
	"github.com/tolmol-io/tolmol/internal/notify"
	"github.com/tolmol-io/tolmol/internal/phone"
	"github.com/tolmol-io/tolmol/internal/safety"
	"github.com/tolmol-io/tolmol/internal/store"
	"github.com/tolmol-io/tolmol/internal/sweeper"
	"github.com/tolmol-io/tolmol/internal/tactics"
	"github.com/tolmol-io/tolmol/internal/telephony"
	"github.com/tolmol-io/tolmol/internal/trip"
)

const defaultLogBuffer = 1000

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	boot := slog.New(jsonHandler)

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		boot.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	bufSize := cfg.Daemon.LogBuffer
	if bufSize <= 0 {
		bufSize = defaultLogBuffer
	}
	logBuf := logbuf.New(bufSize)
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))
	slog.SetDefault(logger)

	logger.Info("bargaind starting", "data_dir", cfg.Daemon.DataDir)

	os.MkdirAll(cfg.Daemon.DataDir, 0o755)
	st, err := store.NewSQLiteStore(cfg.Daemon.DBPath())
	if err != nil {
		logger.Error("failed to open store", "path", cfg.Daemon.DBPath(), "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Drain the log ring into the database so bargainctl can tail it.
	flusher := &logbuf.Flusher{Buf: logBuf, Sink: st, Logger: boot}
	go flusher.Run(ctx)

	sources := buildSources(cfg, logger)
	dialer := buildDialer(cfg, logger)

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.Telegram != nil {
		tg, err := notify.NewTelegram(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID,
			logger.With("component", "notify"))
		if err != nil {
			logger.Error("failed to init telegram notifier", "error", err)
			os.Exit(1)
		}
		notifier = tg
	}

	orch := &trip.Orchestrator{
		Store:    st,
		Sources:  sources,
		Dialer:   dialer,
		Tactics:  tactics.NewBuiltin(),
		Notifier: notifier,
		Logger:   logger,

		Normalizer: phone.Normalizer{CountryCode: cfg.Daemon.CountryCode},
		Classifier: safety.Classifier{
			MinSample:       cfg.Safety.MinSample,
			LowSuccessRate:  cfg.Safety.LowSuccessRate,
			FairSuccessRate: cfg.Safety.FairSuccessRate,
		},
		MaxRounds:           cfg.Negotiation.MaxRounds,
		MaxConcurrentCalls:  cfg.Negotiation.MaxConcurrentCalls,
		DialRetries:         cfg.Negotiation.DialRetries,
		SessionTimeout:      time.Duration(cfg.Negotiation.SessionTimeout) * time.Second,
		HeuristicMarketRate: cfg.Discovery.HeuristicMarketRate,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	sw := sweeper.New(st, orch.Run, logger.With("component", "sweeper"))
	if err := sw.Start(ctx, cfg.Sweeper.Schedule); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("sweeper failed", "error", err)
		os.Exit(1)
	}

	logger.Info("bargaind stopped")
}

func buildSources(cfg *config.Config, logger *slog.Logger) []discovery.Source {
	var sources []discovery.Source
	if cfg.Discovery.Simulated {
		sources = append(sources, discovery.SimulatedSources()...)
	}
	for _, d := range cfg.Discovery.Directories {
		sources = append(sources, &discovery.WebDirectory{SourceName: d.Name, URL: d.URL})
		logger.Info("web directory registered", "name", d.Name)
	}
	if len(sources) == 0 {
		logger.Warn("no discovery sources configured, falling back to simulated directories")
		sources = discovery.SimulatedSources()
	}
	return sources
}

func buildDialer(cfg *config.Config, logger *slog.Logger) telephony.Dialer {
	if cfg.Telephony.BridgeURL != "" {
		logger.Info("telephony bridge configured", "url", cfg.Telephony.BridgeURL)
		return &telephony.WSDialer{BridgeURL: cfg.Telephony.BridgeURL}
	}
	logger.Warn("no telephony bridge configured, using simulated vendors")
	return telephony.NewScriptedDialer(demoScripts())
}

// demoScripts answer for the simulated directory vendors so a bridge-less
// install can run trips end to end.
func demoScripts() map[string]telephony.Script {
	return map[string]telephony.Script{
		"+919876543210": {Answer: true, Replies: []string{
			"haan ji boliye",
			"haan available hai",
			"3500 lagega",
			"3200 se kam nahi",
			"accha theek hai, 2900 final",
			"haan pakka, done",
		}},
		"+919876543211": {Answer: true, Replies: []string{
			"haan boliye",
			"us week sab booked hai, nahi milega",
		}},
		"+919876543212": {Answer: false},
	}
}
