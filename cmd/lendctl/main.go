package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"lendledger/config"
	"lendledger/core/journal"
	"lendledger/core/txn"
	"lendledger/native/lending"
	"lendledger/observability"
	"lendledger/observability/logging"
	"lendledger/observability/otel"
	"lendledger/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "Path to node configuration file")
	scenarioPath := flag.String("scenario", "", "Path to the YAML scenario to replay")
	memory := flag.Bool("memory", false, "Replay against an in-memory ledger and journal")
	flag.Parse()

	if err := run(*configPath, *scenarioPath, *memory); err != nil {
		fmt.Fprintf(os.Stderr, "lendctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, scenarioPath string, memory bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if memory {
		cfg.Storage = config.Storage{Backend: storage.BackendMemory}
		cfg.Journal.DSN = journal.MemoryDSN()
	}
	sc, err := LoadScenario(scenarioPath)
	if err != nil {
		return err
	}

	logger, logSink := logging.SetupWithFile(cfg.LoggingOptions())
	defer logSink.Close()

	ctx := context.Background()
	shutdown, err := otel.Init(ctx, cfg.TelemetryConfig())
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	proc, closeLedger, err := openLedger(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	report, runErr := newRunner(sc, proc).Run(ctx)
	if report != nil {
		output, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		fmt.Println(string(output))
	}
	return runErr
}

// openLedger wires storage, the engine, the journal and metrics into a
// transaction processor.
func openLedger(cfg *config.Config, logger *slog.Logger) (*txn.Processor, func(), error) {
	db, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	closers := []func(){db.Close}

	engine := lending.NewEngine(cfg.Lending)
	engine.SetPauses(cfg.PauseSet())
	engine.SetLogger(logger)
	engine.SetMetrics(observability.Lending())

	proc := txn.NewProcessor(db, engine)
	proc.SetLogger(logger)
	proc.SetMetrics(observability.Transactions())
	proc.SetEmitter(observability.Events())

	if dsn := strings.TrimSpace(cfg.Journal.DSN); dsn != "" {
		j, err := journal.Open(dsn)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		proc.SetHistory(j)
		closers = append(closers, func() { _ = j.Close() })
	}

	return proc, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}
