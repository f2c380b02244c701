package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openclear/guardrail/internal/audit"
	"github.com/openclear/guardrail/internal/compliance"
	"github.com/openclear/guardrail/internal/config"
	"github.com/openclear/guardrail/internal/database"
	"github.com/openclear/guardrail/internal/evaluation"
	"github.com/openclear/guardrail/internal/history"
	"github.com/openclear/guardrail/internal/observability"
	"github.com/openclear/guardrail/internal/risk"
	"github.com/openclear/guardrail/internal/screening"
	"github.com/openclear/guardrail/internal/stream"
	"github.com/openclear/guardrail/pkg/logger"
	"github.com/openclear/guardrail/pkg/models"
)

func main() {
	configPath := flag.String("config", "", "path to service configuration yaml")
	inputPath := flag.String("input", "", "proposed transaction JSONL file, - for stdin")
	seedPath := flag.String("seed", "", "transaction history JSONL file to preload")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	svcCfg, err := config.LoadService(*configPath)
	if err != nil {
		log.Fatalf("Failed to load service configuration: %v", err)
	}

	zapLogger, err := logger.New(svcCfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	policy := config.DefaultConfig()
	if svcCfg.PolicyPath != "" {
		policy, err = config.Load(svcCfg.PolicyPath)
		if err != nil {
			zapLogger.Fatal("Failed to load policy configuration", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, svcCfg.Tracing.ServiceName, svcCfg.Tracing.Enabled, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	obs, err := observability.NewManager(zapLogger, nil)
	if err != nil {
		zapLogger.Fatal("Failed to create observability manager", zap.Error(err))
	}

	// Transaction history store: Postgres when a DSN is configured,
	// in-memory otherwise.
	var (
		provider history.Provider
		db       *gorm.DB
		addTxn   func(models.Transaction) error
	)
	if svcCfg.DatabaseDSN != "" {
		db, err = database.NewPostgres(svcCfg.DatabaseDSN, 0, 0, 0)
		if err != nil {
			zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		sqlStore, err := history.NewSQLStore(db)
		if err != nil {
			zapLogger.Fatal("Failed to create history store", zap.Error(err))
		}
		if err := sqlStore.Migrate(); err != nil {
			zapLogger.Fatal("Failed to migrate history store", zap.Error(err))
		}
		provider = sqlStore
		addTxn = func(txn models.Transaction) error {
			return sqlStore.Record(ctx, &txn)
		}
	} else {
		memStore := history.NewMemoryStore()
		provider = memStore
		addTxn = memStore.Add
	}

	if *seedPath != "" {
		count, err := seedHistory(*seedPath, addTxn)
		if err != nil {
			zapLogger.Fatal("Failed to seed transaction history", zap.Error(err))
		}
		zapLogger.Info("seeded transaction history", zap.Int("count", count))
	}

	screener, err := screening.NewScreener(zapLogger.Sugar(), policy.Screening)
	if err != nil {
		zapLogger.Fatal("Failed to create screener", zap.Error(err))
	}
	assessor, err := risk.NewAssessor(zapLogger, provider, screener, policy.Risk, nil)
	if err != nil {
		zapLogger.Fatal("Failed to create risk assessor", zap.Error(err))
	}
	monitor, err := compliance.NewMonitor(zapLogger, provider, policy.Limits, policy.AML, nil)
	if err != nil {
		zapLogger.Fatal("Failed to create compliance monitor", zap.Error(err))
	}

	// Audit trail: log sink always, store sink with a database, Kafka
	// sink when streaming is enabled.
	logSink, err := audit.NewLogSink(zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create audit log sink", zap.Error(err))
	}
	sinks := []audit.Sink{logSink}
	if db != nil {
		storeSink, err := audit.NewStoreSink(db)
		if err != nil {
			zapLogger.Fatal("Failed to create audit store sink", zap.Error(err))
		}
		sinks = append(sinks, storeSink)
	}
	var kafkaSink *audit.KafkaSink
	if svcCfg.Kafka.Enabled {
		kafkaCfg := audit.DefaultKafkaConfig()
		kafkaCfg.Brokers = svcCfg.Kafka.Brokers
		kafkaCfg.Topic = svcCfg.Kafka.AuditTopic
		kafkaSink, err = audit.NewKafkaSink(zapLogger, kafkaCfg)
		if err != nil {
			zapLogger.Fatal("Failed to create audit Kafka sink", zap.Error(err))
		}
		sinks = append(sinks, kafkaSink)
	}
	trail, err := audit.NewTrail(zapLogger, audit.NewMultiSink(sinks...), nil)
	if err != nil {
		zapLogger.Fatal("Failed to create audit trail", zap.Error(err))
	}
	if err := trail.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start audit trail", zap.Error(err))
	}

	orch, err := evaluation.NewOrchestrator(zapLogger, assessor, monitor, screener, trail, obs, nil)
	if err != nil {
		zapLogger.Fatal("Failed to create orchestrator", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: svcCfg.MetricsAddr, Handler: mux}
	go func() {
		zapLogger.Info("Starting metrics server", zap.String("addr", svcCfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	if svcCfg.Kafka.Enabled && *inputPath == "" {
		// Stream mode: consume proposed transactions until signalled.
		processor, err := stream.NewProcessor(zapLogger, orch, &stream.Config{
			Brokers:       svcCfg.Kafka.Brokers,
			RequestTopic:  svcCfg.Kafka.RequestTopic,
			DecisionTopic: svcCfg.Kafka.DecisionTopic,
			GroupID:       svcCfg.Kafka.GroupID,
			Workers:       svcCfg.Pipeline.Workers,
		})
		if err != nil {
			zapLogger.Fatal("Failed to create stream processor", zap.Error(err))
		}
		if err := processor.Start(ctx); err != nil {
			zapLogger.Fatal("Failed to start stream processor", zap.Error(err))
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		zapLogger.Info("Shutting down...")

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := processor.Stop(stopCtx); err != nil {
			zapLogger.Error("Failed to stop stream processor", zap.Error(err))
		}
		stopCancel()
	} else {
		// File mode: evaluate a JSONL batch and exit.
		in := io.Reader(os.Stdin)
		if *inputPath != "" && *inputPath != "-" {
			f, err := os.Open(*inputPath)
			if err != nil {
				zapLogger.Fatal("Failed to open input file", zap.Error(err))
			}
			defer f.Close()
			in = f
		}
		if err := runFile(ctx, zapLogger, orch, in, os.Stdout); err != nil {
			zapLogger.Error("Evaluation run failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := trail.Stop(shutdownCtx); err != nil {
		zapLogger.Error("Failed to stop audit trail", zap.Error(err))
	}
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			zapLogger.Error("Failed to close audit Kafka sink", zap.Error(err))
		}
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shut down metrics server", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shut down tracing", zap.Error(err))
	}

	zapLogger.Info("guardrail exited properly")
}

// runFile evaluates proposed transactions from one JSONL stream and
// writes decision JSONL to out. Malformed or invalid lines are logged
// and skipped; the run keeps going.
func runFile(ctx context.Context, zapLogger *zap.Logger, orch *evaluation.Orchestrator, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	encoder := json.NewEncoder(out)

	var processed, skipped int
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var proposed models.ProposedTransaction
		if err := json.Unmarshal(line, &proposed); err != nil {
			zapLogger.Error("skipping malformed line", zap.Error(err))
			skipped++
			continue
		}
		decision, err := orch.Evaluate(ctx, proposed)
		if err != nil {
			zapLogger.Error("skipping invalid transaction", zap.Error(err))
			skipped++
			continue
		}
		if err := encoder.Encode(decision); err != nil {
			return fmt.Errorf("failed to write decision: %w", err)
		}
		processed++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	zapLogger.Info("evaluation run finished",
		zap.Int("processed", processed),
		zap.Int("skipped", skipped))
	return nil
}

// seedHistory loads transaction JSONL into the history store.
func seedHistory(path string, add func(models.Transaction) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var txn models.Transaction
		if err := json.Unmarshal(line, &txn); err != nil {
			return count, fmt.Errorf("failed to decode seed line: %w", err)
		}
		if err := add(txn); err != nil {
			return count, fmt.Errorf("failed to add seed transaction: %w", err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("failed to read seed file: %w", err)
	}
	return count, nil
}
