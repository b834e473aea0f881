package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/carepoint/medassist/internal/ai"
	"github.com/carepoint/medassist/internal/config"
	"github.com/carepoint/medassist/internal/docstore"
	"github.com/carepoint/medassist/internal/embedcache"
	"github.com/carepoint/medassist/internal/rag"
	"github.com/carepoint/medassist/internal/repo"
	"github.com/carepoint/medassist/internal/schedule"
	"github.com/carepoint/medassist/internal/service"
	"github.com/carepoint/medassist/internal/vectorindex"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "medassist",
		Short: "hospital document assistant core",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "load the document corpus into the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Ingest.Sync(cmd.Context())
		},
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the scheduled re-ingestion daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer app.Close()
			return runScheduler(app)
		},
	}

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "answer a question from the ingested medical records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer app.Close()
			answer := app.Assistant.Answer(cmd.Context(), strings.Join(args, " "))
			fmt.Println(answer)
			return nil
		},
	}

	recommendCmd := &cobra.Command{
		Use:   "recommend [symptoms]",
		Short: "recommend a specialization for free-text symptoms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer app.Close()
			result := app.Assistant.RecommendFromStore(cmd.Context(), strings.Join(args, " "))
			if result == "" {
				return fmt.Errorf("no recommendation available")
			}
			fmt.Println(result)
			return nil
		},
	}

	var csvPath string
	syncDoctorsCmd := &cobra.Command{
		Use:   "sync-doctors",
		Short: "replace the doctor roster from a CSV export",
		RunE: func(cmd *cobra.Command, args []string) error {
			if csvPath == "" {
				return fmt.Errorf("--csv is required")
			}
			app, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer app.Close()
			count, err := app.Roster.ImportCSV(cmd.Context(), csvPath)
			if err != nil {
				return err
			}
			fmt.Printf("imported %d doctors\n", count)
			return nil
		},
	}
	syncDoctorsCmd.Flags().StringVar(&csvPath, "csv", "", "path to the roster CSV export")

	rootCmd.AddCommand(ingestCmd, runCmd, askCmd, recommendCmd, syncDoctorsCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

type application struct {
	Config    *config.Config
	DB        *sql.DB
	Roster    *service.RosterService
	Assistant *service.AssistantService
	Ingest    *service.IngestService
}

func (a *application) Close() {
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

// bootstrap wires the whole pipeline. AI or vector index setup failures are
// configuration errors: they are logged and leave chat degraded, but the
// process still comes up so roster features keep working.
func bootstrap(configPath string) (*application, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	log := logutil.GetLogger(context.Background())
	log.Info("config loaded", zap.String("config", configPath))

	db, err := repo.Open(cfg.DoctorDBPath)
	if err != nil {
		return nil, fmt.Errorf("open doctor db: %w", err)
	}
	if err := repo.Bootstrap(db); err != nil {
		return nil, fmt.Errorf("bootstrap doctor db: %w", err)
	}
	rosterService := service.NewRosterService(repo.NewDoctorRepo(db))

	embedder := buildEmbedder(cfg, log)
	manager := ai.NewManager(
		buildGenerator(cfg.AI.Answerer, "answerer", log),
		buildGenerator(cfg.AI.Triage, "triage", log),
		embedder,
		ai.ManagerConfig{TimeoutSec: cfg.AI.TimeoutSec},
	)

	var index vectorindex.Index
	if embedder != nil {
		index, err = vectorindex.New(cfg.VectorIndex.Type, cfg.VectorIndex.Data, embedder.ModelName())
		if err != nil {
			// Retrieval degrades; booking-side features must keep working.
			log.Error("vector index unavailable, chat will answer without context", zap.Error(err))
			index = nil
		}
	} else {
		log.Error("no embedder configured, retrieval unavailable")
	}

	store, err := docstore.New(cfg.DocStore.Type, cfg.DocStore.Data)
	if err != nil {
		log.Error("document store unavailable, ingestion disabled", zap.Error(err))
		store = nil
	}

	retriever := rag.NewRetriever(manager.Embedder(), index)
	ingestService := service.NewIngestService(
		rag.NewLoader(store),
		rag.NewSplitter(rag.DefaultChunkSize, rag.DefaultChunkOverlap),
		manager,
		index,
		cfg.Ingest.BatchSize,
	)
	assistantService := service.NewAssistantService(manager, retriever, rosterService, cfg.TopK)

	return &application{
		Config:    cfg,
		DB:        db,
		Roster:    rosterService,
		Assistant: assistantService,
		Ingest:    ingestService,
	}, nil
}

func buildEmbedder(cfg *config.Config, log *zap.Logger) ai.IEmbedder {
	provider, err := ai.NewEmbedProvider(cfg.AI.Embedder.Provider, cfg.AI.Embedder.Data)
	if err != nil {
		log.Error("init embed provider failed", zap.String("provider", cfg.AI.Embedder.Provider), zap.Error(err))
		return nil
	}
	embedder := ai.NewEmbedder(provider, cfg.AI.Embedder.Model)
	return embedcache.WrapLRU(
		embedder,
		cfg.AI.EmbedCacheSize,
		time.Duration(cfg.AI.EmbedCacheTTLMin)*time.Minute,
	)
}

func buildGenerator(endpoint config.AIEndpointConfig, role string, log *zap.Logger) ai.IGenerator {
	endpoints := append([]config.AIEndpointConfig{endpoint}, endpoint.Fallbacks...)
	entries := make([]ai.GeneratorEntry, 0, len(endpoints))
	for _, ep := range endpoints {
		provider, err := ai.NewProvider(ep.Provider, ep.Data)
		if err != nil {
			log.Error("init ai provider failed", zap.String("role", role), zap.String("provider", ep.Provider), zap.Error(err))
			continue
		}
		entries = append(entries, ai.GeneratorEntry{
			Name:      ep.Provider + "/" + ep.Model,
			Generator: ai.NewGenerator(provider, ep.Model),
		})
	}
	if len(entries) == 0 {
		return nil
	}
	if len(entries) == 1 {
		return entries[0].Generator
	}
	return ai.NewGroupGenerator(entries)
}

func runScheduler(app *application) error {
	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(app.Ingest, app.Config.Ingest.CronSpec); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	logutil.GetLogger(ctx).Info("ingest scheduler running", zap.String("spec", app.Config.Ingest.CronSpec))

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("scheduler stopping...")
	scheduler.Stop()
	return nil
}
