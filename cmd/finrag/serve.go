package finrag

import (
	"cmp"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/finrag/finrag/pkg/config"
	"github.com/finrag/finrag/pkg/corpus"
	"github.com/finrag/finrag/pkg/events"
	"github.com/finrag/finrag/pkg/metrics"
	"github.com/finrag/finrag/pkg/rag"
	"github.com/finrag/finrag/pkg/rest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Starts the HTTP server that accepts document uploads and answers queries against indexed corpora`,
	Run:   runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("server.listenAddr", "l", "", "API server listen address")
	f.StringP("postgres.connString", "c", "", "PostgreSQL connection string")
	f.String("llm.apiURL", "", "LLM API base URL")
	f.String("llm.modelID", "", "Model used for generation")
	f.String("llm.embeddingModel", "", "Model used for embeddings")
	f.Int("llm.dimensions", 0, "Embedding vector dimensions")
	f.Bool("metrics.enabled", false, "Expose Prometheus metrics")

	viper.BindPFlags(f)
	rootCmd.AddCommand(serveCmd)
}

// llmConfig layers file configuration over the built-in defaults. Each
// field falls back to its own default only.
func llmConfig(c config.LLMConfig) rag.Config {
	out := rag.DefaultConfig()
	out.APIURL = cmp.Or(c.APIURL, out.APIURL)
	out.APIKey = cmp.Or(c.APIKey, out.APIKey)
	out.ModelID = cmp.Or(c.ModelID, out.ModelID)
	out.EmbeddingModel = cmp.Or(c.EmbeddingModel, out.EmbeddingModel)
	out.EmbeddingsPath = cmp.Or(c.EmbeddingsPath, out.EmbeddingsPath)
	out.GeneratePath = cmp.Or(c.GeneratePath, out.GeneratePath)
	out.Dimensions = cmp.Or(c.Dimensions, out.Dimensions)
	out.BatchSize = cmp.Or(c.BatchSize, out.BatchSize)
	return out
}

func runServe(cmd *cobra.Command, args []string) {
	if cfg == nil {
		log.Fatal("Configuration not loaded")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	connString := cmp.Or(
		viper.GetString("postgres.connString"),
		cfg.Postgres.ConnString,
		os.Getenv("FINRAG_POSTGRES_CONN_STRING"),
	)
	if connString == "" {
		log.Fatal("PostgreSQL connection string required")
	}

	llmCfg := llmConfig(cfg.LLM)
	llmCfg.APIURL = cmp.Or(viper.GetString("llm.apiURL"), llmCfg.APIURL)
	llmCfg.ModelID = cmp.Or(viper.GetString("llm.modelID"), llmCfg.ModelID)
	llmCfg.EmbeddingModel = cmp.Or(viper.GetString("llm.embeddingModel"), llmCfg.EmbeddingModel)
	llmCfg.Dimensions = cmp.Or(viper.GetInt("llm.dimensions"), llmCfg.Dimensions)

	ctx := context.Background()
	store, err := corpus.NewStore(ctx, connString, llmCfg.Dimensions, logger)
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	llm, err := rag.NewClient(llmCfg, logger)
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.Enabled {
		natsPublisher, err := events.NewNATSPublisher(cfg.Events.NATS)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	chunker := corpus.NewChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences)
	engine := rag.NewEngine(store, llm, chunker, publisher, logger)

	server := rest.NewServer(store, engine, rest.Options{
		APIKeys:        cfg.Server.APIKeys,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		LogRequests:    cfg.Server.LogRequests && logLevel != "none",
		Logger:         logger,
	})

	metricsCtx, metricsCancel := context.WithCancel(ctx)
	defer metricsCancel()
	var wg sync.WaitGroup
	if cfg.Metrics.Enabled || viper.GetBool("metrics.enabled") {
		metrics.StartPrometheusServer(metricsCtx, &wg, &metrics.PromServerOpts{Addr: cfg.Metrics.Addr})
	}

	listenAddr := cmp.Or(viper.GetString("server.listenAddr"), cfg.Server.ListenAddr)

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(listenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}
	metricsCancel()
	wg.Wait()

	log.Println("Server gracefully stopped")
}
