package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Story-Loom/server/internal/boundary"
	"Story-Loom/server/internal/config"
	"Story-Loom/server/internal/emotion"
	"Story-Loom/server/internal/engine"
	"Story-Loom/server/internal/intent"
	"Story-Loom/server/internal/interfaces"
	"Story-Loom/server/internal/ledger"
	"Story-Loom/server/internal/memory"
	"Story-Loom/server/internal/rag"
	"Story-Loom/server/internal/relationship"
	"Story-Loom/server/internal/storage"
	"Story-Loom/server/internal/web"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize storage connections. Missing backends degrade to in-memory
	// stores so a dev server runs with no infrastructure at all.
	var (
		ledgerStore    interfaces.LedgerStore
		emotionStore   interfaces.EmotionStore
		relStore       interfaces.RelationshipStore
		intentStore    interfaces.IntentStore
		settingsStore  interfaces.SettingsStore
		summaryStore   interfaces.SummaryStore
		gameStore      interfaces.GameStore
		characterStore interfaces.CharacterStore
	)

	mysqlStore, err := storage.NewMySQLStore(cfg.Database.MySQL)
	if err != nil {
		log.Printf("Warning: Failed to connect to MySQL, using in-memory stores: %v", err)
		ledgerStore = storage.NewMemoryLedgerStore()
		emotionStore = storage.NewMemoryEmotionStore()
		relStore = storage.NewMemoryRelationshipStore()
		intentStore = storage.NewMemoryIntentStore()
		settingsStore = storage.NewMemorySettingsStore()
		summaryStore = storage.NewMemorySummaryStore()
		gameStore = storage.NewMemoryGameStore()
		characterStore = storage.NewMemoryCharacterStore()
	} else {
		defer mysqlStore.Close()
		log.Println("MySQL connected successfully")
		db := mysqlStore.GetDB()
		ledgerStore = storage.NewGormLedgerStore(db)
		emotionStore = storage.NewGormEmotionStore(db)
		relStore = storage.NewGormRelationshipStore(db)
		intentStore = storage.NewGormIntentStore(db)
		settingsStore = storage.NewGormSettingsStore(db)
		summaryStore = storage.NewGormSummaryStore(db)
		gameStore = storage.NewGormGameStore(db)
		characterStore = storage.NewGormCharacterStore(db)
	}

	redisStore, err := storage.NewRedisStore(cfg.Database.Redis)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis, settings cache disabled: %v", err)
		redisStore = nil
	} else {
		defer redisStore.Close()
		log.Println("Redis connected successfully")
	}

	// Domain services
	var settingsCache boundary.SettingsCache
	if redisStore != nil {
		settingsCache = redisStore
	}
	boundaries := boundary.NewEngine(settingsStore, settingsCache)
	ledgerSvc := ledger.NewService(ledgerStore)
	emotions := emotion.NewMachine(emotionStore, boundaries)
	intents := intent.NewTracker(intentStore, nil)
	intents.SetStaleThreshold(cfg.Game.StaleIntentTurns)
	relationships := relationship.NewService(relStore)

	// AI providers
	llm := engine.NewLLMClient(cfg.AI.LLM)
	embedder := rag.NewEmbeddingService(
		cfg.AI.Embedding.BaseURL,
		cfg.AI.Embedding.APIKey,
		cfg.AI.Embedding.Model,
		cfg.AI.Embedding.Dimension,
	)

	// Vector index, with an in-memory fallback when Qdrant is absent.
	var vectors interfaces.VectorStore
	qdrantStore, err := rag.NewQdrantStore(
		cfg.Database.Qdrant.Host,
		cfg.Database.Qdrant.Port,
		cfg.Database.Qdrant.APIKey,
		cfg.Database.Qdrant.UseTLS,
	)
	if err != nil {
		log.Printf("Warning: Failed to connect to Qdrant, using in-memory vectors: %v", err)
		vectors = rag.NewMemoryVectorStore()
	} else {
		defer qdrantStore.Close()
		log.Println("Qdrant connected successfully")
		vectors = qdrantStore
	}

	recall := rag.NewSemanticIndex(vectors, embedder,
		cfg.Database.Qdrant.Collection, rag.RenderingSource(cfg.Memory.EmbedSource))
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := recall.Init(ctx); err != nil {
			log.Printf("Warning: Failed to initialize vector collection: %v", err)
		}
		cancel()
	}

	// Memory pipeline
	summarizer := memory.NewLLMSummarizer(llm)
	memories := memory.NewService(summaryStore, ledgerStore, summarizer, memory.TierConfig{
		ShortWindowTurns: cfg.Memory.ShortWindowTurns,
		MediumMultiplier: cfg.Memory.MediumMultiplier,
		LongMultiplier:   cfg.Memory.LongMultiplier,
	})
	backfill := memory.NewBackfiller(summaryStore, characterStore, recall, rag.EmbeddingVersion)
	backfill.SetInterval(cfg.Memory.BackfillInterval)

	backfillCtx, stopBackfill := context.WithCancel(context.Background())
	defer stopBackfill()
	go backfill.Run(backfillCtx)

	// Live event hub
	hub := web.NewEventHub()
	go hub.Run()

	var feed engine.NarrationFeed
	if redisStore != nil {
		feed = redisStore
	}
	orchestrator := engine.NewOrchestrator(engine.Deps{
		Games:              gameStore,
		Characters:         characterStore,
		Summaries:          summaryStore,
		Ledger:             ledgerSvc,
		Emotions:           emotions,
		Intents:            intents,
		Relationships:      relationships,
		Boundaries:         boundaries,
		Memories:           memories,
		LLM:                llm,
		Recall:             recall,
		Backfill:           backfill,
		Feed:               feed,
		Broadcaster:        hub,
		WitnessedTurnLimit: cfg.Game.WitnessedTurnLimit,
		RecallLimit:        cfg.Memory.RecallLimit,
		GenerateTokens:     cfg.AI.LLM.MaxTokens,
		GenerateTemp:       cfg.AI.LLM.Temperature,
	})

	handlers := web.NewHandlers(web.HandlerDeps{
		Orchestrator:  orchestrator,
		Ledger:        ledgerSvc,
		Emotions:      emotions,
		Intents:       intents,
		Relationships: relationships,
		Boundaries:    boundaries,
		Games:         gameStore,
		Characters:    characterStore,
		Summaries:     summaryStore,
		Recall:        recall,
		RedisStore:    redisStore,
		Hub:           hub,
		DefaultRating: cfg.Game.DefaultContentRating,
	})
	router := web.NewRouter(handlers)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in background
	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stopBackfill()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
