// cmd/recollect wires the knowledge graph and retrieval pipeline into a
// small CLI for local use and smoke testing.
//
// Usage:
//
//	recollect [-config path] stats
//	recollect [-config path] search <query>
//	recollect [-config path] recall <query>
//	recollect [-config path] remember <content>
//	recollect [-config path] watch
//
// All logging goes to stderr; command output goes to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/voxmind/recollect/internal/config"
	"github.com/voxmind/recollect/internal/graph"
	"github.com/voxmind/recollect/internal/llm"
	"github.com/voxmind/recollect/internal/retrieval"
	"github.com/voxmind/recollect/internal/storage/sqlite"
	"github.com/voxmind/recollect/internal/vector"
	"github.com/voxmind/recollect/pkg/types"
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("recollect: ")

	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: recollect [-config path] <stats|search|recall|remember|watch> [args]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DataPath), 0o700); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
	store, err := sqlite.Open(cfg.Storage.DataPath)
	if err != nil {
		log.Fatalf("failed to open database at %q: %v", cfg.Storage.DataPath, err)
	}
	defer store.Close()

	index, err := buildIndex(cfg, store)
	if err != nil {
		log.Fatalf("failed to set up vector index: %v", err)
	}

	ollama := llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL:            cfg.LLM.OllamaURL,
		Model:              cfg.LLM.Model,
		EmbedModel:         cfg.LLM.EmbeddingModel,
		Timeout:            cfg.LLM.Timeout,
		EmbedRatePerSecond: cfg.LLM.EmbedRatePerSecond,
	})

	var learner llm.LearningProvider = llm.NoopLearner{}
	if cfg.LLM.LearningEnabled {
		learner = llm.NewGenerativeLearner(ollama)
	}

	embeddings := graph.NewEmbeddingIndex(index, ollama)
	tracker := graph.NewContradictionTracker(store)
	entities := graph.NewEntityStore(store, tracker, embeddings)
	relationships := graph.NewRelationshipStore(store, store)
	engine := graph.NewQueryEngine(entities, relationships, embeddings, store)

	pipeline, err := retrieval.NewPipeline(store, retrieval.NewWeightedRanker(), learner, retrieval.ClockContext{})
	if err != nil {
		log.Fatalf("failed to build retrieval pipeline: %v", err)
	}
	defer pipeline.Wait()

	memoryIndex := retrieval.NewMemoryIndex(index, ollama)
	memories, err := retrieval.NewMemoryStore(store, memoryIndex)
	if err != nil {
		log.Fatalf("failed to build memory store: %v", err)
	}

	switch cmd := flag.Arg(0); cmd {
	case "stats":
		runStats(ctx, engine)
	case "search":
		runSearch(ctx, engine, strings.Join(flag.Args()[1:], " "))
	case "recall":
		runRecall(ctx, pipeline, cfg, strings.Join(flag.Args()[1:], " "))
	case "remember":
		runRemember(ctx, memories, strings.Join(flag.Args()[1:], " "))
	case "watch":
		runWatch(ctx, *configPath)
	default:
		log.Fatalf("unknown command %q", cmd)
	}
}

// buildIndex selects the vector backend. SQLite shares the graph store's
// database file; postgres requires pgvector and its own DSN.
func buildIndex(cfg *config.Config, store *sqlite.Store) (vector.Index, error) {
	if cfg.Storage.Engine == "postgres" {
		return vector.NewPostgresIndex(cfg.Storage.PostgresDSN, cfg.Storage.EmbeddingDimension)
	}
	return vector.NewSQLiteIndex(store.DB()), nil
}

func runStats(ctx context.Context, engine *graph.QueryEngine) {
	stats, indexed, err := engine.Stats(ctx)
	if err != nil {
		log.Fatalf("stats failed: %v", err)
	}
	fmt.Printf("entities:       %d\n", stats.EntityCount)
	fmt.Printf("relationships:  %d\n", stats.RelationshipCount)
	fmt.Printf("contradictions: %d (%d unresolved)\n", stats.ContradictionCount, stats.UnresolvedContradictions)
	fmt.Printf("embeddings:     %d\n", indexed)
	for entityType, count := range stats.EntitiesByType {
		fmt.Printf("  %-14s %d\n", entityType, count)
	}
}

func runSearch(ctx context.Context, engine *graph.QueryEngine, query string) {
	if query == "" {
		log.Fatal("search requires a query")
	}
	results, err := engine.Search(ctx, query, 10, 0)
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}
	for _, r := range results {
		fmt.Printf("%.3f  [%s]  %s (%s)\n", r.Score, r.Method, r.Entity.Name, r.Entity.Type)
	}
	if len(results) == 0 {
		fmt.Println("no matches")
	}
}

func runRecall(ctx context.Context, pipeline *retrieval.Pipeline, cfg *config.Config, query string) {
	if query == "" {
		log.Fatal("recall requires a query")
	}
	result, err := pipeline.Retrieve(ctx, query, retrieval.RetrieveOptions{
		Limit:        cfg.Retrieval.DefaultLimit,
		MinRelevance: cfg.Retrieval.MinRelevance,
	})
	if err != nil {
		log.Fatalf("recall failed: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("failed to render result: %v", err)
	}
	fmt.Println(string(out))
}

func runRemember(ctx context.Context, memories *retrieval.MemoryStore, content string) {
	if content == "" {
		log.Fatal("remember requires memory content")
	}
	mem, err := memories.Put(ctx, &types.EpisodicMemory{
		Content:    content,
		Importance: types.DefaultConfidence,
		Source:     "cli",
	})
	if err != nil {
		log.Fatalf("remember failed: %v", err)
	}
	fmt.Println(mem.ID)
}

// runWatch blocks and logs configuration reloads, mostly useful to verify a
// deployment's config plumbing.
func runWatch(ctx context.Context, configPath string) {
	if configPath == "" {
		log.Fatal("watch requires -config")
	}
	log.Printf("watching %s", configPath)
	err := config.Watch(ctx, configPath, func(cfg *config.Config) {
		log.Printf("config reloaded: engine=%s model=%s", cfg.Storage.Engine, cfg.LLM.Model)
	})
	if err != nil && err != context.Canceled {
		log.Fatalf("watch failed: %v", err)
	}
}
