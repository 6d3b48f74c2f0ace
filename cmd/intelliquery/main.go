// cmd/intelliquery/main.go
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"intelliquery/internal/analytics"
	"intelliquery/internal/common/cache"
	"intelliquery/internal/common/config"
	"intelliquery/internal/common/logger"
	"intelliquery/internal/common/monday"
	"intelliquery/internal/common/observability"
	"intelliquery/internal/intent"
	"intelliquery/internal/joiner"
	"intelliquery/internal/models"
	"intelliquery/internal/normalizer"
	"intelliquery/internal/pipeline"
	"intelliquery/pkg/boardschema"
)

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting intelliquery...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("intelliquery")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Board schema registry ---
	registry := boardschema.Default()
	if cfg.Boards.SchemaPath != "" {
		registry, err = boardschema.Load(cfg.Boards.SchemaPath)
		if err != nil {
			zapLog.Fatal("schema registry load failed", zap.Error(err))
		}
		zapLog.Info("schema registry loaded", zap.String("path", cfg.Boards.SchemaPath))
	}

	// --- Board service client ---
	boardClient := monday.NewClient(
		cfg.Boards.APIURL,
		cfg.Boards.APIKey,
		cfg.Boards.PageLimit,
		time.Duration(cfg.Boards.Timeout)*time.Millisecond,
		log,
	)
	if err := boardClient.TestConnection(ctx); err != nil {
		zapLog.Fatal("board service connection failed", zap.Error(err))
	}

	// --- Snapshot cache (optional: queries work without Redis) ---
	var snapshotCache *cache.SnapshotCache
	if cfg.Cache.Redis.Address != "" {
		c, err := cache.New(cfg.Cache.Redis, cfg.Cache.TTL())
		if err == nil {
			err = c.Ping(ctx)
		}
		if err != nil {
			zapLog.Warn("snapshot cache unavailable, every query will fetch the boards", zap.Error(err))
		} else {
			snapshotCache = c
			defer snapshotCache.Close()
			zapLog.Info("snapshot cache connected", zap.String("address", cfg.Cache.Redis.Address))
		}
	}

	// --- Pipeline stages ---
	// Config thresholds are percentages; the pipeline stages take fractions.
	norm, err := normalizer.New(registry, cfg.Quality.MissingReportPct/100, log)
	if err != nil {
		zapLog.Fatal("normalizer init failed", zap.Error(err))
	}

	service := pipeline.NewService(
		cfg.Boards,
		boardClient,
		intent.NewClassifier(cfg.GenAI, log),
		intent.NewNarrator(cfg.GenAI, log),
		norm,
		joiner.New(cfg.Quality.UnmatchedReportPct/100, log),
		analytics.New(cfg.Analytics, log),
		snapshotCache,
		log,
	)

	// --- Metrics endpoint ---
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	runConsole(ctx, service, zapLog)
}

// runConsole is the interactive query loop: one question per line, metrics
// and the quality report per answer. Conversational filter carry lives in
// the conversation context for the session.
func runConsole(ctx context.Context, service *pipeline.Service, zapLog *zap.Logger) {
	conv := &pipeline.ConversationContext{}
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("intelliquery ready. Ask a business question, or: refresh | reset | exit")

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		question := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(question) {
		case "":
			continue
		case "exit", "quit":
			return
		case "refresh":
			if err := service.InvalidateSnapshot(ctx); err != nil {
				fmt.Printf("refresh failed: %v\n", err)
			} else {
				fmt.Println("board snapshot invalidated; next question fetches fresh data")
			}
			continue
		case "reset":
			conv.PreviousFilters = models.Filters{}
			fmt.Println("conversation filters cleared")
			continue
		}

		answer, err := service.Answer(ctx, conv, question)
		if err != nil {
			zapLog.Error("query failed", zap.Error(err))
			fmt.Printf("Sorry, that failed: %v\n", err)
			continue
		}
		printAnswer(answer)
	}
}

func printAnswer(answer *pipeline.Answer) {
	if answer.ClarificationNeeded {
		fmt.Println("I need a bit more detail:")
		for _, q := range answer.ClarifyingQuestions {
			fmt.Printf("  - %s\n", q)
		}
		return
	}

	if answer.Narration != "" {
		fmt.Println(answer.Narration)
		fmt.Println()
	}

	if data, err := json.MarshalIndent(answer.Metrics, "", "  "); err == nil {
		fmt.Printf("Metrics (%s):\n%s\n", answer.Kind, data)
	}

	if len(answer.QualityIssues) > 0 {
		fmt.Println("\nData quality report:")
		for _, issue := range answer.QualityIssues {
			fmt.Printf("  [%s] %s\n", issue.Severity, issue.Describe())
		}
	}
}
