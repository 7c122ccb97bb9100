package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/assessor/internal/assessment"
	"github.com/pavelanni/assessor/internal/events"
	"github.com/pavelanni/assessor/internal/handler"
	"github.com/pavelanni/assessor/internal/llm"
	"github.com/pavelanni/assessor/internal/llm/prompts"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/scoring"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("llm-url", "", "OpenAI-compatible API base URL for essay suggestions (empty disables them)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.Standard), "Essay suggestion prompt variant (strict, standard, lenient)")
	f.String("redis-url", "", "Redis URL for finalized result events (empty disables them)")
	f.Float64("advanced-threshold", scoring.DefaultAdvancedThreshold, "Percentage at or above which the Advanced level is recommended")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := []assessment.Option{
		assessment.WithStudents(db),
		assessment.WithSequencer(db),
		assessment.WithAuditLog(db),
		assessment.WithAdvancedThreshold(v.GetFloat64("advanced-threshold")),
	}

	if v.GetString("llm-url") != "" {
		client, err := newLLMClient(cmd.Context(), v)
		if err != nil {
			return err
		}
		opts = append(opts, assessment.WithSuggester(client))
	}

	if url := v.GetString("redis-url"); url != "" {
		pub, err := events.NewPublisher(url)
		if err != nil {
			return fmt.Errorf("create event publisher: %w", err)
		}
		defer pub.Close()
		opts = append(opts, assessment.WithPublisher(pub))
	}

	services := make([]*assessment.Service, 0, len(model.Kinds))
	for _, k := range model.Kinds {
		services = append(services, assessment.New(k, db, db, opts...))
	}
	h := handler.New(db, services...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx := cmd.Context()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown", "error", err)
		}
	}()

	slog.Info("starting server",
		"addr", addr,
		"db_driver", v.GetString("db-driver"),
		"lang", v.GetString("lang"),
		"llm_url", v.GetString("llm-url"),
		"events", v.GetString("redis-url") != "",
		"advanced_threshold", v.GetFloat64("advanced-threshold"),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newLLMClient(ctx context.Context, v *viper.Viper) (*llm.Client, error) {
	client, err := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		v.GetString("prompt-variant"),
	)
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", redactURL(v.GetString("llm-url")), "model", v.GetString("llm-model"))
	return client, nil
}
