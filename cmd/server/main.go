package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"interview-lab/auth"
	"interview-lab/domain/event"
	"interview-lab/domain/script"
	apperrors "interview-lab/errors"
	"interview-lab/httpserver"
	"interview-lab/internal"
	"interview-lab/interview"
	"interview-lab/llm"
	"interview-lab/moderation"
	"interview-lab/observability"
	"interview-lab/repositories"
	"interview-lab/runtime/workers"
	"interview-lab/search"
	"interview-lab/services"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes
// error reporting so that every defer executes before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx := context.Background()

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		debugPort := 8081
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", debugPort, endpoint))
		database.StartDebugServer(db, debugPort, endpoint, TurnMapper)
	}

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Interview scripts
	scripts, err := loadScripts(config.ScriptDir, logger)
	if err != nil {
		return exitConfig, err
	}

	// 4. Engine assembly
	redactor, err := moderation.NewRedactor(internal.SplitTerms(config.RedactionTerms), charReplacement, logger)
	if err != nil {
		return exitConfig, err
	}

	domainChan := make(chan event.DomainEvent, config.EventBufferSize)
	telemetryChan := make(chan event.DomainEvent, config.EventBufferSize)

	index := search.NewTranscriptIndex(blugeWriter, logger)
	fanout := workers.NewEventFanout(logger, domainChan, telemetryChan).
		Add(workers.NewTranscriptIndexerSink(index))

	monitor := observability.NewMonitoring()
	participants := repositories.NewParticipantRepository(db)
	turns := repositories.NewTurnRepository(db, logger)
	lifecycle := interview.NewLifecycle(participants, fanout, logger)

	provider := interview.NewBackend(llm.Config{
		BaseURL:     config.LLMBaseURL,
		APIKey:      config.LLMAPIKey,
		Model:       config.LLMModel,
		MaxTokens:   config.LLMMaxTokens,
		Temperature: float32(config.LLMTemperature),
		Mock:        config.LLMMock,
		MockReply:   config.LLMMockReply,
	}, logger)

	composer := interview.NewComposer(
		logger,
		interview.NewGate(participants),
		lifecycle,
		interview.NewTimeBoxGuard(),
		participants,
		turns,
		provider,
		scripts,
		redactor,
		interview.NewPromptBuilder(config.MaxHistoryTokens, logger),
		fanout,
		monitor,
		config.BufferSize,
	)

	tokens := auth.NewTokenManager(config.JwtSecret, config.AuthTokenDuration)
	auths := services.NewAuthService(repositories.NewOperatorRepository(db), tokens)
	if config.OperatorEmail != "" {
		if _, err := auths.Bootstrap(config.OperatorEmail, config.OperatorPassword); err != nil &&
			!errors.Is(err, apperrors.ErrOperatorExists) {
			return exitConfig, fmt.Errorf("operator bootstrap failed: %w", err)
		}
	}

	invites := services.NewInviteService(participants, scripts, logger)
	interviews := services.NewInterviewService(composer, lifecycle, participants, turns, logger)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	// 6. Background workers
	sup := workers.NewSupervisor(logger)
	sup.Add(fanout, workers.NewHealthMonitoringWorker(logger, monitor, config.MetricInterval))
	go func() {
		logger.Info("Starting workers...")
		sup.Run(ctx)
	}()

	// 7. HTTP server
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := httpserver.NewServer(logger, interviews, auths, invites, index, monitor, tokens, addr)
	go func() {
		if err := server.Run(ctx); err != nil {
			errChan <- err
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 9. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	sup.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// loadScripts reads every *.json interview script in dir into a static
// source keyed by session id.
func loadScripts(dir string, logger *slog.Logger) (script.StaticSource, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("script dir scan failed: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no scripts in %s", apperrors.ErrScriptNotFound, dir)
	}

	source := script.StaticSource{}
	for _, path := range paths {
		s, err := script.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		source[s.SessionID] = s
		logger.Info("Script loaded", "session", s.SessionID, "questions", len(s.Questions),
			"limit_minutes", s.LimitMinutes)
	}
	return source, nil
}

// TurnMapper renders stored turn rows in the Badger inspector.
func TurnMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	var turn struct {
		ParticipantID string    `json:"participant_id"`
		Index         int       `json:"index"`
		Role          string    `json:"role"`
		Content       string    `json:"content"`
		Lang          string    `json:"lang"`
		CreatedAt     time.Time `json:"created_at"`
	}
	if err := json.Unmarshal(val, &turn); err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}

	row.Type = turn.Role
	row.Timestamp = turn.CreatedAt.Format("15:04:05")
	row.EntityID = turn.ParticipantID
	row.Detail = turn.Content
	row.Scores = turn.Lang
	return row
}
