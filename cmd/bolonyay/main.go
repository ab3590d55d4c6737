package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bolonyay/internal/analysis"
	"bolonyay/internal/asr"
	"bolonyay/internal/auth"
	"bolonyay/internal/config"
	"bolonyay/internal/export"
	"bolonyay/internal/llm"
	"bolonyay/internal/scheduler"
	"bolonyay/internal/server"
	"bolonyay/internal/storage"
	"bolonyay/internal/store"
	"bolonyay/internal/telegram"
	"bolonyay/internal/workflow"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	factory := llm.Factory{
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		YandexOAuthToken: cfg.YandexOAuthToken,
		YandexFolderID:   cfg.YandexFolderID,
	}
	llmClient, err := factory.CreateClient(cfg.LLMProvider, cfg.OpenAIModel)
	if err != nil {
		log.Fatalf("failed to create llm client: %v", err)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open case store: %v", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		log.Fatalf("failed to migrate case store: %v", err)
	}
	gateway := store.NewGateway(db)

	var rec storage.Recorder
	if cfg.AuditLogPath != "" {
		fr, err := storage.NewFileRecorder(cfg.AuditLogPath)
		if err != nil {
			log.Printf("failed to init audit log, continuing without it: %v", err)
		} else {
			rec = fr
		}
	}

	exporter, err := export.NewTextExporter(cfg.ExportDir)
	if err != nil {
		log.Fatalf("failed to init export dir: %v", err)
	}

	interrogatives := analysis.DefaultInterrogatives()

	newWorkflow := func(language, deviceID string) *workflow.Workflow {
		if language == "" {
			language = cfg.DefaultLanguage
		}
		transcriber := asr.NewWhisper(
			cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.WhisperModel, language,
			&asr.FFmpegSource{},
		)
		return workflow.New(workflow.Options{
			Language:       language,
			DeviceID:       deviceID,
			ContextWindow:  cfg.ContextWindow,
			RecordingTick:  cfg.RecordingTick,
			RecordingCap:   cfg.RecordingCap,
			Transcriber:    transcriber,
			Client:         llmClient,
			Interrogatives: interrogatives,
			Gateway:        gateway,
			Exporter:       exporter,
			Recorder:       rec,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Println("shutting down")
		cancel()
	}()

	sched := scheduler.New(cfg.PurgeCronSpec, time.Duration(cfg.RetentionDays)*24*time.Hour, gateway.PurgeStaleSessions)
	if err := sched.Start(); err != nil {
		log.Printf("failed to start retention scheduler: %v", err)
	}
	defer sched.Stop()

	if cfg.TelegramBotToken != "" {
		go startTelegram(ctx, cfg, newWorkflow)
	}

	if err := server.Start(ctx, server.Options{
		Port:    cfg.HTTPPort,
		Factory: newWorkflow,
		Out:     os.Stdout,
	}); err != nil {
		log.Fatalf("api server failed: %v", err)
	}
}

func startTelegram(ctx context.Context, cfg *config.Config, newWorkflow server.WorkflowFactory) {
	var allowRepo auth.Repository
	if cfg.AllowlistFilePath != "" {
		repo, err := auth.NewFileRepository(cfg.AllowlistFilePath)
		if err != nil {
			log.Printf("failed to init allowlist repo: %v", err)
		} else {
			allowRepo = repo
		}
	}
	authSvc, err := auth.NewWithRepo(allowRepo, cfg.AllowedUsers)
	if err != nil {
		log.Printf("failed to init telegram auth: %v", err)
		return
	}

	// Voice notes arrive as complete files; no microphone source needed.
	transcriber := asr.NewWhisper(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.WhisperModel, cfg.DefaultLanguage, nil)

	bot, err := telegram.New(cfg.TelegramBotToken, authSvc, func(deviceID string) *workflow.Workflow {
		return newWorkflow(cfg.DefaultLanguage, deviceID)
	}, transcriber)
	if err != nil {
		log.Printf("failed to start telegram bot: %v", err)
		return
	}

	log.Println("telegram bot started")
	bot.Start(ctx)
}
