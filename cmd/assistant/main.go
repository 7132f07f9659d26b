package main

import (
	"AzureAssistant/internal/ai"
	"AzureAssistant/internal/assistant"
	"AzureAssistant/internal/config"
	"AzureAssistant/internal/conversation"
	"AzureAssistant/internal/service/response"
	"AzureAssistant/internal/staging"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.NewConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	// создаём предустановленный регистратор zap
	var logger *zap.Logger
	if cfg.DebugMode {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	//сброс буфера логгера
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, sugar); err != nil {
		sugar.Errorw("Запрос не выполнен", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, sugar *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []assistant.Option
	if cfg.DebugMode {
		// В режиме дебага Azure не вызывается.
		sugar.Infow("DEBUG: используется заглушка вместо Azure OpenAI")
		opts = append(opts, assistant.WithRemote(ai.NewStubRemote("")))
	}
	client, err := assistant.New(cfg.OpenAI, sugar, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	sugar.Infow("Starting app", "DebugMode", cfg.DebugMode, "deployment", cfg.OpenAI.DeploymentName)

	if cfg.SystemPrompt != "" {
		if err := client.AddMessage(conversation.RoleSystem, cfg.SystemPrompt); err != nil {
			return err
		}
	}
	if cfg.Prompt != "" {
		if err := client.AddMessage(conversation.RoleUser, cfg.Prompt); err != nil {
			return err
		}
	}
	for _, path := range cfg.Files {
		if _, err := client.AddFile(staging.FileConfig{FilePath: path}); err != nil {
			return err
		}
	}

	if _, err := client.Run(ctx); err != nil {
		return err
	}
	reply, err := client.Reply()
	if err != nil {
		return err
	}
	fmt.Println(reply)

	if cfg.OutputFile != "" {
		if err := client.Persist(response.PersistOptions{FileName: cfg.OutputFile, Kind: response.Kind(cfg.OutputKind)}); err != nil {
			return err
		}
	}
	return nil
}
