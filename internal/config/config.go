package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	DebugMode bool `env:"DEBUG_MODE"` // Режим дебага: подробные логи, заглушка вместо Azure
	OpenAI    OpenAI
	// Сохранение ответа
	OutputFile string `env:"OUTPUT_FILE"` // Куда сохранить ответ; пусто — не сохранять
	OutputKind string `env:"OUTPUT_KIND"` // json|text
	// Входные данные запроса
	SystemPrompt string   `env:"SYSTEM_PROMPT"`                    // Необязательное system сообщение
	Files        []string `env:"ASSISTANT_FILES" envSeparator:";"` // Файлы для загрузки, через ';'
	Prompt       string   // Текст запроса: позиционные аргументы после флагов
}

// OpenAI конфигурация подключения к Azure OpenAI Assistants.
type OpenAI struct {
	Endpoint       string        `env:"AZURE_OPENAI_ENDPOINT"`    // https://<resource>.openai.azure.com
	APIKey         string        `env:"AZURE_OPENAI_API_KEY"`     // Ключ берём из .env/ENV
	DeploymentName string        `env:"AZURE_OPENAI_DEPLOYMENT"`  // Имя деплоймента модели
	APIVersion     string        `env:"AZURE_OPENAI_API_VERSION"` // Версия API
	Timeout        time.Duration `env:"AZURE_OPENAI_TIMEOUT"`     // Таймаут одного HTTP запроса
	InitMsg        string        `env:"ASSISTANT_INIT_MSG"`       // Инструкции ассистента, если нет system сообщения
	AssistantName  string        `env:"ASSISTANT_NAME"`           // Имя создаваемого ассистента
	PollInterval   time.Duration `env:"RUN_POLL_INTERVAL"`        // Интервал опроса статуса run
	MaxPolls       int           `env:"RUN_MAX_POLLS"`            // Максимум опросов до таймаута
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode: false,
		OpenAI: OpenAI{
			APIVersion:    "2024-08-01-preview",
			Timeout:       30 * time.Second,
			InitMsg:       "You are a helpful assistant.",
			AssistantName: "Chat Assistant",
			PollInterval:  5 * time.Second,
			MaxPolls:      60,
		},
		OutputKind: "json",
	}
}

// NewConfig загружает конфигурацию приложения из .env, окружения и флагов командной строки.
func NewConfig(args []string) (*Config, error) {
	_ = godotenv.Load()
	return Load(args)
}

// Load разбирает окружение и флаги поверх дефолтов. .env не читается.
func Load(args []string) (*Config, error) {
	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("assistant", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага (заглушка вместо Azure, подробные логи)")
	fs.StringVar(&cfg.OpenAI.Endpoint, "endpoint", cfg.OpenAI.Endpoint, "endpoint ресурса Azure OpenAI")
	fs.StringVar(&cfg.OpenAI.APIKey, "api-key", cfg.OpenAI.APIKey, "API ключ Azure OpenAI (перекрывает ENV)")
	fs.StringVar(&cfg.OpenAI.DeploymentName, "deployment", cfg.OpenAI.DeploymentName, "имя деплоймента модели")
	fs.StringVar(&cfg.OpenAI.APIVersion, "api-version", cfg.OpenAI.APIVersion, "версия API")
	fs.DurationVar(&cfg.OpenAI.Timeout, "timeout", cfg.OpenAI.Timeout, "таймаут одного HTTP запроса, напр. 30s")
	fs.StringVar(&cfg.OpenAI.InitMsg, "init-msg", cfg.OpenAI.InitMsg, "инструкции ассистента по умолчанию")
	fs.StringVar(&cfg.OpenAI.AssistantName, "assistant-name", cfg.OpenAI.AssistantName, "имя создаваемого ассистента")
	fs.DurationVar(&cfg.OpenAI.PollInterval, "poll-interval", cfg.OpenAI.PollInterval, "интервал опроса статуса run")
	fs.IntVar(&cfg.OpenAI.MaxPolls, "max-polls", cfg.OpenAI.MaxPolls, "максимум опросов статуса run")
	fs.StringVar(&cfg.OutputFile, "output-file", cfg.OutputFile, "файл для сохранения ответа")
	fs.StringVar(&cfg.OutputKind, "output-kind", cfg.OutputKind, "формат сохранения: json|text")
	fs.StringVar(&cfg.SystemPrompt, "system", cfg.SystemPrompt, "system сообщение (инструкции ассистента)")
	// Принимаем список файлов одной строкой, разделённой ';'
	filesFlag := strings.Join(cfg.Files, ";")
	fs.StringVar(&filesFlag, "files", filesFlag, "файлы для загрузки, разделённые ';'")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	cfg.Files = parseListFlag(filesFlag)
	cfg.Prompt = strings.TrimSpace(strings.Join(fs.Args(), " "))

	cfg.OpenAI.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.OpenAI.Endpoint), "/")
	cfg.OutputKind = strings.ToLower(strings.TrimSpace(cfg.OutputKind))
	return cfg, nil
}

// parseListFlag разбирает значение флага со списком, разделённым ';'
func parseListFlag(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ";")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return cleaned
}
