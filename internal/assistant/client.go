// Package assistant — клиент одного диалога с ассистентом Azure OpenAI:
// накопить контекст (сообщения, файлы, параметры), выполнить run, получить ответ.
//
// Один Client — один диалог. Методы не предназначены для параллельного вызова:
// Run на одном клиенте нужно сериализовать, для разных диалогов заводить разные клиенты.
package assistant

import (
	"AzureAssistant/internal/ai"
	"AzureAssistant/internal/apperr"
	"AzureAssistant/internal/config"
	"AzureAssistant/internal/conversation"
	"AzureAssistant/internal/service/cleanup"
	"AzureAssistant/internal/service/response"
	"AzureAssistant/internal/service/runner"
	"AzureAssistant/internal/staging"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultAPIVersion = "2024-08-01-preview"
	DefaultTimeout    = 30 * time.Second
)

type options struct {
	transport http.RoundTripper
	remote    ai.Remote
	now       func() time.Time
}

type Option func(*options)

// WithTransport задаёт HTTP транспорт для запросов к Azure.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithRemote подменяет удалённую сторону целиком (напр. ai.StubRemote).
func WithRemote(r ai.Remote) Option {
	return func(o *options) { o.remote = r }
}

// WithClock задаёт источник времени для CompletionResult.Created.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

type Client struct {
	cfg     config.OpenAI
	store   *conversation.Store
	remote  ai.Remote
	runner  *runner.Runner
	cleanup *cleanup.Coordinator
	queue   *cleanup.Queue
	base    *zap.SugaredLogger
	logger  *zap.SugaredLogger
}

// New проверяет конфигурацию и создаёт клиента. Сетевых вызовов нет.
func New(cfg config.OpenAI, logger *zap.SugaredLogger, opts ...Option) (*Client, error) {
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	switch {
	case cfg.Endpoint == "":
		return nil, apperr.New(apperr.ErrConfig, "new client", "endpoint is required")
	case strings.TrimSpace(cfg.APIKey) == "":
		return nil, apperr.New(apperr.ErrConfig, "new client", "apiKey is required")
	case strings.TrimSpace(cfg.DeploymentName) == "":
		return nil, apperr.New(apperr.ErrConfig, "new client", "deploymentName is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.InitMsg == "" {
		cfg.InitMsg = runner.DefaultInitMsg
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	remote := o.remote
	if remote == nil {
		remote = ai.NewAssistantsClient(ai.ClientConfig{
			Endpoint:   cfg.Endpoint,
			APIKey:     cfg.APIKey,
			APIVersion: cfg.APIVersion,
			Timeout:    cfg.Timeout,
			Transport:  o.transport,
		}, logger)
	}

	c := &Client{
		cfg:     cfg,
		store:   conversation.NewStore(),
		remote:  remote,
		cleanup: cleanup.NewCoordinator(remote, logger),
		queue:   cleanup.NewQueue(remote, logger, cfg.Timeout),
		base:    logger,
	}
	c.runner = runner.New(remote, c.queue, runner.Config{
		Model:         cfg.DeploymentName,
		AssistantName: cfg.AssistantName,
		InitMsg:       cfg.InitMsg,
		PollInterval:  cfg.PollInterval,
		MaxPolls:      cfg.MaxPolls,
		Now:           o.now,
	}, logger)
	c.newSession()
	return c, nil
}

// newSession помечает логи новым идентификатором сессии (между вызовами Clear).
func (c *Client) newSession() {
	c.logger = c.base.With("session", uuid.NewString())
}

// AddMessage добавляет одно сообщение.
func (c *Client) AddMessage(role conversation.Role, content string) error {
	return c.store.AddMessages(conversation.Message{Role: role, Content: content})
}

// AddMessages добавляет сообщения по порядку; при ошибке валидации не добавляется ни одно.
func (c *Client) AddMessages(msgs ...conversation.Message) error {
	return c.store.AddMessages(msgs...)
}

// AddFile подготавливает файл к загрузке. Загрузка происходит в Run.
func (c *Client) AddFile(cfg staging.FileConfig) (conversation.FileMeta, error) {
	meta, err := c.store.AddFile(cfg)
	if err != nil {
		return conversation.FileMeta{}, err
	}
	c.logger.Debugw("Файл подготовлен", "path", meta.Path, "kind", meta.Kind)
	return meta, nil
}

func (c *Client) SetOptions(p conversation.OptionsPatch) conversation.Options {
	return c.store.SetOptions(p)
}

// Clear начинает новую сессию: сообщения, файлы, ассистент, тред и результат забываются.
// Удалённые ресурсы не удаляются — для этого DeleteAssistant.
func (c *Client) Clear() {
	c.store.Clear()
	c.newSession()
}

func (c *Client) State() conversation.Snapshot {
	return c.store.State()
}

// Run отправляет накопленный контекст и ждёт ответа ассистента.
func (c *Client) Run(ctx context.Context) (*response.CompletionResult, error) {
	start := time.Now()
	c.logger.Infow("Запрос к ассистенту...", "deployment", c.cfg.DeploymentName)
	res, err := c.runner.Run(ctx, c.store)
	dur := time.Since(start)
	if err != nil {
		c.logger.Errorw("Ошибка запроса к ассистенту", "duration", dur.String(), "error", err)
		return nil, err
	}
	c.logger.Infow("Ответ ассистента получен", "duration", dur.String(), "runID", res.ID)
	return res, nil
}

// Reply возвращает текст последнего ответа.
func (c *Client) Reply() (string, error) {
	return response.Reply(c.store.Result())
}

func (c *Client) RawResult() (*response.CompletionResult, error) {
	return response.Raw(c.store.Result())
}

// Persist сохраняет последний ответ в файл.
func (c *Client) Persist(opts response.PersistOptions) error {
	if err := response.Persist(c.store.Result(), opts); err != nil {
		return err
	}
	c.logger.Infow("Ответ сохранён", "file", opts.FileName, "kind", opts.Kind)
	return nil
}

func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.cleanup.DeleteFile(ctx, fileID)
}

// DeleteAssistant удаляет ассистента диалога и забывает тред.
func (c *Client) DeleteAssistant(ctx context.Context) error {
	return c.cleanup.DeleteAssistant(ctx, c.store)
}

// ListFiles возвращает файлы, загруженные в ресурс Azure.
func (c *Client) ListFiles(ctx context.Context) ([]ai.RemoteFile, error) {
	files, err := c.remote.ListFiles(ctx)
	if err != nil {
		return nil, apperr.Reclassify(apperr.ErrRemote, "list files", err)
	}
	return files, nil
}

// Close дожидается фоновых удалений файлов. Клиентом можно пользоваться и после Close:
// файлы следующих run удаляются синхронно.
func (c *Client) Close() {
	c.queue.Close()
}
