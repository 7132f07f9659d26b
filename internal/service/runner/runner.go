// Package runner выполняет один запрос к ассистенту: загрузка файлов, ассистент, тред,
// run, опрос статуса и получение ответа. Шаги строго последовательны.
package runner

import (
	"AzureAssistant/internal/ai"
	"AzureAssistant/internal/apperr"
	"AzureAssistant/internal/conversation"
	"AzureAssistant/internal/service/response"
	"AzureAssistant/internal/staging"
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxPolls     = 60
	DefaultInitMsg      = "You are a helpful assistant."
	DefaultName         = "Chat Assistant"
)

// Config — параметры сценария run.
type Config struct {
	Model         string // имя деплоймента
	AssistantName string
	InitMsg       string // инструкции, если в диалоге нет system сообщения
	PollInterval  time.Duration
	MaxPolls      int
	Now           func() time.Time
}

// CleanupQueue принимает загруженные файлы на фоновое удаление.
type CleanupQueue interface {
	Enqueue(fileIDs ...string)
}

type Runner struct {
	remote ai.Remote
	queue  CleanupQueue
	cfg    Config
	logger *zap.SugaredLogger
}

func New(remote ai.Remote, queue CleanupQueue, cfg Config, logger *zap.SugaredLogger) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	if cfg.InitMsg == "" {
		cfg.InitMsg = DefaultInitMsg
	}
	if cfg.AssistantName == "" {
		cfg.AssistantName = DefaultName
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Runner{remote: remote, queue: queue, cfg: cfg, logger: logger}
}

// Run выполняет сценарий для диалога store. При ошибке сохранённый результат не меняется.
func (r *Runner) Run(ctx context.Context, store *conversation.Store) (*response.CompletionResult, error) {
	all := store.Messages()
	if len(all) == 0 && len(store.Files()) == 0 {
		return nil, apperr.New(apperr.ErrValidation, "run", "nothing to send: add messages or files first")
	}
	pendingMsgs, pendingFiles := store.Pending()

	// 1. Загрузка файлов
	uploaded, err := r.upload(ctx, pendingFiles)
	if err != nil {
		return nil, err
	}

	// 2. Ассистент
	assistantID, err := r.resolveAssistant(ctx, store, all, len(uploaded) > 0)
	if err != nil {
		return nil, err
	}

	// 3. Тред
	threadID, err := r.resolveThread(ctx, store, pendingMsgs, uploaded)
	if err != nil {
		return nil, err
	}
	store.MarkSent(len(pendingMsgs), len(pendingFiles))

	// 4. Run и ожидание
	run, err := r.remote.CreateRun(ctx, threadID, assistantID)
	if err != nil {
		return nil, apperr.Reclassify(apperr.ErrRun, "create run", err)
	}
	r.logger.Infow("Run запущен", "runID", run.ID, "threadID", threadID, "assistantID", assistantID)
	if err := r.wait(ctx, threadID, run.ID); err != nil {
		return nil, err
	}

	// 5. Ответ
	msg, err := r.remote.LatestMessage(ctx, threadID)
	if err != nil {
		return nil, apperr.Reclassify(apperr.ErrRun, "fetch reply", err)
	}
	result := response.Build(run.ID, r.cfg.Model, msg.Role, msg.Content, r.cfg.Now())
	store.SetResult(result)

	// 6. Фоновое удаление загруженных файлов
	if len(uploaded) > 0 && r.queue != nil {
		ids := make([]string, 0, len(uploaded))
		for _, u := range uploaded {
			ids = append(ids, u.RemoteID)
		}
		r.queue.Enqueue(ids...)
	}
	return result, nil
}

// upload загружает файлы по одному в порядке добавления. Уже загруженные файлы пачки
// при ошибке не удаляются.
func (r *Runner) upload(ctx context.Context, files []staging.StagedFile) ([]ai.UploadedFile, error) {
	uploaded := make([]ai.UploadedFile, 0, len(files))
	for _, f := range files {
		data, err := f.Payload()
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrUpload, "upload "+f.Path, err)
		}
		up, err := r.remote.UploadFile(ctx, ai.UploadRequest{Name: f.Name(), ContentType: f.ContentType(), Data: data})
		if err != nil {
			if len(uploaded) > 0 {
				r.logger.Warnw("Загрузка прервана, ранее загруженные файлы остаются на сервере", "orphaned", remoteIDs(uploaded))
			}
			return nil, apperr.Reclassify(apperr.ErrUpload, "upload "+f.Path, err)
		}
		up.LocalPath, up.Kind = f.Path, string(f.Kind)
		uploaded = append(uploaded, up)
		r.logger.Infow("Файл загружен", "path", f.Path, "fileID", up.RemoteID)
	}
	return uploaded, nil
}

func remoteIDs(files []ai.UploadedFile) []string {
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.RemoteID)
	}
	return ids
}

func (r *Runner) resolveAssistant(ctx context.Context, store *conversation.Store, msgs []conversation.Message, withFiles bool) (string, error) {
	if id := store.Handle().AssistantID; id != "" {
		return id, nil
	}
	instructions := r.cfg.InitMsg
	for _, m := range msgs {
		if m.Role == conversation.RoleSystem {
			instructions = m.Content
			break
		}
	}
	tools := []ai.Tool{}
	if withFiles {
		tools = append(tools, ai.ToolCodeInterpreter)
	}
	id, err := r.remote.CreateAssistant(ctx, ai.AssistantRequest{
		Model:        r.cfg.Model,
		Name:         r.cfg.AssistantName,
		Instructions: instructions,
		Tools:        tools,
		Temperature:  store.Options().Temperature,
	})
	if err != nil {
		return "", apperr.Reclassify(apperr.ErrAssistant, "create assistant", err)
	}
	store.SetAssistantID(id)
	r.logger.Infow("Ассистент создан", "assistantID", id, "model", r.cfg.Model)
	return id, nil
}

// threadMessages убирает system сообщения (они уходят в инструкции ассистента)
// и прикрепляет все файлы к первому сообщению пользователя. attached ложно,
// если файлы были, а сообщения пользователя нет.
func threadMessages(msgs []conversation.Message, uploaded []ai.UploadedFile) (out []ai.ThreadMessage, attached bool) {
	out = make([]ai.ThreadMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == conversation.RoleSystem {
			continue
		}
		tm := ai.ThreadMessage{Role: string(m.Role), Content: m.Content}
		if !attached && m.Role == conversation.RoleUser && len(uploaded) > 0 {
			for _, u := range uploaded {
				tm.Attachments = append(tm.Attachments, ai.Attachment{FileID: u.RemoteID, Tools: []ai.Tool{ai.ToolCodeInterpreter}})
			}
			attached = true
		}
		out = append(out, tm)
	}
	return out, attached || len(uploaded) == 0
}

func (r *Runner) resolveThread(ctx context.Context, store *conversation.Store, pending []conversation.Message, uploaded []ai.UploadedFile) (string, error) {
	msgs, attached := threadMessages(pending, uploaded)
	if !attached {
		r.logger.Warnw("Нет нового сообщения пользователя: загруженные файлы не прикреплены к треду",
			"fileIDs", remoteIDs(uploaded))
	}
	if id := store.Handle().ThreadID; id != "" {
		// Тред уже есть: дописываем только новые реплики.
		for _, m := range msgs {
			if err := r.remote.AddMessage(ctx, id, m); err != nil {
				return "", apperr.Reclassify(apperr.ErrThread, "add message", err)
			}
		}
		return id, nil
	}
	id, err := r.remote.CreateThread(ctx, msgs)
	if err != nil {
		return "", apperr.Reclassify(apperr.ErrThread, "create thread", err)
	}
	store.SetThreadID(id)
	r.logger.Infow("Тред создан", "threadID", id, "messages", len(msgs))
	return id, nil
}

// wait опрашивает статус run с фиксированным интервалом не более MaxPolls раз.
func (r *Runner) wait(ctx context.Context, threadID, runID string) error {
	t := time.NewTimer(r.cfg.PollInterval)
	defer t.Stop()
	for attempt := 1; attempt <= r.cfg.MaxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return apperr.Wrap(apperr.ErrRun, "poll run", context.Cause(ctx))
		case <-t.C:
		}
		run, err := r.remote.GetRun(ctx, threadID, runID)
		if err != nil {
			return apperr.Reclassify(apperr.ErrRun, "poll run", err)
		}
		switch {
		case run.Status == ai.RunStatusCompleted:
			r.logger.Infow("Run завершён", "runID", runID, "polls", attempt)
			return nil
		case run.Status.Failed():
			reason := "unknown error"
			if run.LastError != nil && run.LastError.Message != "" {
				reason = run.LastError.Message
			}
			return apperr.Newf(apperr.ErrRun, "run "+runID, "run %s: %s", run.Status, reason)
		}
		r.logger.Debugw("Ожидание run", "runID", runID, "status", run.Status, "attempt", attempt)
		t.Reset(r.cfg.PollInterval)
	}
	return apperr.Newf(apperr.ErrTimeout, "poll run", "run %s did not complete after %d polls (%s)",
		runID, r.cfg.MaxPolls, time.Duration(r.cfg.MaxPolls)*r.cfg.PollInterval)
}
