package cleanup

import (
	"AzureAssistant/internal/ai"
	"AzureAssistant/internal/apperr"
	"AzureAssistant/internal/conversation"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Coordinator удаляет удалённые ресурсы по запросу вызывающего. Ошибки возвращаются.
type Coordinator struct {
	remote ai.Remote
	logger *zap.SugaredLogger
}

func NewCoordinator(remote ai.Remote, logger *zap.SugaredLogger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Coordinator{remote: remote, logger: logger}
}

// DeleteFile удаляет загруженный файл одним запросом.
func (c *Coordinator) DeleteFile(ctx context.Context, fileID string) error {
	if fileID == "" {
		return apperr.New(apperr.ErrValidation, "delete file", "file id is required")
	}
	if err := c.remote.DeleteFile(ctx, fileID); err != nil {
		return apperr.Reclassify(apperr.ErrRemote, "delete file", err)
	}
	c.logger.Infow("Файл удалён", "fileID", fileID)
	return nil
}

// DeleteAssistant удаляет ассистента диалога. Без ассистента запрос не отправляется.
// После удаления забываются и ассистент, и тред.
func (c *Coordinator) DeleteAssistant(ctx context.Context, store *conversation.Store) error {
	h := store.Handle()
	if h.AssistantID == "" {
		return nil
	}
	if err := c.remote.DeleteAssistant(ctx, h.AssistantID); err != nil {
		return apperr.Reclassify(apperr.ErrRemote, "delete assistant", err)
	}
	store.ResetHandle()
	c.logger.Infow("Ассистент удалён", "assistantID", h.AssistantID, "threadID", h.ThreadID)
	return nil
}

// Queue — фоновая очередь удаления файлов после успешного run.
// Ошибки только логируются, вызывающему они не видны.
type Queue struct {
	remote  ai.Remote
	logger  *zap.SugaredLogger
	timeout time.Duration

	jobs      chan string
	wg        sync.WaitGroup
	pending   sync.WaitGroup
	closeOnce sync.Once

	mu     sync.Mutex
	closed bool
}

// NewQueue запускает обработчик очереди. timeout ограничивает одно удаление.
func NewQueue(remote ai.Remote, logger *zap.SugaredLogger, timeout time.Duration) *Queue {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	q := &Queue{remote: remote, logger: logger, timeout: timeout, jobs: make(chan string, 64)}
	q.wg.Add(1)
	go q.loop()
	return q
}

func (q *Queue) loop() {
	defer q.wg.Done()
	for id := range q.jobs {
		q.delete(id)
		q.pending.Done()
	}
}

func (q *Queue) delete(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if err := q.remote.DeleteFile(ctx, id); err != nil {
		q.logger.Warnw("Не удалось удалить загруженный файл", "fileID", id, "error", err)
		return
	}
	q.logger.Debugw("Загруженный файл удалён", "fileID", id)
}

// Enqueue ставит файлы в очередь на удаление и не ждёт результата.
// После Close обработчика нет: файлы удаляются сразу, в вызывающей горутине.
func (q *Queue) Enqueue(fileIDs ...string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warnw("Очередь удаления закрыта, файлы удаляются синхронно", "fileIDs", fileIDs)
		for _, id := range fileIDs {
			q.delete(id)
		}
		return
	}
	defer q.mu.Unlock()
	for _, id := range fileIDs {
		q.pending.Add(1)
		select {
		case q.jobs <- id:
		default:
			// очередь заполнена — не блокируем вызывающего
			go func(id string) { q.jobs <- id }(id)
		}
	}
}

// Wait ждёт обработки всех поставленных задач.
func (q *Queue) Wait() {
	q.pending.Wait()
}

// Close дожидается оставшихся удалений и останавливает обработчик.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		q.pending.Wait()
		close(q.jobs)
		q.wg.Wait()
	})
}
