package ai

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// StubRemote заглушка, которая не делает реальных запросов: run сразу завершается, ответ фиксированный.
type StubRemote struct {
	Reply string

	mu      sync.Mutex
	threads map[string][]ThreadMessage
}

func NewStubRemote(reply string) *StubRemote {
	if reply == "" {
		reply = "запрос получен"
	}
	return &StubRemote{Reply: reply, threads: make(map[string][]ThreadMessage)}
}

func newID(prefix string) string { return prefix + "_" + uuid.NewString()[:8] }

func (s *StubRemote) UploadFile(_ context.Context, f UploadRequest) (UploadedFile, error) {
	return UploadedFile{RemoteID: newID("file"), LocalPath: f.Name}, nil
}

func (s *StubRemote) DeleteFile(context.Context, string) error { return nil }

func (s *StubRemote) ListFiles(context.Context) ([]RemoteFile, error) { return nil, nil }

func (s *StubRemote) CreateAssistant(context.Context, AssistantRequest) (string, error) {
	return newID("asst"), nil
}

func (s *StubRemote) DeleteAssistant(context.Context, string) error { return nil }

func (s *StubRemote) CreateThread(_ context.Context, msgs []ThreadMessage) (string, error) {
	id := newID("thread")
	s.mu.Lock()
	s.threads[id] = append([]ThreadMessage(nil), msgs...)
	s.mu.Unlock()
	return id, nil
}

func (s *StubRemote) AddMessage(_ context.Context, threadID string, msg ThreadMessage) error {
	s.mu.Lock()
	s.threads[threadID] = append(s.threads[threadID], msg)
	s.mu.Unlock()
	return nil
}

func (s *StubRemote) CreateRun(context.Context, string, string) (Run, error) {
	return Run{ID: newID("run"), Status: RunStatusQueued}, nil
}

func (s *StubRemote) GetRun(_ context.Context, _ string, runID string) (Run, error) {
	return Run{ID: runID, Status: RunStatusCompleted}, nil
}

func (s *StubRemote) LatestMessage(context.Context, string) (ReplyMessage, error) {
	return ReplyMessage{Role: "assistant", Content: s.Reply}, nil
}
