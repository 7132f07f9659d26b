package ai

import "context"

// Remote — удалённые операции Assistants API, на которых строится сценарий run.
// Все реализации должны быть взаимозаменяемыми.
type Remote interface {
	UploadFile(ctx context.Context, f UploadRequest) (UploadedFile, error)
	DeleteFile(ctx context.Context, fileID string) error
	ListFiles(ctx context.Context) ([]RemoteFile, error)

	CreateAssistant(ctx context.Context, req AssistantRequest) (string, error)
	DeleteAssistant(ctx context.Context, assistantID string) error

	CreateThread(ctx context.Context, msgs []ThreadMessage) (string, error)
	AddMessage(ctx context.Context, threadID string, msg ThreadMessage) error

	CreateRun(ctx context.Context, threadID, assistantID string) (Run, error)
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	LatestMessage(ctx context.Context, threadID string) (ReplyMessage, error)
}

// UploadRequest — содержимое одного файла для multipart загрузки.
type UploadRequest struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadedFile живёт только в пределах одного run.
type UploadedFile struct {
	RemoteID  string
	LocalPath string
	Kind      string
}

type RemoteFile struct {
	ID      string `json:"id"`
	Name    string `json:"filename"`
	Bytes   int64  `json:"bytes"`
	Purpose string `json:"purpose"`
}

type Tool struct {
	Type string `json:"type"`
}

// ToolCodeInterpreter даёт ассистенту доступ к приложенным файлам.
var ToolCodeInterpreter = Tool{Type: "code_interpreter"}

type AssistantRequest struct {
	Model        string  `json:"model"`
	Name         string  `json:"name"`
	Instructions string  `json:"instructions"`
	Tools        []Tool  `json:"tools"`
	Temperature  float64 `json:"temperature"`
}

type Attachment struct {
	FileID string `json:"file_id"`
	Tools  []Tool `json:"tools"`
}

type ThreadMessage struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// RunStatus — состояние асинхронного run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusExpired        RunStatus = "expired"
)

// Failed сообщает, что run завершился неуспешно.
func (s RunStatus) Failed() bool {
	return s == RunStatusFailed || s == RunStatusCancelled || s == RunStatusExpired
}

type RunLastError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Run struct {
	ID        string        `json:"id"`
	Status    RunStatus     `json:"status"`
	LastError *RunLastError `json:"last_error"`
}

// ReplyMessage — последнее сообщение треда в виде текста.
type ReplyMessage struct {
	Role    string
	Content string
}
