package conversation

import (
	"AzureAssistant/internal/apperr"
	"AzureAssistant/internal/service/response"
	"AzureAssistant/internal/staging"
	"fmt"
	"slices"
	"sync"
)

// Role — роль автора сообщения.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options — параметры генерации.
type Options struct {
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// OptionsPatch — частичное обновление Options; nil поля не меняются.
type OptionsPatch struct {
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
}

// DefaultOptions — параметры генерации нового диалога.
func DefaultOptions() Options {
	return Options{MaxTokens: 800, Temperature: 0.7, TopP: 0.95}
}

// Handle — идентификаторы удалённых ассистента и треда. Пустая строка — ещё не создан.
type Handle struct {
	AssistantID string
	ThreadID    string
}

// FileMeta — метаданные подготовленного файла без содержимого.
type FileMeta struct {
	Path string       `json:"path"`
	Kind staging.Kind `json:"kind"`
}

// Snapshot — копия состояния только для чтения.
type Snapshot struct {
	Messages    []Message  `json:"messages"`
	Files       []FileMeta `json:"files"`
	Options     Options    `json:"options"`
	AssistantID string     `json:"assistant_id,omitempty"`
	ThreadID    string     `json:"thread_id,omitempty"`
}

// Store хранит состояние одного диалога на время жизни клиента.
// Мьютекс защищает поля, но не делает Run безопасным для параллельного вызова.
type Store struct {
	mu       sync.Mutex
	messages []Message
	files    []staging.StagedFile
	options  Options
	handle   Handle
	sent     int // сколько сообщений уже доставлено в удалённый тред
	sentFile int // сколько файлов уже загружено
	result   *response.CompletionResult
}

func NewStore() *Store {
	return &Store{options: DefaultOptions()}
}

// AddMessages добавляет сообщения по порядку. Если хотя бы одно невалидно — не добавляется ни одно.
func (s *Store) AddMessages(msgs ...Message) error {
	for i, m := range msgs {
		if m.Role == "" || m.Content == "" {
			return apperr.New(apperr.ErrValidation, "add message", fmt.Sprintf("message %d: role and content are required", i))
		}
		if !m.Role.Valid() {
			return apperr.Newf(apperr.ErrValidation, "add message", "message %d: invalid role %q", i, m.Role)
		}
	}
	s.mu.Lock()
	s.messages = append(s.messages, msgs...)
	s.mu.Unlock()
	return nil
}

// AddFile подготавливает файл и добавляет его в список на загрузку.
func (s *Store) AddFile(cfg staging.FileConfig) (FileMeta, error) {
	sf, err := staging.Stage(cfg)
	if err != nil {
		return FileMeta{}, err
	}
	s.mu.Lock()
	s.files = append(s.files, sf)
	s.mu.Unlock()
	return FileMeta{Path: sf.Path, Kind: sf.Kind}, nil
}

// SetOptions сливает заданные поля с текущими параметрами.
func (s *Store) SetOptions(p OptionsPatch) Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.MaxTokens != nil {
		s.options.MaxTokens = *p.MaxTokens
	}
	if p.Temperature != nil {
		s.options.Temperature = *p.Temperature
	}
	if p.TopP != nil {
		s.options.TopP = *p.TopP
	}
	return s.options
}

// Clear сбрасывает сообщения, файлы, идентификаторы и результат. Параметры генерации сохраняются.
// Удалённые ресурсы не удаляются.
func (s *Store) Clear() {
	s.mu.Lock()
	s.messages = nil
	s.files = nil
	s.handle = Handle{}
	s.sent, s.sentFile = 0, 0
	s.result = nil
	s.mu.Unlock()
}

func (s *Store) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make([]FileMeta, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, FileMeta{Path: f.Path, Kind: f.Kind})
	}
	return Snapshot{
		Messages:    slices.Clone(s.messages),
		Files:       files,
		Options:     s.options,
		AssistantID: s.handle.AssistantID,
		ThreadID:    s.handle.ThreadID,
	}
}

func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

func (s *Store) Files() []staging.StagedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.files)
}

func (s *Store) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

func (s *Store) Handle() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// SetAssistantID запоминает ID ассистента, если он ещё не задан.
func (s *Store) SetAssistantID(id string) {
	s.mu.Lock()
	if s.handle.AssistantID == "" {
		s.handle.AssistantID = id
	}
	s.mu.Unlock()
}

// SetThreadID запоминает ID треда, если он ещё не задан.
func (s *Store) SetThreadID(id string) {
	s.mu.Lock()
	if s.handle.ThreadID == "" {
		s.handle.ThreadID = id
	}
	s.mu.Unlock()
}

// ResetHandle забывает ассистента и тред (после их удаления на удалённой стороне).
func (s *Store) ResetHandle() {
	s.mu.Lock()
	s.handle = Handle{}
	s.sent, s.sentFile = 0, 0
	s.mu.Unlock()
}

// Pending возвращает сообщения и файлы, ещё не доставленные в удалённый тред.
func (s *Store) Pending() ([]Message, []staging.StagedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages[min(s.sent, len(s.messages)):]),
		slices.Clone(s.files[min(s.sentFile, len(s.files)):])
}

// MarkSent отмечает ещё msgs сообщений и files файлов как доставленные.
func (s *Store) MarkSent(msgs, files int) {
	s.mu.Lock()
	s.sent = min(s.sent+msgs, len(s.messages))
	s.sentFile = min(s.sentFile+files, len(s.files))
	s.mu.Unlock()
}

func (s *Store) Result() *response.CompletionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Store) SetResult(r *response.CompletionResult) {
	s.mu.Lock()
	s.result = r
	s.mu.Unlock()
}
