// Package response приводит ответ ассистента к стабильной форме и сохраняет его в файл.
package response

import (
	"AzureAssistant/internal/apperr"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// FinishReasonStop — единственная причина завершения, которую отдаёт клиент.
// Фактическая причина из run не передаётся.
const FinishReasonStop = "stop"

// Kind — формат сохранения ответа.
type Kind string

const (
	KindJSON Kind = "json"
	KindText Kind = "text"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// CompletionResult — результат последнего успешного run.
type CompletionResult struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Model   string    `json:"model"`
	Choices []Choice  `json:"choices"`
}

// Build собирает результат из сообщения ассистента.
func Build(runID, model, role, content string, now time.Time) *CompletionResult {
	if role == "" {
		role = "assistant"
	}
	return &CompletionResult{
		ID:      runID,
		Created: now,
		Model:   model,
		Choices: []Choice{{
			Index:        0,
			Message:      Message{Role: role, Content: content},
			FinishReason: FinishReasonStop,
		}},
	}
}

func errNoResult(op string) error {
	return apperr.New(apperr.ErrState, op, "no completion result; call Run first")
}

// Reply возвращает текст ответа.
func Reply(r *CompletionResult) (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", errNoResult("reply")
	}
	return r.Choices[0].Message.Content, nil
}

// Raw возвращает результат целиком.
func Raw(r *CompletionResult) (*CompletionResult, error) {
	if r == nil {
		return nil, errNoResult("raw result")
	}
	return r, nil
}

// PersistOptions — куда и в каком формате сохранить ответ. Пустой Kind — json.
type PersistOptions struct {
	FileName string
	Kind     Kind
}

// Persist сохраняет ответ в файл. Для json: если ответ сам является JSON — он форматируется,
// иначе записывается как JSON‑строка. Для text: содержимое вариантов через пустую строку.
func Persist(r *CompletionResult, opts PersistOptions) error {
	const op = "persist"
	if strings.TrimSpace(opts.FileName) == "" {
		return apperr.New(apperr.ErrValidation, op, "fileName is required")
	}
	if r == nil {
		return errNoResult(op)
	}

	var data []byte
	switch opts.Kind {
	case KindJSON, "":
		reply, err := Reply(r)
		if err != nil {
			return err
		}
		data, err = encodeJSONReply(reply)
		if err != nil {
			return apperr.Wrap(apperr.ErrValidation, op, err)
		}
	case KindText:
		parts := make([]string, 0, len(r.Choices))
		for _, c := range r.Choices {
			parts = append(parts, c.Message.Content)
		}
		data = []byte(strings.Join(parts, "\n\n"))
	default:
		return apperr.Newf(apperr.ErrValidation, op, "unsupported kind %q", opts.Kind)
	}

	if err := writeFileAtomic(opts.FileName, data, 0o644); err != nil {
		return fmt.Errorf("persist %s: %w", opts.FileName, err)
	}
	return nil
}

// encodeJSONReply отдаёт JSON без завершающего перевода строки в обеих ветках, как и text.
func encodeJSONReply(reply string) ([]byte, error) {
	trimmed := strings.TrimSpace(reply)
	if trimmed != "" && gjson.Valid(trimmed) {
		out := pretty.PrettyOptions([]byte(trimmed), &pretty.Options{Width: 80, Indent: "  "})
		return bytes.TrimRight(out, "\n"), nil
	}
	// Ответ не JSON — сохраняем как строку, без экранирования <>&.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reply); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// writeFileAtomic пишет во временный файл рядом и переименовывает его, чтобы не оставить половину файла.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".persist-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	ok := false
	defer func() {
		if !ok {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	ok = true
	return nil
}
