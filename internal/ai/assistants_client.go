package ai

import (
	"AzureAssistant/internal/apperr"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ClientConfig — параметры подключения к Azure OpenAI.
type ClientConfig struct {
	Endpoint   string // без завершающего '/'
	APIKey     string
	APIVersion string
	Timeout    time.Duration
	// Transport отправляет HTTP запросы. nil — http.DefaultTransport.
	Transport http.RoundTripper
}

// AssistantsClient реализует Remote через Azure OpenAI Assistants (files, assistants, threads, runs).
// Повторов нет: SDK настроен на 0 ретраев, единственный цикл ожидания — опрос run.
type AssistantsClient struct {
	client *openai.Client
	logger *zap.SugaredLogger
}

func NewAssistantsClient(cfg ClientConfig, logger *zap.SugaredLogger) *AssistantsClient {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	opts := []option.RequestOption{
		azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
		azure.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Transport: transport}),
		option.WithMaxRetries(0),
		option.WithHeader("OpenAI-Beta", "assistants=v2"),
		option.WithMiddleware(keepErrorBody),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	c := openai.NewClient(opts...)
	return &AssistantsClient{client: &c, logger: logger}
}

// call логирует длительность удалённого вызова и приводит ошибку SDK к apperr.ErrRemote.
func (c *AssistantsClient) call(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	dur := time.Since(start)
	if err != nil {
		c.logger.Errorw("Ошибка запроса к Azure OpenAI", "op", op, "duration", dur.String(), "error", err)
		return remoteError(op, err)
	}
	c.logger.Debugw("Ответ Azure OpenAI получен", "op", op, "duration", dur.String())
	return nil
}

// errorBody — тело ответа с ошибкой, прочитанное целиком. SDK оставляет в RawJSON
// только вложенный объект error, а наружу отдаём ответ сервера как есть.
type errorBody struct {
	*bytes.Reader
	raw []byte
}

func (*errorBody) Close() error { return nil }

func keepErrorBody(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	res, err := next(req)
	if err != nil || res == nil || res.Body == nil || res.StatusCode < http.StatusBadRequest {
		return res, err
	}
	raw, rerr := io.ReadAll(res.Body)
	_ = res.Body.Close()
	res.Body = &errorBody{Reader: bytes.NewReader(raw), raw: raw}
	if rerr != nil {
		return res, rerr
	}
	return res, nil
}

func remoteError(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		body := apiErr.RawJSON()
		if apiErr.Response != nil && apiErr.Response.Body != nil {
			if eb, ok := apiErr.Response.Body.(*errorBody); ok {
				if len(eb.raw) > 0 {
					body = string(eb.raw)
				}
			} else if b, rerr := io.ReadAll(apiErr.Response.Body); rerr == nil && len(b) > 0 {
				body = string(b)
			}
		}
		return &apperr.Error{Kind: apperr.ErrRemote, Op: op, Status: apiErr.StatusCode, Body: strings.TrimSpace(body), Err: err}
	}
	return apperr.Wrap(apperr.ErrRemote, op, err)
}

func (c *AssistantsClient) UploadFile(ctx context.Context, f UploadRequest) (UploadedFile, error) {
	var obj *openai.FileObject
	err := c.call("upload file", func() error {
		var err error
		obj, err = c.client.Files.New(ctx, openai.FileNewParams{
			File:    openai.File(bytes.NewReader(f.Data), f.Name, f.ContentType),
			Purpose: openai.FilePurposeAssistants,
		})
		return err
	})
	if err != nil {
		return UploadedFile{}, err
	}
	return UploadedFile{RemoteID: obj.ID, LocalPath: f.Name}, nil
}

func (c *AssistantsClient) DeleteFile(ctx context.Context, fileID string) error {
	return c.call("delete file", func() error {
		_, err := c.client.Files.Delete(ctx, fileID)
		return err
	})
}

func (c *AssistantsClient) ListFiles(ctx context.Context) ([]RemoteFile, error) {
	var out []RemoteFile
	err := c.call("list files", func() error {
		page, err := c.client.Files.List(ctx, openai.FileListParams{})
		if err != nil {
			return err
		}
		for _, f := range page.Data {
			out = append(out, RemoteFile{ID: f.ID, Name: f.Filename, Bytes: f.Bytes, Purpose: string(f.Purpose)})
		}
		return nil
	})
	return out, err
}

type idResponse struct {
	ID string `json:"id"`
}

func (c *AssistantsClient) CreateAssistant(ctx context.Context, req AssistantRequest) (string, error) {
	if req.Tools == nil {
		req.Tools = []Tool{}
	}
	var res idResponse
	err := c.call("create assistant", func() error {
		return c.client.Post(ctx, "assistants", req, &res)
	})
	return res.ID, err
}

func (c *AssistantsClient) DeleteAssistant(ctx context.Context, assistantID string) error {
	var res json.RawMessage
	return c.call("delete assistant", func() error {
		return c.client.Delete(ctx, "assistants/"+assistantID, nil, &res)
	})
}

func (c *AssistantsClient) CreateThread(ctx context.Context, msgs []ThreadMessage) (string, error) {
	if msgs == nil {
		msgs = []ThreadMessage{}
	}
	body := struct {
		Messages []ThreadMessage `json:"messages"`
	}{Messages: msgs}
	var res idResponse
	err := c.call("create thread", func() error {
		return c.client.Post(ctx, "threads", body, &res)
	})
	return res.ID, err
}

func (c *AssistantsClient) AddMessage(ctx context.Context, threadID string, msg ThreadMessage) error {
	var res idResponse
	return c.call("add message", func() error {
		return c.client.Post(ctx, "threads/"+threadID+"/messages", msg, &res)
	})
}

func (c *AssistantsClient) CreateRun(ctx context.Context, threadID, assistantID string) (Run, error) {
	body := struct {
		AssistantID string `json:"assistant_id"`
	}{AssistantID: assistantID}
	var run Run
	err := c.call("create run", func() error {
		return c.client.Post(ctx, "threads/"+threadID+"/runs", body, &run)
	})
	return run, err
}

func (c *AssistantsClient) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	var run Run
	err := c.call("get run", func() error {
		return c.client.Get(ctx, "threads/"+threadID+"/runs/"+runID, nil, &run)
	})
	return run, err
}

func (c *AssistantsClient) LatestMessage(ctx context.Context, threadID string) (ReplyMessage, error) {
	var raw json.RawMessage
	err := c.call("list messages", func() error {
		return c.client.Get(ctx, "threads/"+threadID+"/messages", nil, &raw, option.WithQuery("limit", "1"))
	})
	if err != nil {
		return ReplyMessage{}, err
	}
	msg := gjson.GetBytes(raw, "data.0")
	if !msg.Exists() {
		return ReplyMessage{}, apperr.New(apperr.ErrRemote, "list messages", "thread has no messages")
	}
	return ReplyMessage{Role: msg.Get("role").String(), Content: MessageText(msg.Get("content"))}, nil
}

// MessageText извлекает текст из content сообщения: массив частей вида {text:{value}}
// (или {text:"..."}), либо простая строка.
func MessageText(content gjson.Result) string {
	if !content.IsArray() {
		return content.String()
	}
	parts := make([]string, 0, 1)
	for _, part := range content.Array() {
		text := part.Get("text")
		switch {
		case text.IsObject():
			parts = append(parts, text.Get("value").String())
		case text.Exists():
			parts = append(parts, text.String())
		case part.Type == gjson.String:
			parts = append(parts, part.String())
		}
	}
	return strings.Join(parts, "\n")
}
