package ai

import (
	"AzureAssistant/internal/ai/aitest"
	"AzureAssistant/internal/apperr"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const testEndpoint = "https://example.openai.azure.com"

func newTestClient(t *testing.T) (*AssistantsClient, *aitest.Transport) {
	t.Helper()
	tr := aitest.NewTransport()
	c := NewAssistantsClient(ClientConfig{
		Endpoint:   testEndpoint,
		APIKey:     "secret",
		APIVersion: "2024-08-01-preview",
		Timeout:    5 * time.Second,
		Transport:  tr,
	}, nil)
	return c, tr
}

func TestCreateAssistantWireFormat(t *testing.T) {
	c, tr := newTestClient(t)
	tr.JSON(http.MethodPost, "/openai/assistants", http.StatusOK, `{"id":"asst_1","object":"assistant"}`)

	id, err := c.CreateAssistant(context.Background(), AssistantRequest{
		Model:        "gpt-4o",
		Name:         "helper",
		Instructions: "be brief",
		Temperature:  0.3,
	})
	require.NoError(t, err)
	require.Equal(t, "asst_1", id)

	req, ok := tr.Last(http.MethodPost, "/openai/assistants")
	require.True(t, ok)
	require.Equal(t, "secret", req.Header.Get("api-key"))
	require.Equal(t, "2024-08-01-preview", req.Query["api-version"])
	require.Contains(t, req.Header.Get("Content-Type"), "application/json")
	require.JSONEq(t, `{"model":"gpt-4o","name":"helper","instructions":"be brief","tools":[],"temperature":0.3}`, string(req.Body))
}

func TestCreateThreadWithAttachments(t *testing.T) {
	c, tr := newTestClient(t)
	tr.JSON(http.MethodPost, "/openai/threads", http.StatusOK, `{"id":"thread_1"}`)

	id, err := c.CreateThread(context.Background(), []ThreadMessage{
		{Role: "user", Content: "look", Attachments: []Attachment{{FileID: "file_1", Tools: []Tool{ToolCodeInterpreter}}}},
		{Role: "assistant", Content: "ok"},
	})
	require.NoError(t, err)
	require.Equal(t, "thread_1", id)

	req, _ := tr.Last(http.MethodPost, "/openai/threads")
	body := gjson.ParseBytes(req.Body)
	require.Equal(t, "file_1", body.Get("messages.0.attachments.0.file_id").String())
	require.Equal(t, "code_interpreter", body.Get("messages.0.attachments.0.tools.0.type").String())
	require.False(t, body.Get("messages.1.attachments").Exists())
}

func TestRemoteErrorKeepsStatusAndBody(t *testing.T) {
	c, tr := newTestClient(t)
	tr.JSON(http.MethodPost, "/openai/threads/thread_1/runs", http.StatusTooManyRequests, `{"error":{"code":"429","message":"quota exceeded"}}`)

	_, err := c.CreateRun(context.Background(), "thread_1", "asst_1")
	require.ErrorIs(t, err, apperr.ErrRemote)

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, http.StatusTooManyRequests, e.Status)
	require.JSONEq(t, `{"error":{"code":"429","message":"quota exceeded"}}`, e.Body)
	// без повторов
	require.Equal(t, 1, tr.Calls(http.MethodPost, "/openai/threads/thread_1/runs"))
}

func TestGetRunDecodesLastError(t *testing.T) {
	c, tr := newTestClient(t)
	tr.JSON(http.MethodGet, "/openai/threads/thread_1/runs/run_1", http.StatusOK,
		`{"id":"run_1","status":"failed","last_error":{"code":"server_error","message":"boom"}}`)

	run, err := c.GetRun(context.Background(), "thread_1", "run_1")
	require.NoError(t, err)
	require.Equal(t, RunStatusFailed, run.Status)
	require.True(t, run.Status.Failed())
	require.NotNil(t, run.LastError)
	require.Equal(t, "boom", run.LastError.Message)
}

func TestLatestMessage(t *testing.T) {
	c, tr := newTestClient(t)
	tr.JSON(http.MethodGet, "/openai/threads/thread_1/messages", http.StatusOK,
		`{"data":[{"role":"assistant","content":[{"type":"text","text":{"value":"42","annotations":[]}}]}]}`)

	msg, err := c.LatestMessage(context.Background(), "thread_1")
	require.NoError(t, err)
	require.Equal(t, ReplyMessage{Role: "assistant", Content: "42"}, msg)

	req, _ := tr.Last(http.MethodGet, "/openai/threads/thread_1/messages")
	require.Equal(t, "1", req.Query["limit"])
}

func TestLatestMessageEmptyThread(t *testing.T) {
	c, tr := newTestClient(t)
	tr.JSON(http.MethodGet, "/openai/threads/thread_1/messages", http.StatusOK, `{"data":[]}`)

	_, err := c.LatestMessage(context.Background(), "thread_1")
	require.ErrorIs(t, err, apperr.ErrRemote)
}

func TestMessageTextShapes(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"structured", `[{"type":"text","text":{"value":"hi"}}]`, "hi"},
		{"plain text field", `[{"type":"text","text":"hi"}]`, "hi"},
		{"string parts", `["a","b"]`, "a\nb"},
		{"plain string", `"hello"`, "hello"},
		{"skips images", `[{"type":"image_file","image_file":{"file_id":"f"}},{"text":{"value":"x"}}]`, "x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, MessageText(gjson.Parse(tc.content)))
		})
	}
}

func TestUploadAndDeleteFile(t *testing.T) {
	c, tr := newTestClient(t)
	tr.JSON(http.MethodPost, "/openai/files", http.StatusOK, `{"id":"file_1","object":"file","bytes":5,"filename":"notes.txt","purpose":"assistants"}`)
	tr.JSON(http.MethodDelete, "/openai/files/file_1", http.StatusOK, `{"id":"file_1","object":"file","deleted":true}`)

	up, err := c.UploadFile(context.Background(), UploadRequest{Name: "notes.txt", ContentType: "text/plain", Data: []byte("hello")})
	require.NoError(t, err)
	require.Equal(t, "file_1", up.RemoteID)

	req, _ := tr.Last(http.MethodPost, "/openai/files")
	require.Contains(t, req.Header.Get("Content-Type"), "multipart/form-data")
	require.Contains(t, string(req.Body), `filename="notes.txt"`)
	require.Contains(t, string(req.Body), "assistants")
	require.Contains(t, string(req.Body), "hello")

	require.NoError(t, c.DeleteFile(context.Background(), "file_1"))
	require.Equal(t, 1, tr.Calls(http.MethodDelete, "/openai/files/file_1"))
}

func TestListFiles(t *testing.T) {
	c, tr := newTestClient(t)
	tr.JSON(http.MethodGet, "/openai/files", http.StatusOK,
		`{"object":"list","data":[{"id":"file_1","object":"file","bytes":5,"filename":"a.txt","purpose":"assistants","created_at":1,"status":"processed"}]}`)

	files, err := c.ListFiles(context.Background())
	require.NoError(t, err)
	require.Equal(t, []RemoteFile{{ID: "file_1", Name: "a.txt", Bytes: 5, Purpose: "assistants"}}, files)
}

func TestDeleteAssistant(t *testing.T) {
	c, tr := newTestClient(t)
	tr.JSON(http.MethodDelete, "/openai/assistants/asst_1", http.StatusOK, `{"id":"asst_1","deleted":true}`)

	require.NoError(t, c.DeleteAssistant(context.Background(), "asst_1"))

	tr.JSON(http.MethodDelete, "/openai/assistants/asst_2", http.StatusNotFound, `{"error":{"message":"no such assistant"}}`)
	err := c.DeleteAssistant(context.Background(), "asst_2")
	require.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
}

func TestAddMessage(t *testing.T) {
	c, tr := newTestClient(t)
	tr.JSON(http.MethodPost, "/openai/threads/thread_1/messages", http.StatusOK, `{"id":"msg_1"}`)

	require.NoError(t, c.AddMessage(context.Background(), "thread_1", ThreadMessage{Role: "user", Content: "again"}))

	req, _ := tr.Last(http.MethodPost, "/openai/threads/thread_1/messages")
	var got ThreadMessage
	require.NoError(t, json.Unmarshal(req.Body, &got))
	require.Equal(t, ThreadMessage{Role: "user", Content: "again"}, got)
}
