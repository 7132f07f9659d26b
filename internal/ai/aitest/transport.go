// Package aitest содержит поддельный HTTP транспорт для тестов клиентов Azure OpenAI.
package aitest

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Request — записанный запрос.
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Header http.Header
	Body   []byte
}

// Handler формирует ответ: статус и JSON тело.
type Handler func(req Request) (int, string)

// Transport — http.RoundTripper, отвечающий по таблице маршрутов "METHOD /path".
type Transport struct {
	mu       sync.Mutex
	routes   map[string]Handler
	requests []Request
}

func NewTransport() *Transport {
	return &Transport{routes: make(map[string]Handler)}
}

func key(method, path string) string { return method + " " + path }

func (t *Transport) Handle(method, path string, h Handler) {
	t.mu.Lock()
	t.routes[key(method, path)] = h
	t.mu.Unlock()
}

// JSON регистрирует фиксированный ответ.
func (t *Transport) JSON(method, path string, status int, body string) {
	t.Handle(method, path, func(Request) (int, string) { return status, body })
}

// Sequence отвечает телами по очереди, повторяя последнее.
func (t *Transport) Sequence(method, path string, bodies ...string) {
	var (
		mu sync.Mutex
		i  int
	)
	t.Handle(method, path, func(Request) (int, string) {
		mu.Lock()
		defer mu.Unlock()
		b := bodies[min(i, len(bodies)-1)]
		i++
		return http.StatusOK, b
	})
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		_ = req.Body.Close()
		body = b
	}
	query := make(map[string]string)
	for k, v := range req.URL.Query() {
		query[k] = strings.Join(v, ",")
	}
	rec := Request{Method: req.Method, Path: req.URL.Path, Query: query, Header: req.Header.Clone(), Body: body}

	t.mu.Lock()
	t.requests = append(t.requests, rec)
	h, ok := t.routes[key(req.Method, req.URL.Path)]
	t.mu.Unlock()

	status, respBody := http.StatusNotFound, fmt.Sprintf(`{"error":{"code":"NotFound","message":"no route for %s %s"}}`, req.Method, req.URL.Path)
	if ok {
		status, respBody = h(rec)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(strings.NewReader(respBody)),
		ContentLength: int64(len(respBody)),
		Request:       req,
	}, nil
}

// Calls возвращает число запросов на маршрут.
func (t *Transport) Calls(method, path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, r := range t.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Requests возвращает копию всех записанных запросов по порядку.
func (t *Transport) Requests() []Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Request(nil), t.requests...)
}

// Last возвращает последний запрос на маршрут.
func (t *Transport) Last(method, path string) (Request, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.requests) - 1; i >= 0; i-- {
		if r := t.requests[i]; r.Method == method && r.Path == path {
			return r, true
		}
	}
	return Request{}, false
}
