package cleanup

import (
	"AzureAssistant/internal/ai"
	"AzureAssistant/internal/apperr"
	"AzureAssistant/internal/conversation"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeRemote записывает удаления; остальные методы берутся из заглушки.
type fakeRemote struct {
	*ai.StubRemote

	mu         sync.Mutex
	deleted    []string
	assistants []string
	fail       map[string]error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{StubRemote: ai.NewStubRemote(""), fail: map[string]error{}}
}

func (f *fakeRemote) DeleteFile(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.fail[id]
}

func (f *fakeRemote) DeleteAssistant(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assistants = append(f.assistants, id)
	return f.fail[id]
}

func (f *fakeRemote) deletedFiles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func TestDeleteFile(t *testing.T) {
	remote := newFakeRemote()
	remote.fail["file_bad"] = &apperr.Error{Kind: apperr.ErrRemote, Op: "delete file", Status: 404, Body: "gone"}
	c := NewCoordinator(remote, nil)

	require.NoError(t, c.DeleteFile(context.Background(), "file_1"))

	err := c.DeleteFile(context.Background(), "file_bad")
	require.ErrorIs(t, err, apperr.ErrRemote)
	require.Equal(t, 404, apperr.StatusOf(err))

	require.ErrorIs(t, c.DeleteFile(context.Background(), ""), apperr.ErrValidation)
	require.Equal(t, []string{"file_1", "file_bad"}, remote.deletedFiles())
}

func TestDeleteAssistantWithoutAssistantIsNoop(t *testing.T) {
	remote := newFakeRemote()
	c := NewCoordinator(remote, nil)

	require.NoError(t, c.DeleteAssistant(context.Background(), conversation.NewStore()))
	require.Empty(t, remote.assistants)
}

func TestDeleteAssistantResetsHandle(t *testing.T) {
	remote := newFakeRemote()
	c := NewCoordinator(remote, nil)
	store := conversation.NewStore()
	store.SetAssistantID("asst_1")
	store.SetThreadID("thread_1")

	require.NoError(t, c.DeleteAssistant(context.Background(), store))
	require.Equal(t, []string{"asst_1"}, remote.assistants)
	require.Equal(t, conversation.Handle{}, store.Handle())
}

func TestDeleteAssistantFailureKeepsHandle(t *testing.T) {
	remote := newFakeRemote()
	remote.fail["asst_1"] = errors.New("connection refused")
	c := NewCoordinator(remote, nil)
	store := conversation.NewStore()
	store.SetAssistantID("asst_1")

	err := c.DeleteAssistant(context.Background(), store)
	require.ErrorIs(t, err, apperr.ErrRemote)
	require.Equal(t, "asst_1", store.Handle().AssistantID)
}

func TestQueueSwallowsErrors(t *testing.T) {
	remote := newFakeRemote()
	remote.fail["file_2"] = errors.New("boom")
	q := NewQueue(remote, nil, time.Second)

	q.Enqueue("file_1", "file_2", "file_3")
	q.Close()

	require.ElementsMatch(t, []string{"file_1", "file_2", "file_3"}, remote.deletedFiles())
}

func TestQueueWait(t *testing.T) {
	remote := newFakeRemote()
	q := NewQueue(remote, nil, time.Second)
	defer q.Close()

	for i := 0; i < 100; i++ {
		q.Enqueue("file")
	}
	q.Wait()
	require.Len(t, remote.deletedFiles(), 100)
}

func TestQueueEnqueueAfterClose(t *testing.T) {
	remote := newFakeRemote()
	remote.fail["file_2"] = errors.New("boom")
	q := NewQueue(remote, nil, time.Second)
	q.Close()

	require.NotPanics(t, func() { q.Enqueue("file_1", "file_2") })
	require.Equal(t, []string{"file_1", "file_2"}, remote.deletedFiles())
	q.Close()
}
