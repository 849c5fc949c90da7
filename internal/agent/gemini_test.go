package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"google.golang.org/genai"
)

func newTestClient(t *testing.T) *GeminiClient {
	t.Helper()
	client, err := NewGeminiClient(context.Background(), "test-key", "")
	require.NoError(t, err)
	return client
}

func TestNewGeminiClient_RequiresAPIKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), "", "")
	require.Error(t, err)
}

// One client is shared across every concurrent run, so thread bookkeeping
// must tolerate parallel sessions touching the history map.
func TestThreadHistory_ConcurrentSessions(t *testing.T) {
	client := newTestClient(t)
	editor := client.Editor()

	const sessions = 16
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			threadID := fmt.Sprintf("edit-%d", i)
			assert.NoError(t, editor.Start(context.Background(), threadID, "# Doc\n"))
			client.appendThread(threadID, genai.NewContentFromText("follow-up", genai.RoleUser))
		}(i)
	}
	wg.Wait()

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.threads, sessions)
	for i := 0; i < sessions; i++ {
		assert.Len(t, client.threads[fmt.Sprintf("edit-%d", i)], 2)
	}
}

func TestSeedThread_IsIdempotent(t *testing.T) {
	client := newTestClient(t)

	first := genai.NewContentFromText("first", genai.RoleUser)
	second := genai.NewContentFromText("second", genai.RoleUser)

	assert.True(t, client.seedThread("t1", first))
	assert.False(t, client.seedThread("t1", second))

	history := client.threadHistory("t1")
	require.Len(t, history, 1)
	assert.Same(t, first, history[0])
}

func TestThreadHistory_ReturnsCopy(t *testing.T) {
	client := newTestClient(t)
	client.seedThread("t1", genai.NewContentFromText("seed", genai.RoleUser))

	history := client.threadHistory("t1")
	history[0] = nil

	fresh := client.threadHistory("t1")
	require.Len(t, fresh, 1)
	assert.NotNil(t, fresh[0])
}
