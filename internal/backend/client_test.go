package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/ashureev/fitcoach/internal/promptctx"
)

type trackerFunc func(in, out int, model string) bool

func (f trackerFunc) TrackCall(in, out int, model string) bool { return f(in, out, model) }

func testContext() promptctx.OptimizedContext {
	return promptctx.Build(promptctx.Input{
		Profile: domain.UserProfile{Name: "Ana", Goals: []string{"strength"}},
		History: []domain.ChatMessage{
			domain.NewChatMessage(domain.RoleUser, "one"),
			domain.NewChatMessage(domain.RoleAssistant, "two"),
			domain.NewChatMessage(domain.RoleUser, "three"),
			domain.NewChatMessage(domain.RoleAssistant, "four"),
		},
	})
}

func TestSendParsesFunctionCallAndTracksUsage(t *testing.T) {
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{"message": {"content": null, "function_call": {"name": "chat_only", "arguments": "{\"message\":\"hi\"}"}}}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
		}`))
	}))
	defer srv.Close()

	var tracked []int
	c := NewClient(Config{BaseURL: srv.URL + "/v1", APIKey: "key"}, WithTracker(trackerFunc(func(in, out int, _ string) bool {
		tracked = append(tracked, in, out)
		return false
	})))

	resp, err := c.Send(context.Background(), Request{Message: "hello", Context: testContext()})
	require.NoError(t, err)
	require.NotNil(t, resp.FunctionCall)
	assert.Equal(t, FunctionChatOnly, resp.FunctionCall.Name)
	assert.False(t, resp.Fallback)
	assert.False(t, resp.WithinBudget)
	assert.Equal(t, []int{120, 30}, tracked)

	// system prompt, last 3 history messages, then the new message
	require.Len(t, got.Messages, 5)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "two", got.Messages[1].Content)
	assert.Equal(t, "hello", got.Messages[4].Content)
	assert.Equal(t, "auto", got.FunctionCall)
	assert.Len(t, got.Functions, 3)
}

func TestSendForcesFunction(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})
	resp, err := c.Send(context.Background(), Request{Message: "review", ForceFunction: FunctionAnalyzeProgress})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.True(t, resp.WithinBudget, "no usage reported means nothing to track")
	assert.Equal(t, map[string]any{"name": FunctionAnalyzeProgress}, raw["function_call"])
}

func TestSendNotConfigured(t *testing.T) {
	c := NewClient(Config{}, WithTracker(trackerFunc(func(int, int, string) bool {
		t.Fatal("no cost may be tracked without a configured backend")
		return true
	})))
	resp, err := c.Send(context.Background(), Request{Message: "hi"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.True(t, resp.Fallback)
	assert.Equal(t, NotConfiguredReply, resp.Content)
	assert.Nil(t, resp.FunctionCall)
}

func TestSendUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url, APIKey: "key", Timeout: time.Second})
	resp, err := c.Send(context.Background(), Request{Message: "hi"})
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.True(t, resp.Fallback)
	assert.Nil(t, resp.FunctionCall)
	assert.Equal(t, NetworkReply, resp.Content)
}

func TestSendNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})
	resp, err := c.Send(context.Background(), Request{Message: "hi"})
	require.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.True(t, resp.Fallback)
}

func TestSystemPromptCarriesRulesAndSentinels(t *testing.T) {
	prompt := SystemPrompt(promptctx.Build(promptctx.Input{}))
	assert.Contains(t, prompt, promptctx.NoTrainingPlan)
	assert.Contains(t, prompt, promptctx.NoProgressData)
	assert.True(t, strings.Contains(prompt, "1. Never propose an exercise that already appears on the same workout day."))
	assert.Contains(t, prompt, "3. Only reference exercise ids")
}

func TestLongHistorySummaryReachesSystemPrompt(t *testing.T) {
	var history []domain.ChatMessage
	for i := range 12 {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		history = append(history, domain.NewChatMessage(role, fmt.Sprintf("turn %d", i)))
	}
	oc := promptctx.Build(promptctx.Input{History: history})

	msgs := buildMessages(Request{Context: oc, Message: "next"})
	require.Len(t, msgs, rawHistoryMessages+2)
	assert.Equal(t, string(domain.RoleSystem), msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Conversation so far")
	assert.Contains(t, msgs[0].Content, "Recent topics")
	assert.Contains(t, msgs[0].Content, `"turn 6"`)
	for _, m := range msgs[1:] {
		assert.NotEqual(t, string(domain.RoleSystem), m.Role)
	}
	assert.Equal(t, "turn 11", msgs[len(msgs)-2].Content)
	assert.Equal(t, "next", msgs[len(msgs)-1].Content)
}

func TestShortHistoryHasNoDigest(t *testing.T) {
	assert.NotContains(t, SystemPrompt(testContext()), "Conversation so far")
}
