package proposal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/fitcoach/internal/backend"
	"github.com/ashureev/fitcoach/internal/domain"
)

func call(name, args string) backend.Response {
	return backend.Response{FunctionCall: &backend.FunctionCall{Name: name, Arguments: args}}
}

type failureCounter map[string]int

func (f failureCounter) ObserveParseFailure(recovery string) { f[recovery]++ }

func TestParsePlainContent(t *testing.T) {
	p := NewParser()
	res := p.Parse(backend.Response{Content: "Drink water."})
	assert.Equal(t, "Drink water.", res.Message)
	assert.False(t, res.HasProposal())
	assert.NoError(t, res.Err)

	assert.Equal(t, Apology, p.Parse(backend.Response{}).Message)
}

func TestParseChatOnly(t *testing.T) {
	res := NewParser().Parse(call(backend.FunctionChatOnly, `{"message":"Rest days matter."}`))
	assert.Equal(t, "Rest days matter.", res.Message)
	assert.False(t, res.HasProposal())
}

func TestParseExerciseReplacement(t *testing.T) {
	res := NewParser().Parse(call(backend.FunctionProposeChanges, `{
		"message": "Try incline push ups instead.",
		"title": "Swap push ups",
		"description": "Replace push ups with incline push ups",
		"reasoning": "Easier on the wrists",
		"priority": "high",
		"changeType": "exercise_replacement",
		"changes": {"exerciseId": "pushup", "newExercise": {"name": "Incline Push Up", "sets": 4}}
	}`))

	require.NoError(t, res.Err)
	require.True(t, res.HasProposal())
	assert.Equal(t, "Try incline push ups instead.", res.Message)

	prop := res.Proposal
	assert.Equal(t, domain.ProposalExerciseReplacement, prop.Type)
	assert.Equal(t, domain.PriorityHigh, prop.Priority)
	assert.NotEmpty(t, prop.ID)

	changes, ok := prop.Changes.(domain.ExerciseReplacement)
	require.True(t, ok)
	assert.Equal(t, "pushup", changes.ExerciseID)
	assert.Equal(t, "Incline Push Up", changes.NewExercise.Name)
	require.NotNil(t, changes.NewExercise.Sets)
	assert.Equal(t, 4, *changes.NewExercise.Sets)
	assert.Nil(t, changes.NewExercise.Reps)
}

func TestParseNutritionAdjustment(t *testing.T) {
	res := NewParser().Parse(call(backend.FunctionProposeChanges, `{
		"title": "More protein",
		"description": "Raise protein",
		"reasoning": "Muscle gain",
		"changeType": "nutrition_adjustment",
		"changes": {"goals": {"protein": 160}}
	}`))

	require.True(t, res.HasProposal())
	assert.Equal(t, domain.PriorityMedium, res.Proposal.Priority)
	assert.Contains(t, res.Message, "More protein")
	changes := res.Proposal.Changes.(domain.NutritionAdjustment)
	require.NotNil(t, changes.Goals)
	assert.Equal(t, 160.0, *changes.Goals.Protein)
}

func TestParseRejectsInvalidProposals(t *testing.T) {
	tests := []struct {
		name  string
		args  string
		stage Stage
	}{
		{
			name:  "unknown change type",
			args:  `{"message":"ok","title":"t","description":"d","reasoning":"r","changeType":"teleport","changes":{}}`,
			stage: StageChanges,
		},
		{
			name:  "missing title",
			args:  `{"message":"ok","description":"d","reasoning":"r","changeType":"progress_analysis","changes":{}}`,
			stage: StageFields,
		},
		{
			name:  "missing changes",
			args:  `{"message":"ok","title":"t","description":"d","reasoning":"r","changeType":"progress_analysis"}`,
			stage: StageFields,
		},
		{
			name:  "replacement without a name",
			args:  `{"message":"ok","title":"t","description":"d","reasoning":"r","changeType":"exercise_replacement","changes":{"exerciseId":"x","newExercise":{}}}`,
			stage: StageChanges,
		},
		{
			name:  "empty workout patch",
			args:  `{"message":"ok","title":"t","description":"d","reasoning":"r","changeType":"workout_modification","changes":{"workoutChanges":{}}}`,
			stage: StageChanges,
		},
		{
			name:  "changes of the wrong shape",
			args:  `{"message":"ok","title":"t","description":"d","reasoning":"r","changeType":"workout_modification","changes":"swap it"}`,
			stage: StageChanges,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewParser().Parse(call(backend.FunctionProposeChanges, tt.args))
			assert.False(t, res.HasProposal())
			assert.Equal(t, "ok", res.Message)

			var perr *ParseError
			require.True(t, errors.As(res.Err, &perr))
			assert.Equal(t, tt.stage, perr.Stage)
		})
	}
}

func TestParseUnknownChangeTypeIsTyped(t *testing.T) {
	res := NewParser().Parse(call(backend.FunctionProposeChanges,
		`{"title":"t","description":"d","reasoning":"r","changeType":"teleport","changes":{}}`))
	assert.ErrorIs(t, res.Err, ErrUnknownChangeType)
	assert.Equal(t, incompleteProposalReply, res.Message)
}

func TestParseSalvagesTruncatedArguments(t *testing.T) {
	counter := failureCounter{}
	p := NewParser(WithRecorder(counter))

	res := p.Parse(call(backend.FunctionProposeChanges, `{"message":"Great question!\nLet's adjust your \"leg day\"`))
	assert.True(t, res.Salvaged)
	assert.False(t, res.HasProposal())
	assert.Equal(t, "Great question!\nLet's adjust your \"leg day\"", res.Message)
	assert.Equal(t, 1, counter["salvaged"])
}

func TestParseWithoutSalvagerApologises(t *testing.T) {
	counter := failureCounter{}
	p := NewParser(WithSalvager(nil), WithRecorder(counter))

	res := p.Parse(call(backend.FunctionChatOnly, `{"message":"cut off`))
	assert.Equal(t, Apology, res.Message)
	assert.False(t, res.Salvaged)
	assert.Error(t, res.Err)
	assert.Equal(t, 1, counter["apology"])
}

func TestParseUnsalvageableArguments(t *testing.T) {
	res := NewParser().Parse(call(backend.FunctionAnalyzeProgress, `{"keyFindings": [`))
	assert.Equal(t, Apology, res.Message)
	assert.Nil(t, res.Analysis)
}

func TestParseCustomSalvager(t *testing.T) {
	p := NewParser(WithSalvager(SalvagerFunc(func(string) (string, bool) { return "fixed", true })))
	assert.Equal(t, "fixed", p.Parse(call(backend.FunctionChatOnly, "{")).Message)
}

func TestParseAnalysis(t *testing.T) {
	res := NewParser().Parse(call(backend.FunctionAnalyzeProgress, `{
		"progressStatus": "stagnant",
		"keyFindings": ["Bench stalled at 80kg"],
		"achievements": ["Five sessions in a row"],
		"concerns": ["Weight flat for two weeks"],
		"recommendations": [
			{"text": "Deload next week", "priority": "high"},
			{"text": "Add a walk", "priority": "low"},
			{"text": "Track sleep"}
		]
	}`))

	assert.False(t, res.HasProposal())
	require.NotNil(t, res.Analysis)
	assert.Equal(t, domain.ProgressStagnant, res.Analysis.ProgressStatus)
	assert.Len(t, res.Analysis.Recommendations, 3)

	msg := res.Message
	findings := strings.Index(msg, "Key findings")
	achievements := strings.Index(msg, "Achievements")
	concerns := strings.Index(msg, "Concerns")
	recs := strings.Index(msg, "Recommendations")
	assert.True(t, findings < achievements && achievements < concerns && concerns < recs, msg)
	assert.Contains(t, msg, "Stagnant")
	assert.Contains(t, msg, "🔴 Deload next week")
	assert.Contains(t, msg, "🟢 Add a walk")
	assert.Contains(t, msg, "🟡 Track sleep")
}

func TestFormatAnalysisConcurrent(t *testing.T) {
	result := domain.AnalysisResult{
		ProgressStatus:  domain.ProgressStagnant,
		KeyFindings:     []string{"Bench stalled"},
		Recommendations: []domain.Recommendation{{Text: "Deload", Priority: domain.PriorityHigh}},
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				if msg := FormatAnalysis(result); !strings.Contains(msg, "Stagnant") {
					t.Errorf("unexpected render: %q", msg)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestParseUnsupportedFunction(t *testing.T) {
	res := NewParser().Parse(backend.Response{
		Content:      "fallback text",
		FunctionCall: &backend.FunctionCall{Name: "delete_everything", Arguments: "{}"},
	})
	assert.Equal(t, "fallback text", res.Message)
	var perr *ParseError
	require.True(t, errors.As(res.Err, &perr))
	assert.Equal(t, StageFunction, perr.Stage)
}

func TestUnreachableBackendYieldsNoProposal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := backend.NewClient(backend.Config{BaseURL: url, APIKey: "key"})
	resp, err := client.Send(context.Background(), backend.Request{Message: "swap my squats"})
	require.ErrorIs(t, err, backend.ErrNetwork)

	res := NewParser().Parse(resp)
	assert.False(t, res.HasProposal())
	assert.Equal(t, backend.NetworkReply, res.Message)
}

func TestRegexSalvager(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{raw: `{"message": "hello"}`, want: "hello", ok: true},
		{raw: `{"title":"x","message":"café time`, want: "café time", ok: true},
		{raw: `{"message":"ends with escape \`, want: "ends with escape ", ok: true},
		{raw: `{"message":""}`, ok: false},
		{raw: `{"title":"no message here"}`, ok: false},
	}
	for _, tt := range tests {
		got, ok := RegexSalvager{}.Salvage(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
