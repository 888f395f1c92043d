//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/fitcoach/internal/cost"
	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/ashureev/fitcoach/internal/identity"
	"github.com/ashureev/fitcoach/internal/store"
)

const testUser = "anon_0123456789abcdef0123456789abcdef"

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func newTestRouter(t *testing.T) (http.Handler, *store.SQLiteStore) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.UpsertUser(context.Background(), &domain.User{UserID: testUser, Username: "athlete"}))

	base := NewHandler(repo)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithIdentity(req.Context(), testUser, "tab")))
		})
	})
	NewProfileHandler(base).RegisterRoutes(r)
	NewPlanHandler(base).RegisterRoutes(r)
	NewProgressHandler(base).RegisterRoutes(r)
	return r, repo
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProfileRoundTrip(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), testUser)

	rec = do(t, h, http.MethodPut, "/api/profile", `{"name":"Sam","age":31,"goals":["build muscle"],"experience_level":"beginner"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/profile", "")
	var got domain.UserProfile
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "Sam", got.Name)
	assert.Equal(t, []string{"build muscle"}, got.Goals)
}

func TestProfileValidation(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodPut, "/api/profile", `{"age":4,"experience_level":"guru"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrainingPlanPut(t *testing.T) {
	h, repo := newTestRouter(t)

	body := `{"name":"Full body","workout_days":[{"day":"Monday","exercises":[{"id":"squat","name":"Squat","sets":5,"reps":"5"}]}]}`
	rec := do(t, h, http.MethodPut, "/api/plan/training", body)
	require.Equal(t, http.StatusOK, rec.Code)

	plan, err := repo.GetTrainingPlan(context.Background(), testUser)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, 1, plan.ExerciseCount())
	assert.Equal(t, "squat", plan.WorkoutDays[0].Exercises[0].ID)

	rec = do(t, h, http.MethodPut, "/api/plan/training", `{"name":"x","workout_days":[{"day":"Mon","exercises":[{"name":"no id"}]}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNutritionPlanPut(t *testing.T) {
	h, _ := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/api/plan/nutrition", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/api/plan/nutrition", `{"goals":{"calories":-1}}`).Code)

	rec := do(t, h, http.MethodPut, "/api/plan/nutrition", `{"goals":{"calories":2400,"protein":160,"carbs":250,"fat":80}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.NutritionPlan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.NotNil(t, got.Goals)
	assert.InDelta(t, 2400, got.Goals.Calories, 0.001)
	assert.Nil(t, got.WeeklyPlan)
}

func TestProgressLogging(t *testing.T) {
	h, _ := newTestRouter(t)

	assert.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/progress/weights", `{"weight":81.5}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/progress/weights", `{"weight":0}`).Code)

	rec := do(t, h, http.MethodPost, "/api/progress/workouts",
		`{"completed":true,"exercises":[{"name":"Bench Press","sets":[{"weight":60,"reps":8}]}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap domain.ProgressSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Len(t, snap.Weights, 1)
	require.Len(t, snap.Workouts, 1)
	assert.NotEmpty(t, snap.Workouts[0].ID)
	assert.Equal(t, 1, snap.CompletedWorkouts())
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type staticAssistant bool

func (s staticAssistant) Configured() bool { return bool(s) }
func (staticAssistant) Model() string      { return "gpt-4o-mini" }

func TestHealth(t *testing.T) {
	gov := cost.NewGovernor(1)
	h := NewHealthHandler(pingFunc(func(context.Context) error { return nil }), staticAssistant(true), gov)
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Contains(t, body, "spend")

	h = NewHealthHandler(pingFunc(func(context.Context) error { return errors.New("down") }), staticAssistant(false), nil)
	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_configured")
}
