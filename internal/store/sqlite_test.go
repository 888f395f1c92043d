package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/fitcoach/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "coach.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, id string, lastSeen time.Time) {
	t.Helper()
	require.NoError(t, s.UpsertUser(context.Background(), &domain.User{
		UserID: id, Username: "anon", LastSeenAt: lastSeen, CreatedAt: lastSeen, UpdatedAt: lastSeen,
	}))
}

func TestUsersAndProfile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.GetUser(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, u)

	now := time.Now().Truncate(time.Second)
	seedUser(t, s, "u1", now)
	seedUser(t, s, "u2", now.Add(-60*24*time.Hour))

	u, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, u.LastSeenAt.Equal(now))

	ids, err := s.ActiveUserIDs(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, ids)

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, p, "no profile saved yet")

	require.NoError(t, s.SaveProfile(ctx, &domain.UserProfile{UserID: "u1", Name: "Ana", Goals: []string{"strength"}}))
	p, err = s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Name)
	assert.Equal(t, []string{"strength"}, p.Goals)

	assert.Error(t, s.SaveProfile(ctx, &domain.UserProfile{UserID: "ghost"}))
}

func TestPlansRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	plan, err := s.GetTrainingPlan(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, plan)

	want := &domain.TrainingProgram{
		ID:   "p1",
		Name: "Upper/Lower",
		WorkoutDays: []domain.WorkoutDay{
			{Day: "monday", Exercises: []domain.Exercise{{ID: "bench", Name: "Bench Press", Sets: 4, Reps: "6-8"}}},
		},
	}
	require.NoError(t, s.SaveTrainingPlan(ctx, "u1", want))
	got, err := s.GetTrainingPlan(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, want.WorkoutDays, got.WorkoutDays)

	want.Name = "Full body"
	require.NoError(t, s.SaveTrainingPlan(ctx, "u1", want))
	got, err = s.GetTrainingPlan(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Full body", got.Name)
}

func TestSaveNutritionPlanIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	goals := &domain.NutritionGoals{Calories: 2500, Protein: 160}
	weekly := &domain.WeeklyMealPlan{Days: map[string][]domain.Meal{"monday": {{Name: "Oats"}}}}
	require.NoError(t, s.SaveNutritionPlan(ctx, "u1", goals, weekly))

	g, err := s.GetNutritionGoals(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, *goals, *g)
	w, err := s.GetWeeklyMealPlan(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"monday"}, w.DayNames())

	// nil parts are left untouched
	require.NoError(t, s.SaveNutritionPlan(ctx, "u1", &domain.NutritionGoals{Calories: 2000}, nil))
	w, err = s.GetWeeklyMealPlan(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"monday"}, w.DayNames())

	// a cancelled context fails the transaction as a whole
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	err = s.SaveNutritionPlan(cctx, "u1", &domain.NutritionGoals{Calories: 1}, &domain.WeeklyMealPlan{})
	require.Error(t, err)
	g, err = s.GetNutritionGoals(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2000.0, g.Calories)
}

func TestProgress(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	day := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AddWeightEntry(ctx, "u1", domain.WeightEntry{Date: day, Weight: 81}))
	require.NoError(t, s.AddWeightEntry(ctx, "u1", domain.WeightEntry{Date: day.AddDate(0, 0, 1), Weight: 80.5}))

	started := day.Add(18 * time.Hour)
	require.NoError(t, s.SaveWorkoutSession(ctx, "u1", domain.WorkoutSession{
		ID: "w1", Date: day, StartedAt: &started, Completed: true,
		Exercises: []domain.SessionExercise{{Name: "Squat", Sets: []domain.SetLog{{Weight: 100, Reps: 5}}}},
	}))
	require.NoError(t, s.SaveWorkoutSession(ctx, "u1", domain.WorkoutSession{Date: day.AddDate(0, 0, 2)}))

	snap, err := s.GetProgress(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, snap.Weights, 2)
	assert.Equal(t, 80.5, snap.Weights[0].Weight, "newest first")
	require.Len(t, snap.Workouts, 2)
	assert.NotEmpty(t, snap.Workouts[0].ID, "missing ids are generated")

	w1 := snap.Workouts[1]
	assert.Equal(t, "w1", w1.ID)
	require.NotNil(t, w1.StartedAt)
	assert.True(t, w1.StartedAt.Equal(started))
	assert.Equal(t, 500.0, w1.Exercises[0].Volume())

	empty, err := s.GetProgress(ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
}

func TestTranscript(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := domain.NewChatMessage(domain.RoleUser, "hi")
	second := domain.NewChatMessage(domain.RoleAssistant, "hello").WithMetadata("proposal_id", "p1")
	require.NoError(t, s.AppendMessages(ctx, "u1", first, second))
	require.NoError(t, s.AppendMessages(ctx, "u2", domain.NewChatMessage(domain.RoleUser, "other")))

	msgs, err := s.ListMessages(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "p1", msgs[1].Metadata["proposal_id"])

	require.NoError(t, s.ClearMessages(ctx, "u1"))
	msgs, err = s.ListMessages(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = s.ListMessages(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestAnalysisHistoryIsCapped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < domain.MaxStoredAnalyses+3; i++ {
		require.NoError(t, s.AppendAnalysis(ctx, "u1", domain.AnalysisResult{
			ID:             fmt.Sprintf("a%02d", i),
			Timestamp:      start.Add(time.Duration(i) * time.Hour),
			AnalysisType:   domain.AnalysisWeekly,
			ProgressStatus: domain.ProgressGood,
		}))
	}

	all, err := s.ListAnalyses(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, domain.MaxStoredAnalyses)
	assert.Equal(t, "a12", all[0].ID)
	assert.Equal(t, "a03", all[len(all)-1].ID)

	latest, err := s.LatestAnalysis(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a12", latest.ID)

	none, err := s.LatestAnalysis(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestAnalysisMarkers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m, err := s.GetAnalysisMarkers(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, m.LastAnalysisAt.IsZero())

	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, s.SetAnalysisMarkers(ctx, "u1", domain.AnalysisMarkers{LastAnalysisAt: at, LastWorkoutCount: 7}))
	m, err = s.GetAnalysisMarkers(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, m.LastAnalysisAt.Equal(at))
	assert.Equal(t, 7, m.LastWorkoutCount)
}
