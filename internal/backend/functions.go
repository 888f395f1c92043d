package backend

// Function names the backend may call.
const (
	FunctionProposeChanges  = "propose_changes"
	FunctionChatOnly        = "chat_only"
	FunctionAnalyzeProgress = "analyze_progress"
)

// FunctionDef is a callable operation declared to the completion endpoint.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

var priorityEnum = []string{"high", "medium", "low"}

var exerciseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"id":            map[string]any{"type": "string"},
		"name":          map[string]any{"type": "string"},
		"targetMuscles": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"sets":          map[string]any{"type": "integer"},
		"reps":          map[string]any{"type": "string"},
		"restSeconds":   map[string]any{"type": "integer"},
		"equipment":     map[string]any{"type": "string"},
		"notes":         map[string]any{"type": "string"},
	},
	"required": []string{"name"},
}

// Functions returns the three declared operations.
func Functions() []FunctionDef {
	return []FunctionDef{
		{
			Name:        FunctionProposeChanges,
			Description: "Propose a concrete change to the user's training or nutrition plan. The user must accept it before it is applied.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message":     map[string]any{"type": "string", "description": "Reply shown to the user alongside the proposal."},
					"title":       map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"reasoning":   map[string]any{"type": "string"},
					"priority":    map[string]any{"type": "string", "enum": priorityEnum},
					"changeType": map[string]any{
						"type": "string",
						"enum": []string{"exercise_replacement", "workout_modification", "nutrition_adjustment", "progress_analysis"},
					},
					"changes": map[string]any{
						"type":        "object",
						"description": "Payload for changeType. exercise_replacement: {exerciseId, exerciseName, day, newExercise}. workout_modification: {workoutChanges}. nutrition_adjustment: {goals, weeklyPlan}. progress_analysis: {summary, focus}.",
						"properties": map[string]any{
							"exerciseId":     map[string]any{"type": "string"},
							"exerciseName":   map[string]any{"type": "string"},
							"day":            map[string]any{"type": "string"},
							"newExercise":    exerciseSchema,
							"workoutChanges": map[string]any{"type": "object"},
							"goals":          map[string]any{"type": "object"},
							"weeklyPlan":     map[string]any{"type": "object"},
							"summary":        map[string]any{"type": "string"},
							"focus":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						},
					},
				},
				"required": []string{"message", "title", "description", "reasoning", "changeType", "changes"},
			},
		},
		{
			Name:        FunctionChatOnly,
			Description: "Answer the user without changing any plan.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{"type": "string"},
				},
				"required": []string{"message"},
			},
		},
		{
			Name:        FunctionAnalyzeProgress,
			Description: "Analyse the user's recent progress and produce a structured report.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"progressStatus": map[string]any{"type": "string", "enum": []string{"excellent", "good", "stagnant", "declining"}},
					"keyFindings":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"achievements":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"concerns":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"recommendations": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"text":     map[string]any{"type": "string"},
								"priority": map[string]any{"type": "string", "enum": priorityEnum},
							},
							"required": []string{"text"},
						},
					},
				},
				"required": []string{"progressStatus", "keyFindings"},
			},
		},
	}
}
