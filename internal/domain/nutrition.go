package domain

import "sort"

// NutritionGoals are the daily macro targets.
type NutritionGoals struct {
	Goal     string  `json:"goal,omitempty"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Meal is one planned meal.
type Meal struct {
	Name     string  `json:"name"`
	Type     string  `json:"type,omitempty"`
	Calories float64 `json:"calories,omitempty"`
	Protein  float64 `json:"protein,omitempty"`
	Carbs    float64 `json:"carbs,omitempty"`
	Fat      float64 `json:"fat,omitempty"`
}

// WeeklyMealPlan maps a day name to its meals.
type WeeklyMealPlan struct {
	Days map[string][]Meal `json:"days"`
}

// DayNames returns the planned days in lexical order.
func (w *WeeklyMealPlan) DayNames() []string {
	if w == nil {
		return nil
	}
	names := make([]string, 0, len(w.Days))
	for d := range w.Days {
		names = append(names, d)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the plan.
func (w *WeeklyMealPlan) Clone() *WeeklyMealPlan {
	if w == nil {
		return nil
	}
	out := &WeeklyMealPlan{Days: make(map[string][]Meal, len(w.Days))}
	for d, meals := range w.Days {
		out.Days[d] = append([]Meal(nil), meals...)
	}
	return out
}

// NutritionPlan combines goals and the weekly meal plan.
type NutritionPlan struct {
	Goals      *NutritionGoals `json:"goals,omitempty"`
	WeeklyPlan *WeeklyMealPlan `json:"weekly_plan,omitempty"`
}

// IsEmpty reports whether neither part of the plan exists.
func (n *NutritionPlan) IsEmpty() bool {
	return n == nil || (n.Goals == nil && n.WeeklyPlan == nil)
}
