// internal/models/profile.go
package models

import "fmt"

// Sex is the biological sex used by the Mifflin-St Jeor BMR formula.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale
}

// ActivityLevel is a closed enum. The multiplier table in the
// calculate-targets worker is keyed on these values only; unknown strings are
// rejected during validation instead of falling back to a default.
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

func (a ActivityLevel) Valid() bool {
	switch a {
	case ActivitySedentary, ActivityLight, ActivityModerate, ActivityActive, ActivityVeryActive:
		return true
	}
	return false
}

// GoalType is the user's health goal.
type GoalType string

const (
	GoalWeightLoss GoalType = "weight_loss"
	GoalMaintain   GoalType = "maintain"
	GoalMuscleGain GoalType = "muscle_gain"
)

func (g GoalType) Valid() bool {
	switch g {
	case GoalWeightLoss, GoalMaintain, GoalMuscleGain:
		return true
	}
	return false
}

// DietRule identifies a hard dietary constraint.
type DietRule string

const (
	DietVegan      DietRule = "vegan"
	DietVegetarian DietRule = "vegetarian"
	DietHalal      DietRule = "halal"
)

// UserProfile is the health/nutrition profile for one recommendation call.
// It is treated as immutable once the call starts.
type UserProfile struct {
	UserID         string             `json:"userId"`
	Age            int                `json:"age"`
	Sex            Sex                `json:"sex"`
	HeightCM       float64            `json:"heightCm"`
	WeightKG       float64            `json:"weightKg"`
	TargetWeightKG float64            `json:"targetWeightKg,omitempty"`
	ActivityLevel  ActivityLevel      `json:"activityLevel"`
	Goal           GoalType           `json:"goal"`
	Allergies      []string           `json:"allergies,omitempty"`
	DietRules      []DietRule         `json:"dietRules,omitempty"`
	TastePrefs     map[string]float64 `json:"tastePrefs,omitempty"`
	BudgetKRW      int                `json:"budgetKrw,omitempty"`
}

const (
	MinAge = 10
	MaxAge = 100
)

// Validate rejects profiles before any computation happens (validation
// errors are fatal to the call).
func (p *UserProfile) Validate() error {
	if p.Age < MinAge || p.Age > MaxAge {
		return fmt.Errorf("age %d outside [%d,%d]", p.Age, MinAge, MaxAge)
	}
	if p.HeightCM <= 0 {
		return fmt.Errorf("height must be positive, got %v", p.HeightCM)
	}
	if p.WeightKG <= 0 {
		return fmt.Errorf("weight must be positive, got %v", p.WeightKG)
	}
	if !p.Sex.Valid() {
		return fmt.Errorf("unknown sex %q", p.Sex)
	}
	if !p.ActivityLevel.Valid() {
		return fmt.Errorf("unknown activity level %q", p.ActivityLevel)
	}
	if !p.Goal.Valid() {
		return fmt.Errorf("unknown goal %q", p.Goal)
	}
	return nil
}

// HasAllergy reports whether the profile lists the given allergen code.
func (p *UserProfile) HasAllergy(code string) bool {
	for _, a := range p.Allergies {
		if a == code {
			return true
		}
	}
	return false
}
