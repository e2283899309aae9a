// internal/workers/nutrition/calculate-targets/models.go
package calculatetargets

import "fitmeal-workers/internal/models"

type Input struct {
	Profile models.UserProfile `json:"userProfile"`
}

type Output struct {
	Targets models.NutrientTarget `json:"nutrientTargets"`
}
