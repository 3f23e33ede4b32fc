package bot

import (
	"sync"

	"photocal/internal/models"
	"photocal/internal/screen"
)

// step is the form field awaited within the current screen.
type step int

const (
	stepNone step = iota
	stepGender
	stepAge
	stepHeight
	stepWeight
	stepGoal
	stepMealType
	stepName
	stepDescription
	stepPhoto
	stepAnalyzing
)

// session is one user's conversation. mu serializes all handlers of the
// user except a running photo analysis.
type session struct {
	mu      sync.Mutex
	chatID  int64
	owner   string
	machine *screen.Machine
	chrome  screen.Chrome
	step    step

	profile models.UserProfile
	entry   models.FoodEntry
	// draft identifies the food entry being edited; a finished analysis is
	// only applied to the draft it was started for.
	draft uint64
}
