// Package screen is the navigation state machine behind the chat bot's
// screens.
package screen

import (
	"errors"
	"fmt"
)

type State int

const (
	Profile State = iota
	Home
	AddFood
	DailySummary
)

func (s State) String() string {
	switch s {
	case Profile:
		return "profile"
	case Home:
		return "home"
	case AddFood:
		return "add_food"
	case DailySummary:
		return "daily_summary"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Event int

const (
	ProfileSaved Event = iota
	EditProfile
	OpenAddFood
	FoodSaved
	Cancel
	OpenSummary
	CloseSummary
	DayEnded
)

func (e Event) String() string {
	switch e {
	case ProfileSaved:
		return "profile_saved"
	case EditProfile:
		return "edit_profile"
	case OpenAddFood:
		return "open_add_food"
	case FoodSaved:
		return "food_saved"
	case Cancel:
		return "cancel"
	case OpenSummary:
		return "open_summary"
	case CloseSummary:
		return "close_summary"
	case DayEnded:
		return "day_ended"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

var ErrInvalidTransition = errors.New("screen: invalid transition")

// Context carries the facts transitions depend on.
type Context struct {
	// HasProfile is true once a valid profile is stored. Leaving the
	// profile screen without saving is only allowed then.
	HasProfile bool
}

// Initial returns the first screen for a user.
func Initial(hasProfile bool) State {
	if hasProfile {
		return Home
	}
	return Profile
}

// Transition returns the state reached from s on e. Invalid events leave the
// state unchanged and return ErrInvalidTransition.
func Transition(s State, e Event, ctx Context) (State, error) {
	switch s {
	case Profile:
		switch e {
		case ProfileSaved:
			return Home, nil
		case Cancel:
			if ctx.HasProfile {
				return Home, nil
			}
		}
	case Home:
		switch e {
		case EditProfile:
			return Profile, nil
		case OpenAddFood:
			if ctx.HasProfile {
				return AddFood, nil
			}
		case OpenSummary:
			if ctx.HasProfile {
				return DailySummary, nil
			}
		}
	case AddFood:
		switch e {
		case FoodSaved, Cancel:
			return Home, nil
		}
	case DailySummary:
		switch e {
		case CloseSummary, Cancel, DayEnded:
			return Home, nil
		}
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, s)
}

// Chrome is what the host shell shows around a screen.
type Chrome struct {
	MainButtonText    string
	MainButtonVisible bool
	BackButtonVisible bool
}

// ChromeFor returns the chrome expected on s.
func ChromeFor(s State) Chrome {
	switch s {
	case Home:
		return Chrome{MainButtonText: "Добавить приём пищи", MainButtonVisible: true}
	case AddFood, DailySummary:
		return Chrome{BackButtonVisible: true}
	default:
		return Chrome{}
	}
}

// Machine tracks the current screen of one user. It is not safe for
// concurrent use; callers serialize access per user.
type Machine struct {
	state   State
	onEnter func(State, Chrome)
}

// NewMachine starts at the initial screen. onEnter, if non-nil, runs after
// every successful transition and once for the initial state.
func NewMachine(hasProfile bool, onEnter func(State, Chrome)) *Machine {
	m := &Machine{state: Initial(hasProfile), onEnter: onEnter}
	m.enter()
	return m
}

func (m *Machine) State() State {
	return m.state
}

// Fire applies e. The state is unchanged when the event is invalid.
func (m *Machine) Fire(e Event, ctx Context) error {
	next, err := Transition(m.state, e, ctx)
	if err != nil {
		return err
	}
	m.state = next
	m.enter()
	return nil
}

func (m *Machine) enter() {
	if m.onEnter != nil {
		m.onEnter(m.state, ChromeFor(m.state))
	}
}
