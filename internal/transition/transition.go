package transition

import (
	"sort"

	"github.com/nholik/rauc-health/internal/health"
)

// Kind classifies a change between two consecutive checks.
type Kind string

const (
	KindFailing   Kind = "FAILING"
	KindRecovered Kind = "RECOVERED"
	KindChanged   Kind = "CHANGED"
)

// ServiceTransition captures a required service whose state changed
// between two checks.
type ServiceTransition struct {
	Name          string
	Kind          Kind
	PreviousState string
	CurrentState  string
}

// Detect compares the failures of the previous check with the current ones.
// A nil previous list means this is the first check: every current failure
// is reported as failing.
func Detect(prev, current []health.FailedService) []ServiceTransition {
	prevStates := make(map[string]string, len(prev))
	for _, failure := range prev {
		prevStates[failure.Name] = failure.State
	}
	currentStates := make(map[string]string, len(current))
	for _, failure := range current {
		currentStates[failure.Name] = failure.State
	}

	transitions := make([]ServiceTransition, 0)
	for name, state := range currentStates {
		prevState, hadPrev := prevStates[name]
		switch {
		case !hadPrev:
			transitions = append(transitions, ServiceTransition{
				Name:         name,
				Kind:         KindFailing,
				CurrentState: state,
			})
		case prevState != state:
			transitions = append(transitions, ServiceTransition{
				Name:          name,
				Kind:          KindChanged,
				PreviousState: prevState,
				CurrentState:  state,
			})
		}
	}
	for name, prevState := range prevStates {
		if _, still := currentStates[name]; still {
			continue
		}
		transitions = append(transitions, ServiceTransition{
			Name:          name,
			Kind:          KindRecovered,
			PreviousState: prevState,
			CurrentState:  health.StateStarted,
		})
	}

	// Sort by service name for deterministic output
	sort.Slice(transitions, func(i, j int) bool {
		return transitions[i].Name < transitions[j].Name
	})

	return transitions
}
