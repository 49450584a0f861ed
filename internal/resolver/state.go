package resolver

import "github.com/ppiankov/kcal/internal/model"

// State is a step of one resolution
type State int

const (
	StateIdle State = iota
	StateNormalizing
	StateLocalLookup
	StateMemoryLookup
	StateTranslating
	StateProviderQuery
	StateValidating
	StateScaling
	StateDone
	StateCancelled
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateNormalizing:   "normalizing",
	StateLocalLookup:   "local_lookup",
	StateMemoryLookup:  "memory_lookup",
	StateTranslating:   "translating",
	StateProviderQuery: "provider_query",
	StateValidating:    "validating",
	StateScaling:       "scaling",
	StateDone:          "done",
	StateCancelled:     "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// TraceFunc observes state transitions.
// Network states are reported once per shared operation, not once per caller.
type TraceFunc func(key model.Key, state State)
