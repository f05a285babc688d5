// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ManuGH/dsns/internal/log"
	"github.com/ManuGH/dsns/internal/media"
	"github.com/rs/zerolog"
)

// State is the lifecycle position of one delivery.
type State string

const (
	StateIdle    State = "idle"
	StateDirect  State = "direct"
	StateMux     State = "mux"
	StateProcess State = "process"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// ErrInvalidTransition is returned for transitions outside the lifecycle.
var ErrInvalidTransition = errors.New("invalid state transition")

var transitions = map[State][]State{
	StateIdle:    {StateDirect, StateMux, StateProcess},
	StateDirect:  {StateDone, StateFailed},
	StateMux:     {StateDone, StateFailed},
	StateProcess: {StateDone, StateFailed},
}

// StateForTier maps a plan tier to its session state.
func StateForTier(t media.Tier) State {
	switch t {
	case media.TierDirect:
		return StateDirect
	case media.TierMux:
		return StateMux
	case media.TierProcess:
		return StateProcess
	default:
		return StateIdle
	}
}

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Session tracks the state of one delivery. A session enters exactly one
// tier and ends in done or failed; it never moves between tiers.
type Session struct {
	mu     sync.Mutex
	state  State
	logger zerolog.Logger
}

// NewSession returns an idle session.
func NewSession(logger zerolog.Logger) *Session {
	return &Session{state: StateIdle, logger: logger}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to next.
func (s *Session) Transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, allowed := range transitions[s.state] {
		if allowed == next {
			s.logger.Debug().
				Str(log.FieldOldState, string(s.state)).
				Str(log.FieldNewState, string(next)).
				Msg("delivery state changed")
			s.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, next)
}

// finish moves a tier state to done or failed. It is a no-op once terminal.
func (s *Session) finish(failed bool) {
	next := StateDone
	if failed {
		next = StateFailed
	}
	if s.State().Terminal() {
		return
	}
	_ = s.Transition(next)
}
