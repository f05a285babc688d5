// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"testing"

	"github.com/ManuGH/dsns/internal/media"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		path  []State
		valid bool
	}{
		{name: "direct to done", path: []State{StateDirect, StateDone}, valid: true},
		{name: "mux to failed", path: []State{StateMux, StateFailed}, valid: true},
		{name: "process to done", path: []State{StateProcess, StateDone}, valid: true},
		{name: "idle to done", path: []State{StateDone}},
		{name: "tier to tier", path: []State{StateDirect, StateProcess}},
		{name: "done is terminal", path: []State{StateMux, StateDone, StateFailed}},
		{name: "re-enter tier", path: []State{StateDirect, StateDirect}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(zerolog.Nop())
			var err error
			for _, next := range tt.path {
				if err = s.Transition(next); err != nil {
					break
				}
			}
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, tt.path[len(tt.path)-1], s.State())
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestSession_FinishIsIdempotent(t *testing.T) {
	s := NewSession(zerolog.Nop())
	require.NoError(t, s.Transition(StateDirect))

	s.finish(false)
	s.finish(true)
	assert.Equal(t, StateDone, s.State())
}

func TestStateForTier(t *testing.T) {
	assert.Equal(t, StateDirect, StateForTier(media.TierDirect))
	assert.Equal(t, StateMux, StateForTier(media.TierMux))
	assert.Equal(t, StateProcess, StateForTier(media.TierProcess))
	assert.Equal(t, StateIdle, StateForTier("bogus"))
}
