// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MatchesKindAndCause(t *testing.T) {
	err := NewError(ErrMetadataUnavailable, "probe", "yt-dlp timed out", context.DeadlineExceeded)

	assert.ErrorIs(t, err, ErrMetadataUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrUpstreamFetch)
	assert.Equal(t, "probe: metadata unavailable: yt-dlp timed out: context deadline exceeded", err.Error())
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewError(ErrUpstreamFetch, "direct", "origin returned 403", nil))

	assert.Equal(t, ErrUpstreamFetch, KindOf(wrapped))
	assert.Equal(t, ErrMissingInput, KindOf(ErrMissingInput))
	assert.Nil(t, KindOf(errors.New("other")))
	assert.Nil(t, KindOf(nil))

	var me *Error
	assert.True(t, errors.As(wrapped, &me))
	assert.Equal(t, "direct", me.Op)
}
