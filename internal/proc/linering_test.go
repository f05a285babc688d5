// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package proc

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineRing(t *testing.T) {
	r := NewLineRing(3)

	_, _ = fmt.Fprintf(r, "line1\n")
	_, _ = fmt.Fprintf(r, "line2\n")
	assert.Equal(t, []string{"line1", "line2"}, r.LastN(10))

	_, _ = fmt.Fprintf(r, "line3\n")
	assert.Equal(t, []string{"line1", "line2", "line3"}, r.LastN(10))

	// Wrap
	_, _ = fmt.Fprintf(r, "line4\n")
	assert.Equal(t, []string{"line2", "line3", "line4"}, r.LastN(10))
	assert.Equal(t, []string{"line3", "line4"}, r.LastN(2))
}

func TestLineRing_PartialWrites(t *testing.T) {
	r := NewLineRing(5)

	_, _ = r.Write([]byte("ERROR: una"))
	assert.Empty(t, r.LastN(10))

	_, _ = r.Write([]byte("vailable\r\nnext"))
	assert.Equal(t, []string{"ERROR: unavailable"}, r.LastN(10))

	r.Flush()
	assert.Equal(t, []string{"ERROR: unavailable", "next"}, r.LastN(10))
}

func TestLineRing_OnLine(t *testing.T) {
	r := NewLineRing(2)
	var seen []string
	r.OnLine(func(line string) { seen = append(seen, line) })

	_, _ = r.Write([]byte("a\n\nb\nc"))
	r.Flush()

	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.Equal(t, []string{"b", "c"}, r.LastN(5))
}

func TestLineRing_OversizedLine(t *testing.T) {
	r := NewLineRing(2)
	_, _ = r.Write([]byte(strings.Repeat("x", maxPartialLine+10)))

	last := r.LastN(1)
	if assert.Len(t, last, 1) {
		assert.Len(t, last[0], maxPartialLine+10)
	}
}
