// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultServerConfig(t *testing.T) {
	s := defaultServerConfig()
	assert.Equal(t, ":8080", s.ListenAddr)
	assert.Equal(t, time.Duration(0), s.WriteTimeout, "relay responses must not be cut by a write timeout")
	assert.Equal(t, 10*time.Second, s.ReadHeaderTimeout)
	assert.Equal(t, 1<<20, s.MaxHeaderBytes)
	assert.Equal(t, 15*time.Second, s.ShutdownTimeout)
}

func TestBindListenAddr(t *testing.T) {
	tests := []struct {
		name   string
		listen string
		bind   string
		want   string
	}{
		{"no bind", ":8080", "", ":8080"},
		{"port only", ":8080", "127.0.0.1", "127.0.0.1:8080"},
		{"empty listen", "", "127.0.0.1", "127.0.0.1:0"},
		{"explicit host kept", "0.0.0.0:8080", "127.0.0.1", "0.0.0.0:8080"},
		{"ipv6 host", ":9090", "::1", "[::1]:9090"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BindListenAddr(tt.listen, tt.bind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBindListenAddr_UnknownInterface(t *testing.T) {
	_, err := BindListenAddr(":8080", "if:does-not-exist0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist0")
}
