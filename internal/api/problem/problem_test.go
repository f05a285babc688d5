// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuGH/dsns/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/download", nil)
	req = req.WithContext(log.ContextWithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()

	Write(rec, req, http.StatusNotFound, "download/no_suitable_format", "No Suitable Format", "NO_SUITABLE_FORMAT", "nothing playable")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))

	var body Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, Details{
		Type:      "download/no_suitable_format",
		Title:     "No Suitable Format",
		Status:    http.StatusNotFound,
		Code:      "NO_SUITABLE_FORMAT",
		Detail:    "nothing playable",
		Instance:  "/download",
		RequestID: "req-1",
	}, body)
}

func TestWrite_FallsBackToResponseHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set(HeaderRequestID, "from-header")

	Write(rec, nil, http.StatusInternalServerError, "system/internal", "Internal Error", "INTERNAL", "")

	var body Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "from-header", body.RequestID)
	assert.Empty(t, body.Instance)
	assert.Empty(t, body.Detail)
}
