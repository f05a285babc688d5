// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ManuGH/dsns/internal/api/problem"
	"github.com/ManuGH/dsns/internal/media"
)

// errorSpec is one row of the error taxonomy.
type errorSpec struct {
	kind        error
	status      int
	problemType string
	title       string
	code        string
}

// errorTable maps every error kind to its response. Order matters only for
// errors carrying more than one kind, which the media package never builds.
var errorTable = []errorSpec{
	{media.ErrMissingInput, http.StatusBadRequest, "download/missing_input", "Missing Input", "MISSING_INPUT"},
	{media.ErrInvalidInput, http.StatusBadRequest, "download/invalid_input", "Invalid Input", "INVALID_INPUT"},
	{media.ErrMetadataUnavailable, http.StatusInternalServerError, "download/metadata_unavailable", "Metadata Unavailable", "METADATA_UNAVAILABLE"},
	{media.ErrNoSuitableFormat, http.StatusNotFound, "download/no_suitable_format", "No Suitable Format", "NO_SUITABLE_FORMAT"},
	{media.ErrUpstreamFetch, http.StatusBadGateway, "download/upstream_fetch_failed", "Upstream Fetch Failed", "UPSTREAM_FETCH_FAILED"},
}

var internalError = errorSpec{
	status:      http.StatusInternalServerError,
	problemType: "system/internal",
	title:       "Internal Server Error",
	code:        "INTERNAL_ERROR",
}

// classify returns the taxonomy row for err.
func classify(err error) errorSpec {
	for _, spec := range errorTable {
		if errors.Is(err, spec.kind) {
			return spec
		}
	}
	return internalError
}

// clientGone reports whether err stems from the client going away.
func clientGone(err error) bool {
	return errors.Is(err, context.Canceled)
}

// writeError renders err as a problem response. Internal errors never leak
// their message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	spec := classify(err)
	detail := err.Error()
	if spec.code == internalError.code {
		detail = "An unexpected error occurred."
	}
	problem.Write(w, r, spec.status, spec.problemType, spec.title, spec.code, detail)
}

func writeNotFound(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, r, http.StatusNotFound, "system/not_found", "Not Found", "NOT_FOUND", "")
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, r, http.StatusMethodNotAllowed, "system/method_not_allowed", "Method Not Allowed", "METHOD_NOT_ALLOWED", "")
}
