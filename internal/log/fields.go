// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"
	FieldRunID     = "run_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldTool      = "tool"
	FieldPID       = "pid"

	// Media / relay fields
	FieldSourceURL = "source_url"
	FieldKind      = "kind"
	FieldTier      = "tier"
	FieldFormatID  = "format_id"
	FieldBytes     = "bytes"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Compose fields
	FieldApp  = "app"
	FieldPath = "path"
)
