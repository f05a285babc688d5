// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities for the dsns daemon.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	// Download attributes
	DownloadSourceKey = "download.source_url"
	DownloadKindKey   = "download.kind"
	DownloadTierKey   = "download.tier"
	DownloadFormatKey = "download.format_ids"
	DownloadBytesKey  = "download.bytes"
	DownloadResultKey = "download.result"

	// Metadata attributes
	MetadataCacheKey     = "metadata.cache"
	MetadataExtractorKey = "metadata.extractor"
	MetadataFormatsKey   = "metadata.formats"

	// Process attributes
	ProcessToolKey = "process.tool"
	ProcessPIDKey  = "process.pid"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// DownloadAttributes creates download span attributes. Empty values are omitted.
func DownloadAttributes(sourceURL, kind, tier string, formatIDs []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if sourceURL != "" {
		attrs = append(attrs, attribute.String(DownloadSourceKey, sourceURL))
	}
	if kind != "" {
		attrs = append(attrs, attribute.String(DownloadKindKey, kind))
	}
	if tier != "" {
		attrs = append(attrs, attribute.String(DownloadTierKey, tier))
	}
	if len(formatIDs) > 0 {
		attrs = append(attrs, attribute.StringSlice(DownloadFormatKey, formatIDs))
	}
	return attrs
}

// DownloadResultAttributes describes how a relayed response ended.
func DownloadResultAttributes(result string, bytes int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(DownloadResultKey, result),
		attribute.Int64(DownloadBytesKey, bytes),
	}
}

// MetadataAttributes creates metadata-probe span attributes.
func MetadataAttributes(cache, extractor string, formats int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(MetadataCacheKey, cache),
		attribute.String(MetadataExtractorKey, extractor),
		attribute.Int(MetadataFormatsKey, formats),
	}
}

// ProcessAttributes creates attributes for a spawned external tool.
func ProcessAttributes(tool string, pid int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ProcessToolKey, tool),
		attribute.Int(ProcessPIDKey, pid),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
