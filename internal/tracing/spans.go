package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/keystone/internal/registry"
)

// Span names.
const (
	SpanCatalogLoad   = "catalog.load"
	SpanCatalogFile   = "catalog.file"
	SpanCatalogLink   = "catalog.link"
	SpanCatalogReload = "catalog.reload"
	SpanCatalogLookup = "catalog.resolve"
)

// Span attribute keys.
const (
	AttrCatalogDir        = "catalog.dir"
	AttrCatalogFile       = "catalog.file"
	AttrCatalogFormat     = "catalog.format"
	AttrCatalogNamespace  = "catalog.namespace"
	AttrCatalogGeneration = "catalog.generation"
	AttrRegistrySize      = "registry.size"
	AttrRegistryOrphaned  = "registry.orphaned"
	AttrRegistryKey       = "registry.key"
	AttrErrorCount        = "error.count"
)

// RecordError marks span as failed. A nil err leaves the span untouched.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// KeyAttr returns the attribute for a registry key in canonical form.
func KeyAttr(k registry.Key) attribute.KeyValue {
	return attribute.String(AttrRegistryKey, k.String())
}
