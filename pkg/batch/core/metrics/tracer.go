package metrics

import "context"

// Tracer is an abstract interface for distributed tracing of a pipeline run.
type Tracer interface {
	// StartSpan starts a span named name as a child of any span in ctx.
	//
	// Returns: A context with the new span set, and a function to end the span.
	//          It is recommended to call the returned function in a defer statement.
	StartSpan(ctx context.Context, name string, attributes map[string]interface{}) (context.Context, func())

	// RecordError records an error in the current span.
	//
	// module: The component where the error occurred (e.g., "reader", "writer").
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})

	// Shutdown flushes pending spans and releases exporter resources.
	Shutdown(ctx context.Context) error
}
