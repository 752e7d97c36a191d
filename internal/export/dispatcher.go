package export

import "context"

// Dispatcher hands a job ID to whatever runs the Processor. Dispatch must not
// block on processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, id string) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, id string) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, id string) error {
	return f(ctx, id)
}
