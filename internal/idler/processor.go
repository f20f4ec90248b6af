package idler

import "context"

// Processor decides whether a message was handled. Returning true moves the
// message to the destination folder, false leaves it in the source folder.
type Processor interface {
	Process(ctx context.Context, raw []byte) (bool, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, raw []byte) (bool, error)

func (f ProcessorFunc) Process(ctx context.Context, raw []byte) (bool, error) { return f(ctx, raw) }

type notImplemented struct{}

func (notImplemented) Process(context.Context, []byte) (bool, error) {
	return false, ErrNotImplemented
}
