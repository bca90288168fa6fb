package streamworker

import (
	"context"
	"errors"
	"io"
)

// Pipe copies every event from one handle's stream into another handle's
// sink, preserving names, and closes the sink when the stream ends cleanly.
// If the upstream handle fails, the error is returned and the sink is left
// open so the caller can decide how to end it.
func Pipe(ctx context.Context, from *Stream, to *Sink) error {
	for {
		ev, err := from.Next(ctx)
		if errors.Is(err, io.EOF) {
			return to.Close(ctx)
		}
		if err != nil {
			return err
		}
		if err := to.Write(ctx, ev); err != nil {
			return err
		}
	}
}
