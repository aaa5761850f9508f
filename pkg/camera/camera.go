// Package camera provides cameras that capture frames in the background.
//
// Capture runs in a goroutine owned by the camera; callers only ever read
// the latest cached frame, so a slow consumer never blocks the stream and
// a control loop never waits on a camera.
package camera

import (
	"context"
	"time"
)

// Frame is one captured image, JPEG-encoded, with its capture time.
type Frame struct {
	Data      []byte
	Timestamp time.Time
}

// Camera captures frames in the background and serves the latest one.
type Camera interface {
	// Connect starts capturing. The context bounds connection setup and
	// the lifetime of the capture goroutine.
	Connect(ctx context.Context) error
	// Frame returns the latest cached frame. It fails if no frame has
	// arrived yet or the stream has died.
	Frame() (Frame, error)
	// Close stops capturing.
	Close() error
}
