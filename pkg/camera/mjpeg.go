package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"sync"
	"time"
)

// MJPEG streams frames from an HTTP multipart (motion JPEG) endpoint, the
// protocol most IP webcams and USB camera gateways speak.
type MJPEG struct {
	url    string
	client *http.Client

	mu      sync.Mutex
	frame   Frame
	haveOne bool
	err     error

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMJPEG creates a camera for the given stream URL. Connect starts the
// stream.
func NewMJPEG(url string) *MJPEG {
	return &MJPEG{
		url:    url,
		client: &http.Client{},
	}
}

// Connect opens the stream and starts the capture goroutine.
func (c *MJPEG) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("camera %s: %w", c.url, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("camera %s: %w", c.url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("camera %s: http status %s", c.url, resp.Status)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("camera %s: not an MJPEG stream (content-type %q)", c.url, resp.Header.Get("Content-Type"))
	}

	c.cancel = cancel
	c.done = make(chan struct{})
	go c.capture(resp.Body, params["boundary"])
	return nil
}

func (c *MJPEG) capture(body io.ReadCloser, boundary string) {
	defer close(c.done)
	defer body.Close()

	reader := multipart.NewReader(body, boundary)
	for {
		part, err := reader.NextPart()
		if err != nil {
			c.setErr(err)
			return
		}
		data, err := io.ReadAll(part)
		if err != nil {
			c.setErr(err)
			return
		}

		c.mu.Lock()
		c.frame = Frame{Data: data, Timestamp: time.Now()}
		c.haveOne = true
		c.mu.Unlock()
	}
}

func (c *MJPEG) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// Frame returns the latest cached frame. Once the stream has died the
// capture error wins over the cached frame, so a frozen camera is not
// silently recorded as live data.
func (c *MJPEG) Frame() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return Frame{}, fmt.Errorf("camera %s: stream ended: %w", c.url, c.err)
	}
	if !c.haveOne {
		return Frame{}, errors.New("no frame captured yet")
	}
	return c.frame, nil
}

// Close stops the capture goroutine and waits for it to exit.
func (c *MJPEG) Close() error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	return nil
}
