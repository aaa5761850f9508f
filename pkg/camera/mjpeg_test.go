package camera

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func mjpegServer(t *testing.T, frames ...[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame))
			w.Write(frame)
			fmt.Fprint(w, "\r\n")
			flusher.Flush()
		}
		// Start the next part so the last frame is terminated, then keep
		// the connection open while the test reads frames. The stream
		// itself never ends.
		fmt.Fprint(w, "--frame\r\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
}

func TestMJPEGCapturesLatestFrame(t *testing.T) {
	first := []byte{0xFF, 0xD8, 0x01}
	second := []byte{0xFF, 0xD8, 0x02}
	srv := mjpegServer(t, first, second)
	defer srv.Close()

	cam := NewMJPEG(srv.URL)
	if err := cam.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer cam.Close()

	// Wait for the background capture to deliver the second frame.
	deadline := time.Now().Add(2 * time.Second)
	for {
		frame, err := cam.Frame()
		if err == nil && string(frame.Data) == string(second) {
			if frame.Timestamp.IsZero() {
				t.Error("frame has no timestamp")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("never saw second frame, last: frame=%v err=%v", frame.Data, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMJPEGNoFrameYet(t *testing.T) {
	srv := mjpegServer(t)
	defer srv.Close()

	cam := NewMJPEG(srv.URL)
	if err := cam.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer cam.Close()

	if _, err := cam.Frame(); err == nil {
		t.Error("expected error before first frame")
	}
}

func TestMJPEGStreamDeathSurfaces(t *testing.T) {
	frame := []byte{0xFF, 0xD8, 0x01}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame))
		w.Write(frame)
		fmt.Fprint(w, "\r\n--frame--\r\n")
	}))
	defer srv.Close()

	cam := NewMJPEG(srv.URL)
	if err := cam.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer cam.Close()

	// The stream delivers one frame and then ends. Once the capture
	// goroutine has seen the end, Frame must report it instead of
	// serving the stale frame forever.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := cam.Frame(); err != nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("Frame kept serving the cached frame after the stream ended")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMJPEGRejectsNonStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	cam := NewMJPEG(srv.URL)
	if err := cam.Connect(context.Background()); err == nil {
		cam.Close()
		t.Fatal("expected error for non-MJPEG endpoint")
	}
}
