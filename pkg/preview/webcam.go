package preview

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// WebcamCapture acquires a local webcam stream via OpenCV. Used by the
// desktop build; mobile builds supply their own Capture.
type WebcamCapture struct {
	// DeviceID is the V4L2/AVFoundation device index.
	DeviceID int
}

// Acquire implements Capture.
func (w *WebcamCapture) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cam, err := gocv.OpenVideoCapture(w.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: open device %d: %v", ErrDeviceUnavailable, w.DeviceID, err)
	}
	if !cam.IsOpened() {
		cam.Close()
		return nil, fmt.Errorf("%w: device %d not opened", ErrDeviceUnavailable, w.DeviceID)
	}

	cam.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	cam.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))

	return &webcamStream{
		track: &webcamTrack{cam: cam},
	}, nil
}

type webcamStream struct {
	track *webcamTrack
}

func (s *webcamStream) Tracks() []Track {
	return []Track{s.track}
}

type webcamTrack struct {
	cam  *gocv.VideoCapture
	once sync.Once
	mu   sync.Mutex
}

func (t *webcamTrack) Kind() string { return "video" }

// Stop closes the capture device. Safe to call more than once.
func (t *webcamTrack) Stop() error {
	var err error
	t.once.Do(func() {
		err = t.cam.Close()
	})
	return err
}

// ReadFrame grabs the next frame into img. Returns false when the
// device has stopped delivering frames.
func (t *webcamTrack) ReadFrame(img *gocv.Mat) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cam.Read(img)
}

// Ensure WebcamCapture implements Capture.
var _ Capture = (*WebcamCapture)(nil)
