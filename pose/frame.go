package pose

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingJoint is returned when a frame lacks a landmark needed for a computation.
var ErrMissingJoint = errors.New("missing joint")

// Triple names the three joints of an angle; the vertex is the middle one.
type Triple [3]JointID

func (t Triple) String() string {
	return fmt.Sprintf("%s-%s-%s", t[0], t[1], t[2])
}

// Vertex returns the joint at which the angle is measured.
func (t Triple) Vertex() JointID {
	return t[1]
}

// LandmarkFrame is one pose detection: named joint positions and the capture time.
// It is consumed synchronously and must not be retained after processing.
type LandmarkFrame struct {
	Points    map[JointID]Point2D
	Timestamp time.Time
}

// NewLandmarkFrame returns an empty frame captured at ts.
func NewLandmarkFrame(ts time.Time) *LandmarkFrame {
	return &LandmarkFrame{
		Points:    make(map[JointID]Point2D, NumJoints),
		Timestamp: ts,
	}
}

// Set stores the position of joint j.
func (f *LandmarkFrame) Set(j JointID, p Point2D) {
	f.Points[j] = p
}

// Point returns the position of joint j, if present.
func (f *LandmarkFrame) Point(j JointID) (Point2D, bool) {
	p, ok := f.Points[j]
	return p, ok
}

// Angle returns the angle in degrees at the vertex of t.
func (f *LandmarkFrame) Angle(t Triple) (float64, error) {
	var pts [3]Point2D
	for i, j := range t {
		p, ok := f.Points[j]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingJoint, j)
		}
		pts[i] = p
	}

	deg, err := AngleAt(pts[0], pts[1], pts[2])
	if err != nil {
		return 0, fmt.Errorf("angle %s: %w", t, err)
	}
	return deg, nil
}

// FromMediaPipe builds a frame from a MediaPipe pose landmark array.
func FromMediaPipe(landmarks []Point2D, ts time.Time) (*LandmarkFrame, error) {
	if len(landmarks) < MinMediaPipeLandmarks {
		return nil, fmt.Errorf("mediapipe landmarks: need at least %d points, got %d",
			MinMediaPipeLandmarks, len(landmarks))
	}

	f := NewLandmarkFrame(ts)
	for _, j := range Joints() {
		f.Set(j, landmarks[j.MediaPipeIndex()])
	}
	return f, nil
}
