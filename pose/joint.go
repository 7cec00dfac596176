package pose

import (
	"fmt"
	"strings"
)

// JointID identifies one of the tracked body landmarks.
type JointID int

const (
	LeftShoulder JointID = iota
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle

	NumJoints = int(RightAnkle) + 1
)

var jointNames = [NumJoints]string{
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
}

// Landmark indices of the MediaPipe pose model (33 landmarks).
var mediaPipeIndex = [NumJoints]int{11, 12, 13, 14, 15, 16, 23, 24, 25, 26, 27, 28}

// MinMediaPipeLandmarks is the shortest landmark array FromMediaPipe accepts.
const MinMediaPipeLandmarks = 29

func (j JointID) String() string {
	if !j.Valid() {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// Valid reports whether j is one of the known joints.
func (j JointID) Valid() bool {
	return j >= 0 && int(j) < NumJoints
}

// MediaPipeIndex returns the index of j in a MediaPipe pose landmark array.
func (j JointID) MediaPipeIndex() int {
	return mediaPipeIndex[j]
}

// MarshalText implements encoding.TextMarshaler.
func (j JointID) MarshalText() ([]byte, error) {
	if !j.Valid() {
		return nil, fmt.Errorf("unknown joint %d", int(j))
	}
	return []byte(j.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (j *JointID) UnmarshalText(text []byte) error {
	parsed, err := ParseJoint(string(text))
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}

// ParseJoint resolves a joint name such as "left_knee" (case-insensitive).
func ParseJoint(name string) (JointID, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range jointNames {
		if n == name {
			return JointID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown joint %q", name)
}

// Joints returns every known joint in declaration order.
func Joints() []JointID {
	out := make([]JointID, NumJoints)
	for i := range out {
		out[i] = JointID(i)
	}
	return out
}
