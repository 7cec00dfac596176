// Package ble streams landmark frames from a BLE pose-sensor peripheral.
package ble

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/pose"
)

// PacketSize is the expected size of a landmark packet in bytes.
const PacketSize = headerSize + pose.NumJoints*4

const headerSize = 8

// coordScale converts the wire units (1/10000) to normalized coordinates.
const coordScale = 10000.0

// MissingCoord marks a joint the sensor could not locate.
const MissingCoord uint16 = 0xFFFF

// Flag bit positions
const (
	FlagDetected   uint8 = 1 << 0 // Bit 0: a person is in view
	FlagLowBattery uint8 = 1 << 1 // Bit 1: battery below 15%
)

// ErrInvalidPacketSize is returned when the packet data is not PacketSize bytes.
var ErrInvalidPacketSize = errors.New("invalid packet size")

// LandmarkPacket is one binary pose sample from the sensor. All multi-byte
// fields are little-endian.
//
//	0  seq   u16
//	2  flags u8
//	3  count u8   number of located joints
//	4  ts    u32  milliseconds since boot
//	8  12 x (x u16, y u16) in JointID order, 1/10000 of frame size
type LandmarkPacket struct {
	Sequence  uint16
	Flags     uint8
	Joints    uint8
	Timestamp uint32
	Coords    [pose.NumJoints][2]uint16
}

// ParsePacket decodes a binary packet into a LandmarkPacket.
func ParsePacket(data []byte) (*LandmarkPacket, error) {
	if len(data) != PacketSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPacketSize, PacketSize, len(data))
	}

	p := &LandmarkPacket{
		Sequence:  binary.LittleEndian.Uint16(data[0:2]),
		Flags:     data[2],
		Joints:    data[3],
		Timestamp: binary.LittleEndian.Uint32(data[4:8]),
	}
	for i := range p.Coords {
		off := headerSize + i*4
		p.Coords[i][0] = binary.LittleEndian.Uint16(data[off : off+2])
		p.Coords[i][1] = binary.LittleEndian.Uint16(data[off+2 : off+4])
	}
	return p, nil
}

// MarshalBinary encodes the packet in wire format.
func (p *LandmarkPacket) MarshalBinary() ([]byte, error) {
	data := make([]byte, PacketSize)
	binary.LittleEndian.PutUint16(data[0:2], p.Sequence)
	data[2] = p.Flags
	data[3] = p.Joints
	binary.LittleEndian.PutUint32(data[4:8], p.Timestamp)
	for i, c := range p.Coords {
		off := headerSize + i*4
		binary.LittleEndian.PutUint16(data[off:off+2], c[0])
		binary.LittleEndian.PutUint16(data[off+2:off+4], c[1])
	}
	return data, nil
}

// Detected returns true if the sensor saw a person.
func (p *LandmarkPacket) Detected() bool {
	return p.Flags&FlagDetected != 0
}

// LowBattery returns true if the sensor reports a low battery.
func (p *LandmarkPacket) LowBattery() bool {
	return p.Flags&FlagLowBattery != 0
}

// Frame converts the packet to a landmark frame, timestamped relative to
// base (the wall time of device boot). It returns nil when nobody is detected.
func (p *LandmarkPacket) Frame(base time.Time) *pose.LandmarkFrame {
	if !p.Detected() {
		return nil
	}

	f := pose.NewLandmarkFrame(base.Add(time.Duration(p.Timestamp) * time.Millisecond))
	for i, c := range p.Coords {
		if c[0] == MissingCoord || c[1] == MissingCoord {
			continue
		}
		f.Set(pose.JointID(i), pose.Point2D{
			X: float64(c[0]) / coordScale,
			Y: float64(c[1]) / coordScale,
		})
	}
	return f
}

// String returns a human-readable representation of the packet.
func (p *LandmarkPacket) String() string {
	return fmt.Sprintf("seq=%d ts=%d joints=%d flags=0x%02x", p.Sequence, p.Timestamp, p.Joints, p.Flags)
}

// seqTracker estimates packet loss from sequence numbers.
type seqTracker struct {
	started  bool
	last     uint16
	received uint64
	lost     uint64
}

// observe records seq and returns how many packets were skipped before it.
func (t *seqTracker) observe(seq uint16) uint64 {
	t.received++
	if !t.started {
		t.started = true
		t.last = seq
		return 0
	}
	gap := uint64(seq - t.last - 1) // wraps at 65535
	t.last = seq
	if gap == 0 || gap >= 1000 {
		return 0
	}
	t.lost += gap
	return gap
}

// lossPercent returns the lost share of all packets sent.
func (t *seqTracker) lossPercent() float64 {
	total := t.received + t.lost
	if total == 0 {
		return 0
	}
	return float64(t.lost) / float64(total) * 100
}
