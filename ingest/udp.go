package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/pose"

	log "github.com/sirupsen/logrus"
)

const maxDatagram = 8192

// Packet is the JSON datagram sent by a pose source.
//
//	{"type":"frame","ts":1712,"detected":true,"landmarks":[{"x":0.5,"y":0.4},...]}
//	{"type":"frame","ts":1712,"joints":{"left_knee":{"x":0.5,"y":0.6},...}}
//	{"type":"discover"}
type Packet struct {
	Type      string                  `json:"type"`
	TS        int64                   `json:"ts"`
	Detected  *bool                   `json:"detected,omitempty"`
	Landmarks []pose.Point2D          `json:"landmarks,omitempty"`
	Joints    map[string]pose.Point2D `json:"joints,omitempty"`
}

// Frame converts the packet into a landmark frame. A packet flagged as not
// detected, or one carrying no points, yields a nil frame.
func (p Packet) Frame() (*pose.LandmarkFrame, error) {
	if p.Detected != nil && !*p.Detected {
		return nil, nil
	}

	ts := time.UnixMilli(p.TS)
	if len(p.Landmarks) > 0 {
		return pose.FromMediaPipe(p.Landmarks, ts)
	}
	if len(p.Joints) == 0 {
		return nil, nil
	}

	f := pose.NewLandmarkFrame(ts)
	for name, pt := range p.Joints {
		j, err := pose.ParseJoint(name)
		if err != nil {
			log.WithError(err).Debug("ignoring joint")
			continue
		}
		f.Set(j, pt)
	}
	return f, nil
}

// UDPListener receives landmark packets and publishes them to a mailbox.
type UDPListener struct {
	conn *net.UDPConn
	box  *Mailbox

	mu   sync.Mutex
	peer *net.UDPAddr
}

// ListenUDP binds addr (e.g. ":4210").
func ListenUDP(addr string, box *Mailbox) (*UDPListener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("udp resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("udp listen %s: %w", addr, err)
	}
	return &UDPListener{conn: conn, box: box}, nil
}

// Addr returns the bound local address.
func (l *UDPListener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Peer returns the address of the last source that sent a frame.
func (l *UDPListener) Peer() *net.UDPAddr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peer
}

// Run reads datagrams until ctx is cancelled. The socket is closed on return.
func (l *UDPListener) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { l.conn.Close() })
	defer stop()
	defer l.conn.Close()

	buf := make([]byte, maxDatagram)
	for {
		n, src, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warnf("udp read: %v", err)
			continue
		}
		l.handle(buf[:n], src)
	}
}

func (l *UDPListener) handle(data []byte, src *net.UDPAddr) {
	var pkt Packet
	if err := json.Unmarshal(data, &pkt); err != nil {
		log.Debugf("udp parse: %v (raw: %s)", err, data)
		return
	}

	switch pkt.Type {
	case "discover":
		if _, err := l.conn.WriteToUDP([]byte(`{"type":"ack"}`), src); err != nil {
			log.Warnf("ack send: %v", err)
		} else {
			log.Infof("discovery ack -> %s", src)
		}
	case "frame":
		l.trackPeer(src)
		frame, err := pkt.Frame()
		if err != nil {
			log.WithError(err).Debug("bad frame packet")
			return
		}
		l.box.Publish(Sample{Frame: frame, Source: "udp", Received: time.Now()})
	default:
		log.Debugf("unknown packet type: %q", pkt.Type)
	}
}

func (l *UDPListener) trackPeer(src *net.UDPAddr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.peer == nil || l.peer.String() != src.String() {
		l.peer = src
		log.Infof("pose source streaming from %s", src)
	}
}
