package ingest

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/analytics"
	"github.com/ElectrobladeIsADev/fitnessguide/pose"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMailbox_KeepsLatest(t *testing.T) {
	box := NewMailbox()
	for i := 0; i < 3; i++ {
		require.True(t, box.Publish(Sample{Source: string(rune('a' + i))}))
	}

	s, err := box.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c", s.Source)
	assert.Equal(t, uint64(3), box.Published())
	assert.Equal(t, uint64(2), box.Dropped())
}

func TestMailbox_NextBlocksUntilPublish(t *testing.T) {
	box := NewMailbox()
	got := make(chan Sample)
	go func() {
		s, err := box.Next(context.Background())
		assert.NoError(t, err)
		got <- s
	}()

	time.Sleep(20 * time.Millisecond)
	box.Publish(Sample{Source: "udp"})

	select {
	case s := <-got:
		assert.Equal(t, "udp", s.Source)
	case <-time.After(time.Second):
		t.Fatal("Next did not wake")
	}
}

func TestMailbox_CloseAndCancel(t *testing.T) {
	box := NewMailbox()
	box.Publish(Sample{Source: "last"})
	box.Close()
	box.Close()

	assert.False(t, box.Publish(Sample{}))

	s, err := box.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "last", s.Source)

	_, err = box.Next(context.Background())
	assert.ErrorIs(t, err, ErrMailboxClosed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewMailbox().Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingProcessor struct {
	mu     sync.Mutex
	frames []*pose.LandmarkFrame
	seen   chan struct{}
}

func (r *recordingProcessor) ProcessFrame(frame *pose.LandmarkFrame, _ time.Time) analytics.FrameResult {
	r.mu.Lock()
	r.frames = append(r.frames, frame)
	r.mu.Unlock()
	r.seen <- struct{}{}
	if frame == nil {
		return analytics.FrameResult{Skipped: analytics.SkipNoDetection}
	}
	return analytics.FrameResult{}
}

func TestPump_FeedsProcessor(t *testing.T) {
	box := NewMailbox()
	proc := &recordingProcessor{seen: make(chan struct{}, 4)}
	pump := NewPump(box, proc)

	errc := make(chan error, 1)
	go func() { errc <- pump.Run(context.Background()) }()

	f := pose.NewLandmarkFrame(time.Time{})
	box.Publish(Sample{Frame: f})
	<-proc.seen
	box.Publish(Sample{})
	<-proc.seen

	box.Close()
	require.NoError(t, <-errc)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	require.Len(t, proc.frames, 2)
	assert.Same(t, f, proc.frames[0])
	assert.Nil(t, proc.frames[1])
}

func TestPacket_Frame(t *testing.T) {
	no := false
	f, err := Packet{Type: "frame", Detected: &no}.Frame()
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = Packet{Type: "frame"}.Frame()
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = Packet{Type: "frame", TS: 1500, Joints: map[string]pose.Point2D{
		"left_knee": {X: 0.5, Y: 0.6},
		"nose":      {X: 0.1, Y: 0.1},
	}}.Frame()
	require.NoError(t, err)
	require.NotNil(t, f)
	p, ok := f.Point(pose.LeftKnee)
	assert.True(t, ok)
	assert.Equal(t, pose.Point2D{X: 0.5, Y: 0.6}, p)
	assert.Len(t, f.Points, 1)
	assert.Equal(t, int64(1500), f.Timestamp.UnixMilli())

	_, err = Packet{Type: "frame", Landmarks: make([]pose.Point2D, 10)}.Frame()
	assert.Error(t, err)
}

func TestUDPListener_DiscoverAndFrame(t *testing.T) {
	box := NewMailbox()
	l, err := ListenUDP("127.0.0.1:0", box)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-errc)
	}()

	client, err := net.DialUDP("udp4", nil, l.Addr().(*net.UDPAddr))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte(`{"type":"discover"}`))
	require.NoError(t, err)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 64)
	n, err := client.Read(buf)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ack"}`, string(buf[:n]))

	_, err = client.Write([]byte(`{"type":"frame","ts":10,"joints":{"left_hip":{"x":0.5,"y":0.3}}}`))
	require.NoError(t, err)

	nctx, ncancel := context.WithTimeout(context.Background(), time.Second)
	defer ncancel()
	s, err := box.Next(nctx)
	require.NoError(t, err)
	require.NotNil(t, s.Frame)
	assert.Equal(t, "udp", s.Source)
	_, ok := s.Frame.Point(pose.LeftHip)
	assert.True(t, ok)
	assert.NotNil(t, l.Peer())
}
