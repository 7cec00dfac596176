package ble

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeLink struct {
	mu           sync.Mutex
	connected    bool
	attempts     atomic.Int32
	disconnects  atomic.Int32
	failFirst    int32
	onDisconnect DisconnectHandler
}

func (f *fakeLink) DeviceName() string { return DefaultDeviceName }

func (f *fakeLink) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeLink) SetDisconnectHandler(h DisconnectHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDisconnect = h
}

func (f *fakeLink) ScanAndConnect(ctx context.Context) error {
	n := f.attempts.Add(1)
	if n <= f.failFirst {
		return ErrDeviceNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeLink) Disconnect() error {
	f.disconnects.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

// drop simulates the sensor going out of range.
func (f *fakeLink) drop() {
	f.mu.Lock()
	f.connected = false
	h := f.onDisconnect
	f.mu.Unlock()
	if h != nil {
		h(DefaultDeviceName)
	}
}

func runScanner(t *testing.T, s *Scanner) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestScanner_ConnectsAfterRetries(t *testing.T) {
	link := &fakeLink{failFirst: 2}
	s := newScanner(link, ScanConfig{ScanInterval: 10 * time.Millisecond, RetryDelay: time.Millisecond})
	stop := runScanner(t, s)

	assert.True(t, s.WaitForSensor(context.Background(), time.Second))
	stop()

	assert.GreaterOrEqual(t, link.attempts.Load(), int32(3))
	assert.Equal(t, int32(1), link.disconnects.Load())
	assert.False(t, link.IsConnected())
}

func TestScanner_ReconnectsOnDisconnect(t *testing.T) {
	link := &fakeLink{}
	s := newScanner(link, ScanConfig{ScanInterval: time.Hour, AutoReconnect: true})
	stop := runScanner(t, s)
	defer stop()

	assert.True(t, s.WaitForSensor(context.Background(), time.Second))
	link.drop()

	assert.Eventually(t, func() bool {
		return link.attempts.Load() == 2 && link.IsConnected()
	}, time.Second, 5*time.Millisecond)
}

func TestScanner_WaitForSensorTimeout(t *testing.T) {
	link := &fakeLink{}
	s := newScanner(link, DefaultScanConfig())
	assert.False(t, s.WaitForSensor(context.Background(), 20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, s.WaitForSensor(ctx, 0))
}

func TestScanner_ConnectionErrorWaitsRetryDelay(t *testing.T) {
	link := &errLink{fakeLink: fakeLink{}}
	s := newScanner(link, ScanConfig{ScanInterval: time.Millisecond, RetryDelay: 50 * time.Millisecond})
	stop := runScanner(t, s)
	time.Sleep(30 * time.Millisecond)
	stop()

	assert.Equal(t, int32(1), link.attempts.Load())
}

type errLink struct {
	fakeLink
}

func (e *errLink) ScanAndConnect(context.Context) error {
	e.attempts.Add(1)
	return errors.New("GATT not resolved")
}
