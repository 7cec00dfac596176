package ble

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// ScanConfig holds configuration for device scanning.
type ScanConfig struct {
	// ScanTimeout bounds a single scan attempt (0 = until found)
	ScanTimeout time.Duration
	// RetryDelay is how long to wait after a failed connection
	RetryDelay time.Duration
	// ScanInterval is how often to check for a disconnected sensor
	ScanInterval time.Duration
	// AutoReconnect rescans immediately when the sensor drops
	AutoReconnect bool
}

// DefaultScanConfig returns sensible defaults for scanning.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		ScanTimeout:   10 * time.Second,
		RetryDelay:    2 * time.Second,
		ScanInterval:  2 * time.Second,
		AutoReconnect: true,
	}
}

// link is the part of Central the scanner drives.
type link interface {
	DeviceName() string
	IsConnected() bool
	SetDisconnectHandler(handler DisconnectHandler)
	ScanAndConnect(ctx context.Context) error
	Disconnect() error
}

// Scanner keeps the pose sensor connected, rescanning whenever it drops.
type Scanner struct {
	central link
	config  ScanConfig
	wake    chan struct{}
}

// NewScanner creates a new Scanner with the given Central and config.
func NewScanner(central *Central, config ScanConfig) *Scanner {
	return newScanner(central, config)
}

func newScanner(central link, config ScanConfig) *Scanner {
	if config.ScanInterval <= 0 {
		config.ScanInterval = DefaultScanConfig().ScanInterval
	}
	return &Scanner{
		central: central,
		config:  config,
		wake:    make(chan struct{}, 1),
	}
}

// Run checks the connection every ScanInterval until ctx is cancelled, then
// disconnects the sensor.
func (s *Scanner) Run(ctx context.Context) {
	if s.config.AutoReconnect {
		s.central.SetDisconnectHandler(s.onDisconnect)
	}
	log.WithField("interval", s.config.ScanInterval).Info("Scanner: starting scan loop")

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	s.checkAndScan(ctx)
	for {
		select {
		case <-ctx.Done():
			if err := s.central.Disconnect(); err != nil {
				log.WithError(err).Warn("Scanner: disconnect")
			}
			log.Info("Scanner: stopped")
			return
		case <-ticker.C:
			s.checkAndScan(ctx)
		case <-s.wake:
			s.checkAndScan(ctx)
		}
	}
}

// onDisconnect triggers an immediate scan instead of waiting for the next tick.
func (s *Scanner) onDisconnect(deviceName string) {
	log.Infof("Scanner: %s disconnected, initiating reconnection scan", deviceName)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// checkAndScan connects the sensor if it is not connected.
func (s *Scanner) checkAndScan(ctx context.Context) {
	if ctx.Err() != nil || s.central.IsConnected() {
		return
	}

	scanCtx := ctx
	if s.config.ScanTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, s.config.ScanTimeout)
		defer cancel()
	}

	err := s.central.ScanAndConnect(scanCtx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
	case errors.Is(err, ErrDeviceNotFound):
		log.WithField("device", s.central.DeviceName()).Debug("Scanner: sensor not in range")
	default:
		log.WithError(err).Warn("Scanner: connection failed")
		select {
		case <-ctx.Done():
		case <-time.After(s.config.RetryDelay):
		}
	}
}

// WaitForSensor blocks until the sensor is connected, the timeout expires
// (0 = no timeout) or ctx is done.
func (s *Scanner) WaitForSensor(ctx context.Context, timeout time.Duration) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.central.IsConnected() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
