package main

import (
	"fmt"
	"sync"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/lis3dh"
)

// txErrBus remembers the first bus error. The lis3dh driver drops Tx errors
// on its read path, so the sensor checks this after every read.
type txErrBus struct {
	bus drivers.I2C

	mu  sync.Mutex
	err error
}

func (b *txErrBus) Tx(addr uint16, w, r []byte) error {
	err := b.bus.Tx(addr, w, r)
	if err != nil {
		b.mu.Lock()
		if b.err == nil {
			b.err = err
		}
		b.mu.Unlock()
	}
	return err
}

func (b *txErrBus) takeErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.err
	b.err = nil
	return err
}

// LIS3DHSensor reads a LIS3DH accelerometer over I2C.
type LIS3DHSensor struct {
	bus *txErrBus
	dev lis3dh.Device
}

func lis3dhRange(g int) (lis3dh.Range, error) {
	switch g {
	case 2:
		return lis3dh.RANGE_2_G, nil
	case 4:
		return lis3dh.RANGE_4_G, nil
	case 8:
		return lis3dh.RANGE_8_G, nil
	case 16:
		return lis3dh.RANGE_16_G, nil
	}
	return 0, fmt.Errorf("unsupported lis3dh range %dg", g)
}

// NewLIS3DHSensor probes and configures the accelerometer at addr.
func NewLIS3DHSensor(bus drivers.I2C, addr uint16, rangeG int) (*LIS3DHSensor, error) {
	r, err := lis3dhRange(rangeG)
	if err != nil {
		return nil, err
	}

	tb := &txErrBus{bus: bus}
	dev := lis3dh.New(tb)
	dev.Address = addr
	if !dev.Connected() {
		tb.takeErr()
		return nil, fmt.Errorf("lis3dh not found at 0x%02x", addr)
	}
	dev.Configure()
	dev.SetRange(r)
	if err := tb.takeErr(); err != nil {
		return nil, fmt.Errorf("configure lis3dh: %w", err)
	}

	return &LIS3DHSensor{bus: tb, dev: dev}, nil
}

// Read implements MotionSensor. Values are in m/s².
func (s *LIS3DHSensor) Read() (Sample, error) {
	x, y, z, _ := s.dev.ReadAcceleration()
	if err := s.bus.takeErr(); err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrSensorUnavailable, err)
	}
	return Sample{
		X: microGToMS2(x),
		Y: microGToMS2(y),
		Z: microGToMS2(z),
	}, nil
}

func microGToMS2(v int32) float64 {
	return float64(v) * standardGravity / 1e6
}
