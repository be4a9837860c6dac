package main

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

// fakeLIS3DH emulates the register file of a LIS3DH behind an I2C bus.
type fakeLIS3DH struct {
	mu     sync.Mutex
	addr   uint16
	regs   [256]byte
	cursor byte
	fail   error
}

func newFakeLIS3DH(addr uint16) *fakeLIS3DH {
	f := &fakeLIS3DH{addr: addr}
	f.regs[0x0F] = 0x33 // WHO_AM_I
	return f
}

func (f *fakeLIS3DH) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if addr != f.addr {
		return fmt.Errorf("no device at 0x%02x", addr)
	}
	if len(w) > 0 {
		f.cursor = w[0] &^ 0x80
		for i, b := range w[1:] {
			f.regs[f.cursor+byte(i)] = b
		}
	}
	for i := range r {
		r[i] = f.regs[f.cursor+byte(i)]
	}
	return nil
}

func (f *fakeLIS3DH) setRaw(x, y, z int16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, v := range []int16{x, y, z} {
		f.regs[0x28+2*i] = byte(uint16(v))
		f.regs[0x28+2*i+1] = byte(uint16(v) >> 8)
	}
}

func (f *fakeLIS3DH) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func TestLIS3DHSensor_ReadsMetersPerSecondSquared(t *testing.T) {
	bus := newFakeLIS3DH(0x18)
	s, err := NewLIS3DHSensor(bus, 0x18, 4)
	if err != nil {
		t.Fatalf("NewLIS3DHSensor: %v", err)
	}
	if got := bus.regs[0x23] & 0x30; got != 0x10 {
		t.Fatalf("expected CTRL4 range bits for 4g, got 0x%02x", got)
	}

	// 8190 counts is 1g at the 4g range.
	bus.setRaw(8190, -8190, 4095)
	sample, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !almostEqual(sample.X, standardGravity) || !almostEqual(sample.Y, -standardGravity) || !almostEqual(sample.Z, standardGravity/2) {
		t.Fatalf("unexpected sample %+v", sample)
	}
}

func TestLIS3DHSensor_NotConnected(t *testing.T) {
	bus := newFakeLIS3DH(0x19)
	if _, err := NewLIS3DHSensor(bus, 0x18, 4); err == nil {
		t.Fatalf("expected probe failure at the wrong address")
	}

	bus = newFakeLIS3DH(0x18)
	bus.regs[0x0F] = 0x44
	if _, err := NewLIS3DHSensor(bus, 0x18, 4); err == nil {
		t.Fatalf("expected probe failure for a different chip")
	}
}

func TestLIS3DHSensor_BusErrorIsSensorUnavailable(t *testing.T) {
	bus := newFakeLIS3DH(0x18)
	s, err := NewLIS3DHSensor(bus, 0x18, 2)
	if err != nil {
		t.Fatalf("NewLIS3DHSensor: %v", err)
	}

	bus.setFail(errors.New("remote I/O error"))
	if _, err := s.Read(); !errors.Is(err, ErrSensorUnavailable) {
		t.Fatalf("expected ErrSensorUnavailable, got %v", err)
	}

	bus.setFail(nil)
	if _, err := s.Read(); err != nil {
		t.Fatalf("expected recovery after the bus comes back, got %v", err)
	}
}

func TestLIS3DHRange_Rejects(t *testing.T) {
	if _, err := NewLIS3DHSensor(newFakeLIS3DH(0x18), 0x18, 3); err == nil {
		t.Fatalf("expected error for 3g range")
	}
}
