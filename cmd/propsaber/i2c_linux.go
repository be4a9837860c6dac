//go:build linux

package main

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// I2C_SLAVE ioctl from <linux/i2c-dev.h>.
const i2cSlave = 0x0703

// i2cDevBus is an I2C bus exposed through /dev/i2c-N. It implements the
// tinygo drivers.I2C interface so the upstream sensor drivers run unchanged.
type i2cDevBus struct {
	path string

	mu   sync.Mutex
	fd   int
	addr uint16
}

func openI2CBus(path string) (*i2cDevBus, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %s: %w", path, err)
	}
	return &i2cDevBus{path: path, fd: fd, addr: 0xffff}, nil
}

// Tx writes w and then reads len(r) bytes from the device at addr.
func (b *i2cDevBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.addr != addr {
		if err := unix.IoctlSetInt(b.fd, i2cSlave, int(addr)); err != nil {
			return fmt.Errorf("i2c set address 0x%02x: %w", addr, err)
		}
		b.addr = addr
	}
	if len(w) > 0 {
		if _, err := unix.Write(b.fd, w); err != nil {
			return fmt.Errorf("i2c write 0x%02x: %w", addr, err)
		}
	}
	if len(r) > 0 {
		if _, err := unix.Read(b.fd, r); err != nil {
			return fmt.Errorf("i2c read 0x%02x: %w", addr, err)
		}
	}
	return nil
}

func (b *i2cDevBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return unix.Close(b.fd)
}
