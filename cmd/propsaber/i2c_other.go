//go:build !linux

package main

import "errors"

var errNoI2CDev = errors.New("i2c-dev is only available on linux")

type i2cDevBus struct{}

func openI2CBus(path string) (*i2cDevBus, error) {
	return nil, errNoI2CDev
}

func (*i2cDevBus) Tx(addr uint16, w, r []byte) error { return errNoI2CDev }

func (*i2cDevBus) Close() error { return nil }
