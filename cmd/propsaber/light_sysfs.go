package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultLEDRoot = "/sys/class/leds"

func writeSysfs(path, value string) error {
	// sysfs attributes must be written in a single write(2)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readMaxBrightness(dir string) (int, error) {
	b, err := os.ReadFile(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return 0, fmt.Errorf("led %s: %w", filepath.Base(dir), err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("led %s: invalid max_brightness %q", filepath.Base(dir), strings.TrimSpace(string(b)))
	}
	return v, nil
}

// scale maps an 8-bit channel onto [0, max].
func scale(v uint8, max int) int {
	return (int(v)*max + 127) / 255
}

// sysfsLED is a single-channel LED class device.
type sysfsLED struct {
	dir string
	max int
}

func openSysfsLED(root, name string) (sysfsLED, error) {
	dir := filepath.Join(root, name)
	max, err := readMaxBrightness(dir)
	if err != nil {
		return sysfsLED{}, err
	}
	return sysfsLED{dir: dir, max: max}, nil
}

func (l sysfsLED) set(v uint8) error {
	return writeSysfs(filepath.Join(l.dir, "brightness"), strconv.Itoa(scale(v, l.max)))
}

// SysfsRGBLight drives three single-color LEDs as one RGB light.
type SysfsRGBLight struct {
	r, g, b sysfsLED
}

func NewSysfsRGBLight(root, red, green, blue string) (*SysfsRGBLight, error) {
	var l SysfsRGBLight
	var err error
	if l.r, err = openSysfsLED(root, red); err != nil {
		return nil, err
	}
	if l.g, err = openSysfsLED(root, green); err != nil {
		return nil, err
	}
	if l.b, err = openSysfsLED(root, blue); err != nil {
		return nil, err
	}
	return &l, nil
}

// SetColor implements Light.
func (l *SysfsRGBLight) SetColor(c RGB) error {
	if err := l.r.set(c.R); err != nil {
		return err
	}
	if err := l.g.set(c.G); err != nil {
		return err
	}
	return l.b.set(c.B)
}

// SysfsMulticolorLight drives a multicolor LED class device
// (leds-class-multicolor) with red, green and blue subchannels.
type SysfsMulticolorLight struct {
	dir string
	max int
}

func NewSysfsMulticolorLight(root, name string) (*SysfsMulticolorLight, error) {
	dir := filepath.Join(root, name)
	max, err := readMaxBrightness(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, "multi_intensity")); err != nil {
		return nil, fmt.Errorf("led %s is not a multicolor device: %w", name, err)
	}
	return &SysfsMulticolorLight{dir: dir, max: max}, nil
}

// SetColor implements Light. Intensities carry the color, brightness is
// full on or off.
func (l *SysfsMulticolorLight) SetColor(c RGB) error {
	intensity := fmt.Sprintf("%d %d %d", scale(c.R, l.max), scale(c.G, l.max), scale(c.B, l.max))
	if err := writeSysfs(filepath.Join(l.dir, "multi_intensity"), intensity); err != nil {
		return err
	}
	brightness := l.max
	if c == Black {
		brightness = 0
	}
	return writeSysfs(filepath.Join(l.dir, "brightness"), strconv.Itoa(brightness))
}

// SysfsEnable drives the output-enable line through a sysfs value file
// (a GPIO "value" attribute or a gpio-led "brightness").
type SysfsEnable struct {
	path string
}

func NewSysfsEnable(path string) *SysfsEnable {
	return &SysfsEnable{path: path}
}

// SetEnabled implements OutputEnable.
func (e *SysfsEnable) SetEnabled(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	return writeSysfs(e.path, v)
}
