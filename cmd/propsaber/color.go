package main

import (
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGB is a light color with 8-bit channels.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Black turns the light off.
var Black = RGB{}

var (
	defaultMainColor = RGB{90, 90, 0}
	defaultHitColor  = RGB{255, 255, 255}
)

// wheelSteps is the number of hues on the color wheel.
const wheelSteps = 7

// defaultWheel maps the wheel positions to a red -> violet rainbow.
var defaultWheel = [wheelSteps]RGB{
	{255, 0, 0},   // red
	{255, 165, 0}, // orange
	{255, 255, 0}, // yellow
	{0, 255, 0},   // green
	{0, 0, 255},   // blue
	{127, 0, 255}, // indigo
	{255, 0, 255}, // violet
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// parseHexColor parses "#rrggbb" (or the short "#rgb" form).
func parseHexColor(s string) (RGB, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return RGB{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return RGB{R: r, G: g, B: b}, nil
}

// WheelIndex quantizes value in [0, fullScale] into one of the wheel steps.
// Values outside the range are clamped.
func WheelIndex(value, fullScale int) int {
	if fullScale <= 0 || value <= 0 {
		return 0
	}
	idx := value * wheelSteps / (fullScale + 1)
	if idx >= wheelSteps {
		idx = wheelSteps - 1
	}
	return idx
}

// Wheel is a 7-step color palette.
type Wheel [wheelSteps]RGB

// At returns the color at idx, clamped to the palette.
func (w Wheel) At(idx int) RGB {
	if idx < 0 {
		idx = 0
	}
	if idx >= wheelSteps {
		idx = wheelSteps - 1
	}
	return w[idx]
}

// fixedColor is a ColorSource that never changes; used when no wheel is fitted.
type fixedColor RGB

func (c fixedColor) CurrentColor() RGB { return RGB(c) }
