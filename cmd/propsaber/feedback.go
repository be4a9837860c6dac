package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
)

// ClipPool names a pool of interchangeable clips.
type ClipPool int

const (
	PoolSwing ClipPool = iota
	PoolHit
)

func (p ClipPool) String() string {
	switch p {
	case PoolSwing:
		return "swing"
	case PoolHit:
		return "hit"
	default:
		return fmt.Sprintf("pool(%d)", int(p))
	}
}

// FeedbackDriver turns feedback commands into audio and light output.
// A missing clip is logged and skipped; it never stops the controller.
type FeedbackDriver struct {
	audio  AudioOutput
	light  Light
	status Light
	pools  map[ClipPool][]string
	pick   func(n int) int
	logger *slog.Logger
}

// FeedbackConfig wires a FeedbackDriver. Status may be nil.
type FeedbackConfig struct {
	Audio      AudioOutput
	Light      Light
	Status     Light
	SwingClips []string
	HitClips   []string
	// Pick returns a uniform index in [0, n). Defaults to math/rand/v2.
	Pick func(n int) int
}

// NewFeedbackDriver constructs a driver; nil lights become no-ops.
func NewFeedbackDriver(cfg FeedbackConfig, logger *slog.Logger) *FeedbackDriver {
	fd := &FeedbackDriver{
		audio:  cfg.Audio,
		light:  cfg.Light,
		status: cfg.Status,
		pools: map[ClipPool][]string{
			PoolSwing: append([]string(nil), cfg.SwingClips...),
			PoolHit:   append([]string(nil), cfg.HitClips...),
		},
		pick:   cfg.Pick,
		logger: logger,
	}
	if fd.audio == nil {
		fd.audio = newSilentAudio(nil, wallClock{})
	}
	if fd.light == nil {
		fd.light = noLight{}
	}
	if fd.status == nil {
		fd.status = noLight{}
	}
	if fd.pick == nil {
		fd.pick = rand.Intn
	}
	return fd
}

// Play starts a clip. Missing assets are swallowed here and only here.
func (fd *FeedbackDriver) Play(name string, loop bool) error {
	if name == "" {
		return nil
	}
	err := fd.audio.Play(name, loop)
	if errors.Is(err, ErrClipMissing) {
		fd.logger.Debug("clip missing, skipping", "clip", name, "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("play %q: %w", name, err)
	}
	fd.logger.Debug("playing", "clip", name, "loop", loop)
	return nil
}

// PlayRandom plays a uniformly chosen clip from pool. It returns the chosen
// name, or "" when the pool is empty.
func (fd *FeedbackDriver) PlayRandom(pool ClipPool) (string, error) {
	clips := fd.pools[pool]
	if len(clips) == 0 {
		fd.logger.Debug("clip pool empty", "pool", pool.String())
		return "", nil
	}
	name := clips[fd.pick(len(clips))]
	return name, fd.Play(name, false)
}

// IsPlaying reports whether a clip is still audible.
func (fd *FeedbackDriver) IsPlaying() bool {
	return fd.audio.IsPlaying()
}

// SetLight sets the main light.
func (fd *FeedbackDriver) SetLight(c RGB) error {
	if err := fd.light.SetColor(c); err != nil {
		return fmt.Errorf("set light %s: %w", c, err)
	}
	return nil
}

// SetStatusLight sets the status pixel.
func (fd *FeedbackDriver) SetStatusLight(c RGB) error {
	if err := fd.status.SetColor(c); err != nil {
		return fmt.Errorf("set status light %s: %w", c, err)
	}
	return nil
}
