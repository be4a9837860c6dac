package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
)

// ============================================================================
// Clip catalog
// ============================================================================

// clipCatalog resolves clip names to WAV files in a directory and keeps the
// decoded audio in memory so a hit clip starts without touching the disk.
type clipCatalog struct {
	dir string

	mu    sync.Mutex
	clips map[string]*beep.Buffer
}

func newClipCatalog(dir string) *clipCatalog {
	return &clipCatalog{
		dir:   dir,
		clips: make(map[string]*beep.Buffer),
	}
}

func (c *clipCatalog) path(name string) string {
	return filepath.Join(c.dir, name+defaultClipExtension)
}

// load returns the decoded clip. Failures are not cached so a clip copied
// onto the device later is picked up on the next play.
func (c *clipCatalog) load(name string) (*beep.Buffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if buf, ok := c.clips[name]; ok {
		return buf, nil
	}

	f, err := os.Open(c.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrClipMissing, name)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrClipMissing, name, err)
	}
	defer f.Close()

	streamer, format, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrClipMissing, name, err)
	}
	defer streamer.Close()

	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrClipMissing, name, err)
	}

	c.clips[name] = buf
	return buf, nil
}

// Preload decodes the named clips and returns the ones that failed.
func (c *clipCatalog) Preload(names []string) []string {
	var missing []string
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, err := c.load(n); err != nil {
			missing = append(missing, n)
		}
	}
	return missing
}

// duration returns the play time of a decoded clip.
func clipDuration(buf *beep.Buffer) time.Duration {
	return buf.Format().SampleRate.D(buf.Len())
}

// ============================================================================
// Speaker output
// ============================================================================

// SpeakerAudio plays clips through the default sound device.
// Only one clip plays at a time; a new Play supersedes the current one.
type SpeakerAudio struct {
	catalog *clipCatalog
	rate    beep.SampleRate
	logger  *slog.Logger

	mu      sync.Mutex
	gen     uint64
	playing atomic.Bool
}

// NewSpeakerAudio initializes the speaker at sampleRate. Clips at other
// rates are resampled on the fly.
func NewSpeakerAudio(catalog *clipCatalog, sampleRate int, logger *slog.Logger) (*SpeakerAudio, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(speakerBufferPeriod)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return &SpeakerAudio{
		catalog: catalog,
		rate:    sr,
		logger:  logger,
	}, nil
}

// Play implements AudioOutput.
// A clip that fails to load still stops the current one, so a missing swing
// clip never leaves the idle loop reporting as the swing.
func (a *SpeakerAudio) Play(name string, loop bool) error {
	buf, err := a.catalog.load(name)
	if err != nil {
		a.mu.Lock()
		a.gen++
		a.mu.Unlock()
		a.playing.Store(false)
		speaker.Clear()
		return err
	}

	var s beep.Streamer = buf.Streamer(0, buf.Len())
	if loop {
		s = beep.Loop(-1, buf.Streamer(0, buf.Len()))
	}
	if src := buf.Format().SampleRate; src != a.rate {
		s = beep.Resample(defaultResampleQual, src, a.rate, s)
	}

	a.mu.Lock()
	a.gen++
	gen := a.gen
	a.mu.Unlock()
	a.playing.Store(true)

	// The callback runs on the speaker goroutine once the clip drains.
	done := beep.Callback(func() { a.finished(gen) })

	speaker.Clear()
	speaker.Play(beep.Seq(s, done))
	return nil
}

func (a *SpeakerAudio) finished(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen == a.gen {
		a.playing.Store(false)
	}
}

// IsPlaying implements AudioOutput.
func (a *SpeakerAudio) IsPlaying() bool {
	return a.playing.Load()
}

// Close stops playback and releases the sound device.
func (a *SpeakerAudio) Close() {
	speaker.Clear()
	speaker.Close()
}

// ============================================================================
// Silent output
// ============================================================================

// SilentAudio produces no sound but keeps clip timing, so SWING and HIT still
// end when their clip would have. Used without a sound device and in the simulator
// when the speaker cannot be opened.
type SilentAudio struct {
	catalog *clipCatalog
	clock   Clock

	mu      sync.Mutex
	until   time.Time
	looping bool
	current string
}

func newSilentAudio(catalog *clipCatalog, clock Clock) *SilentAudio {
	return &SilentAudio{catalog: catalog, clock: clock}
}

// Play implements AudioOutput. Without a catalog every clip has zero length.
func (a *SilentAudio) Play(name string, loop bool) error {
	var d time.Duration
	var err error
	if a.catalog != nil {
		var buf *beep.Buffer
		if buf, err = a.catalog.load(name); err == nil {
			d = clipDuration(buf)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.until = a.clock.Now()
	a.looping = false
	a.current = ""
	if err != nil {
		return err
	}
	a.until = a.until.Add(d)
	a.looping = loop
	a.current = name
	return nil
}

// IsPlaying implements AudioOutput.
func (a *SilentAudio) IsPlaying() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.looping || a.clock.Now().Before(a.until)
}

// Current returns the name of the last clip started.
func (a *SilentAudio) Current() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}
