package main

import (
	"errors"
	"testing"
)

func TestFeedbackDriver_MissingClipIsSkipped(t *testing.T) {
	audio := &mockAudio{missing: map[string]bool{"hum": true}}
	fd := NewFeedbackDriver(FeedbackConfig{Audio: audio}, testLogger())

	if err := fd.Play("hum", true); err != nil {
		t.Fatalf("expected missing clip to be swallowed, got %v", err)
	}
	if err := fd.Play("", false); err != nil {
		t.Fatalf("expected empty clip name to be a no-op, got %v", err)
	}
	if len(audio.Plays()) != 0 {
		t.Fatalf("expected no plays, got %v", audio.Plays())
	}
}

type failingAudio struct{ err error }

func (a failingAudio) Play(string, bool) error { return a.err }
func (a failingAudio) IsPlaying() bool         { return false }

func TestFeedbackDriver_OtherAudioErrorsPropagate(t *testing.T) {
	boom := errors.New("device gone")
	fd := NewFeedbackDriver(FeedbackConfig{Audio: failingAudio{err: boom}}, testLogger())

	err := fd.Play("on", false)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped device error, got %v", err)
	}
}

func TestFeedbackDriver_PlayRandomUsesPick(t *testing.T) {
	audio := &mockAudio{}
	var sizes []int
	fd := NewFeedbackDriver(FeedbackConfig{
		Audio:      audio,
		SwingClips: []string{"swing1", "swing2", "swing3"},
		HitClips:   []string{"hit1", "hit2"},
		Pick: func(n int) int {
			sizes = append(sizes, n)
			return n - 1
		},
	}, testLogger())

	name, err := fd.PlayRandom(PoolSwing)
	if err != nil || name != "swing3" {
		t.Fatalf("expected swing3, got %q (%v)", name, err)
	}
	name, err = fd.PlayRandom(PoolHit)
	if err != nil || name != "hit2" {
		t.Fatalf("expected hit2, got %q (%v)", name, err)
	}
	if len(sizes) != 2 || sizes[0] != 3 || sizes[1] != 2 {
		t.Fatalf("expected pick over pool sizes [3 2], got %v", sizes)
	}
	plays := audio.Plays()
	if len(plays) != 2 || plays[0] != "swing3" || plays[1] != "hit2" {
		t.Fatalf("unexpected plays %v", plays)
	}
}

func TestFeedbackDriver_PlayRandomDefaultPickStaysInPool(t *testing.T) {
	audio := &mockAudio{}
	clips := []string{"a", "b", "c", "d"}
	fd := NewFeedbackDriver(FeedbackConfig{Audio: audio, HitClips: clips}, testLogger())

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		name, err := fd.PlayRandom(PoolHit)
		if err != nil {
			t.Fatalf("PlayRandom: %v", err)
		}
		seen[name] = true
	}
	for name := range seen {
		found := false
		for _, c := range clips {
			if c == name {
				found = true
			}
		}
		if !found {
			t.Fatalf("picked %q outside the pool", name)
		}
	}
	if len(seen) < 2 {
		t.Fatalf("expected more than one distinct clip over 200 picks, got %v", seen)
	}
}

func TestFeedbackDriver_EmptyPool(t *testing.T) {
	audio := &mockAudio{}
	fd := NewFeedbackDriver(FeedbackConfig{Audio: audio}, testLogger())

	name, err := fd.PlayRandom(PoolSwing)
	if err != nil || name != "" {
		t.Fatalf("expected empty pool to play nothing, got %q (%v)", name, err)
	}
	if len(audio.Plays()) != 0 {
		t.Fatalf("expected no plays, got %v", audio.Plays())
	}
}

func TestFeedbackDriver_Lights(t *testing.T) {
	light := &mockLight{}
	fd := NewFeedbackDriver(FeedbackConfig{Light: light}, testLogger())

	if err := fd.SetLight(RGB{1, 2, 3}); err != nil {
		t.Fatalf("SetLight: %v", err)
	}
	if light.Last() != (RGB{1, 2, 3}) {
		t.Fatalf("expected light #010203, got %s", light.Last())
	}
	if err := fd.SetStatusLight(RGB{0, 255, 0}); err != nil {
		t.Fatalf("expected nil status light to be a no-op, got %v", err)
	}

	light.err = errors.New("write failed")
	if err := fd.SetLight(Black); err == nil {
		t.Fatalf("expected light error to propagate")
	}
}
