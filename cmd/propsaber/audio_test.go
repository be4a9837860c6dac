package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeWAV writes a mono 16-bit PCM file of silence.
func writeWAV(t *testing.T, dir, name string, sampleRate, samples int) {
	t.Helper()

	dataSize := samples * 2
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+dataSize))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&b, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&b, binary.LittleEndian, uint16(2))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(dataSize))
	b.Write(make([]byte, dataSize))

	if err := os.WriteFile(filepath.Join(dir, name+defaultClipExtension), b.Bytes(), 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
}

func TestClipCatalog_LoadAndPreload(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, dir, "swing1", 22050, 2205)
	if err := os.WriteFile(filepath.Join(dir, "broken.wav"), []byte("not a wav"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cat := newClipCatalog(dir)
	buf, err := cat.load("swing1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d := clipDuration(buf); d != 100*time.Millisecond {
		t.Fatalf("expected 100ms clip, got %v", d)
	}

	if _, err := cat.load("nope"); !errors.Is(err, ErrClipMissing) {
		t.Fatalf("expected ErrClipMissing for absent clip, got %v", err)
	}
	if _, err := cat.load("broken"); !errors.Is(err, ErrClipMissing) {
		t.Fatalf("expected ErrClipMissing for undecodable clip, got %v", err)
	}

	missing := cat.Preload([]string{"swing1", "", "nope"})
	if len(missing) != 1 || missing[0] != "nope" {
		t.Fatalf("expected [nope] missing, got %v", missing)
	}
}

func TestSilentAudio_KeepsClipTiming(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, dir, "swing1", 22050, 2205)
	writeWAV(t, dir, "idle", 22050, 22050)

	clock := newFakeClock()
	a := newSilentAudio(newClipCatalog(dir), clock)

	if err := a.Play("swing1", false); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !a.IsPlaying() || a.Current() != "swing1" {
		t.Fatalf("expected swing1 playing")
	}
	clock.Advance(99 * time.Millisecond)
	if !a.IsPlaying() {
		t.Fatalf("expected clip still playing at 99ms")
	}
	clock.Advance(time.Millisecond)
	if a.IsPlaying() {
		t.Fatalf("expected clip finished at 100ms")
	}

	if err := a.Play("idle", true); err != nil {
		t.Fatalf("Play loop: %v", err)
	}
	clock.Advance(time.Hour)
	if !a.IsPlaying() {
		t.Fatalf("expected looping clip to keep playing")
	}
}

func TestSilentAudio_MissingClipStopsCurrent(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, dir, "idle", 22050, 22050)

	a := newSilentAudio(newClipCatalog(dir), newFakeClock())
	if err := a.Play("idle", true); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if err := a.Play("swing9", false); !errors.Is(err, ErrClipMissing) {
		t.Fatalf("expected ErrClipMissing, got %v", err)
	}
	if a.IsPlaying() {
		t.Fatalf("expected failed play to stop the idle loop")
	}
	if a.Current() != "" {
		t.Fatalf("expected no current clip, got %q", a.Current())
	}
}

func TestSilentAudio_NoCatalog(t *testing.T) {
	a := newSilentAudio(nil, newFakeClock())
	if err := a.Play("anything", false); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if a.IsPlaying() {
		t.Fatalf("expected zero-length clip without a catalog")
	}
}
