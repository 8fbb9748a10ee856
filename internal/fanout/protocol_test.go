package fanout

import (
	"errors"
	"testing"
	"time"

	"live-gallery/internal/database"
)

func sampleNewFile() NewFile {
	return NewFile{
		ID:          "m1",
		Hash:        "900150983cd24fb0d6963f7d28e17f72",
		FileName:    "IMG_0001.jpg",
		Kind:        "image",
		Width:       "32",
		Height:      "64",
		Size:        "1024",
		Orientation: "1",
		FolderID:    "F1",
		CreatedAt:   "2026-01-02T03:04:05Z",
		Variants: []VariantPayload{
			{Kind: "original", Path: "/images/F1/original/IMG_0001.jpg", Size: "1024"},
		},
	}
}

func TestEncodeDecodeNewFile(t *testing.T) {
	in := sampleNewFile()
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got, ok := msg.(NewFile)
	if !ok {
		t.Fatalf("Decode returned %T, want NewFile", msg)
	}
	if got.ID != in.ID || got.Width != "32" || got.FolderID != "F1" {
		t.Errorf("decoded %+v, want %+v", got, in)
	}
	if len(got.Variants) != 1 || got.Variants[0].Path != in.Variants[0].Path {
		t.Errorf("variants = %+v", got.Variants)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not json", `{"type":`, ErrMalformed},
		{"missing type", `{"payload":{}}`, ErrMalformed},
		{"unknown type", `{"type":"delete-file","payload":{}}`, ErrUnknownType},
		{"new-file without payload", `{"type":"new-file"}`, ErrMalformed},
		{"new-file without id", `{"type":"new-file","payload":{"size":"1"}}`, ErrMalformed},
		{"non integer size", `{"type":"new-file","payload":{"id":"a","size":"big"}}`, ErrMalformed},
		{"non integer width", `{"type":"new-file","payload":{"id":"a","size":"1","width":"1.5"}}`, ErrMalformed},
		{"connected without id", `{"type":"connected","payload":{}}`, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode(%s) error = %v, want %v", tt.data, err, tt.want)
			}
		})
	}
}

func TestDecodeConnected(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"connected","payload":{"clientId":"c-1"}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	c, ok := msg.(Connected)
	if !ok || c.ClientID != "c-1" {
		t.Errorf("Decode = %#v, want Connected{c-1}", msg)
	}
}

func TestNewFileFrom(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := &database.MediaFile{
		ID:          "m1",
		Hash:        "abc",
		FileName:    "clip.mp4",
		Kind:        database.FileKindVideo,
		Duration:    database.IntPtr(12),
		Size:        2048,
		Orientation: 1,
		FolderID:    "F1",
		CreatedAt:   created,
		Variants: []database.Variant{
			{Kind: database.VariantOriginal, Path: "/images/F1/original/clip.mp4", Size: 2048},
		},
	}

	ev := NewFileFrom(m)
	if ev.Duration != "12" || ev.Size != "2048" || ev.Orientation != "1" {
		t.Errorf("integer fields = %q/%q/%q", ev.Duration, ev.Size, ev.Orientation)
	}
	if ev.Width != "" || ev.Height != "" {
		t.Errorf("video without probe should omit dimensions, got %q x %q", ev.Width, ev.Height)
	}
	if ev.CreatedAt != "2026-01-02T03:04:05Z" {
		t.Errorf("CreatedAt = %q", ev.CreatedAt)
	}
	if len(ev.Variants) != 1 || ev.Variants[0].Kind != "original" {
		t.Errorf("Variants = %+v", ev.Variants)
	}

	// The event must survive its own validation
	data, err := Encode(ev)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := Decode(data); err != nil {
		t.Errorf("Decode of NewFileFrom output failed: %v", err)
	}
}
