package fanout

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"live-gallery/internal/database"

	"github.com/goccy/go-json"
)

// Message types on the wire.
const (
	TypeNewFile   = "new-file"
	TypeConnected = "connected"
)

var (
	// ErrUnknownType is returned by Decode for an envelope whose type is not recognized.
	ErrUnknownType = errors.New("unknown message type")
	// ErrMalformed is returned by Decode for input that is not a valid envelope or payload.
	ErrMalformed = errors.New("malformed message")
)

// Message is a fanout message. It is implemented only by NewFile and Connected.
type Message interface {
	Type() string
	isMessage()
}

// envelope is the wire form shared by every message.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// VariantPayload describes one rendition in a new-file event.
type VariantPayload struct {
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	Size   string `json:"size"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
}

// NewFile announces a media file that has just been ingested. Integer
// fields are carried as decimal strings.
type NewFile struct {
	ID          string           `json:"id"`
	Hash        string           `json:"hash"`
	FileName    string           `json:"fileName"`
	Kind        string           `json:"kind"`
	Width       string           `json:"width,omitempty"`
	Height      string           `json:"height,omitempty"`
	Duration    string           `json:"duration,omitempty"`
	Size        string           `json:"size"`
	Orientation string           `json:"orientation"`
	FolderID    string           `json:"folderId"`
	CreatedAt   string           `json:"createdAt"`
	Variants    []VariantPayload `json:"variants"`
}

// Type implements Message.
func (NewFile) Type() string { return TypeNewFile }
func (NewFile) isMessage()   {}

// Connected greets a new stream subscriber with its id.
type Connected struct {
	ClientID string `json:"clientId"`
}

// Type implements Message.
func (Connected) Type() string { return TypeConnected }
func (Connected) isMessage()   {}

// Encode serializes m into its envelope.
func Encode(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", m.Type(), err)
	}
	return json.Marshal(envelope{Type: m.Type(), Payload: payload})
}

// Decode parses an envelope. Unknown types yield ErrUnknownType; anything
// that is not a well-formed message of a known type yields ErrMalformed.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeNewFile:
		if len(env.Payload) == 0 {
			return nil, fmt.Errorf("%w: new-file without payload", ErrMalformed)
		}
		var m NewFile
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := m.validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return m, nil

	case TypeConnected:
		var m Connected
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &m); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
		}
		if m.ClientID == "" {
			return nil, fmt.Errorf("%w: connected without clientId", ErrMalformed)
		}
		return m, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func (m NewFile) validate() error {
	if m.ID == "" {
		return errors.New("new-file without id")
	}
	fields := []struct {
		name     string
		value    string
		optional bool
	}{
		{"size", m.Size, false},
		{"width", m.Width, true},
		{"height", m.Height, true},
		{"duration", m.Duration, true},
		{"orientation", m.Orientation, true},
	}
	for _, f := range fields {
		if f.value == "" && f.optional {
			continue
		}
		if _, err := strconv.ParseInt(f.value, 10, 64); err != nil {
			return fmt.Errorf("%s is not an integer string: %q", f.name, f.value)
		}
	}
	return nil
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func optInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// NewFileFrom builds the event for a stored media file.
func NewFileFrom(m *database.MediaFile) NewFile {
	ev := NewFile{
		ID:          m.ID,
		Hash:        m.Hash,
		FileName:    m.FileName,
		Kind:        string(m.Kind),
		Width:       optInt(m.Width),
		Height:      optInt(m.Height),
		Duration:    optInt(m.Duration),
		Size:        itoa(m.Size),
		Orientation: strconv.Itoa(m.Orientation),
		FolderID:    m.FolderID,
		CreatedAt:   m.CreatedAt.UTC().Format(time.RFC3339),
		Variants:    make([]VariantPayload, 0, len(m.Variants)),
	}
	for _, v := range m.Variants {
		ev.Variants = append(ev.Variants, VariantPayload{
			Kind:   string(v.Kind),
			Path:   v.Path,
			Size:   itoa(v.Size),
			Width:  optInt(v.Width),
			Height: optInt(v.Height),
		})
	}
	return ev
}
