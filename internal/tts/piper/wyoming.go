package piper

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const wyomingVersion = "1.5.2"

// Limits on what a server may announce in an event header. Piper sends
// audio in chunks of a few kilobytes.
const (
	maxDataLength    = 1 << 20
	maxPayloadLength = 16 << 20
)

// ErrEventTooLarge is returned when an event, or the audio collected from a
// run of chunks, exceeds the limits above.
var ErrEventTooLarge = errors.New("wyoming event too large")

// event is one Wyoming message. On the wire it is a JSON header line,
// optionally followed by data_length bytes of extra JSON data and
// payload_length bytes of binary payload.
type event struct {
	Type          string         `json:"type"`
	Data          map[string]any `json:"data,omitempty"`
	DataLength    int            `json:"data_length,omitempty"`
	PayloadLength int            `json:"payload_length,omitempty"`
	Version       string         `json:"version,omitempty"`

	payload []byte
}

func (e *event) int(key string, fallback int) int {
	if v, ok := e.Data[key].(float64); ok {
		return int(v)
	}
	return fallback
}

func writeEvent(w io.Writer, e *event) error {
	e.Version = wyomingVersion
	e.DataLength = 0
	e.PayloadLength = len(e.payload)

	header, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", e.Type, err)
	}
	buf := make([]byte, 0, len(header)+1+len(e.payload))
	buf = append(buf, header...)
	buf = append(buf, '\n')
	buf = append(buf, e.payload...)
	_, err = w.Write(buf)
	return err
}

func readEvent(r *bufio.Reader) (*event, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading event header: %w", err)
	}

	var e event
	if err := json.Unmarshal(line, &e); err != nil {
		return nil, fmt.Errorf("decoding event header: %w", err)
	}
	if e.DataLength < 0 || e.DataLength > maxDataLength {
		return nil, fmt.Errorf("%s event data_length %d: %w", e.Type, e.DataLength, ErrEventTooLarge)
	}
	if e.PayloadLength < 0 || e.PayloadLength > maxPayloadLength {
		return nil, fmt.Errorf("%s event payload_length %d: %w", e.Type, e.PayloadLength, ErrEventTooLarge)
	}

	if e.DataLength > 0 {
		extra := make([]byte, e.DataLength)
		if _, err := io.ReadFull(r, extra); err != nil {
			return nil, fmt.Errorf("reading event data: %w", err)
		}
		var data map[string]any
		if err := json.Unmarshal(extra, &data); err != nil {
			return nil, fmt.Errorf("decoding event data: %w", err)
		}
		if e.Data == nil {
			e.Data = data
		} else {
			for k, v := range data {
				e.Data[k] = v
			}
		}
	}

	if e.PayloadLength > 0 {
		e.payload = make([]byte, e.PayloadLength)
		if _, err := io.ReadFull(r, e.payload); err != nil {
			return nil, fmt.Errorf("reading event payload: %w", err)
		}
	}
	return &e, nil
}

// wavHeader is the canonical 44-byte RIFF/WAVE header for PCM data.
type wavHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

// wrapPCM puts raw little-endian PCM into a WAV container.
func wrapPCM(pcm []byte, rate, channels, width int) []byte {
	h := wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(pcm)),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      uint16(channels),
		SampleRate:    uint32(rate),
		ByteRate:      uint32(rate * channels * width),
		BlockAlign:    uint16(channels * width),
		BitsPerSample: uint16(width * 8),
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(len(pcm)),
	}

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	_ = binary.Write(&buf, binary.LittleEndian, h)
	buf.Write(pcm)
	return buf.Bytes()
}
