// Package audio prepares synthesized speech for playback: it pads the audio
// with silence so the first and last syllables are not clipped by the voice
// connection, and writes it to a temporary file the audio node can load.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// ErrNegativePadding is returned for padding durations below zero.
var ErrNegativePadding = errors.New("padding must not be negative")

// File is a prepared audio artifact on disk.
type File struct {
	path string
}

// URI returns the path the audio node loads the file from.
func (f *File) URI() string { return f.path }

// Release deletes the file. A file that is already gone is not an error, so
// Release may be called more than once.
func (f *File) Release() error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", f.path, err)
	}
	return nil
}

// Preparer writes padded WAV artifacts into a directory.
type Preparer struct {
	dir string
}

// NewPreparer creates dir if needed. An empty dir selects the system
// temporary directory.
func NewPreparer(dir string) (*Preparer, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audio dir: %w", err)
	}
	return &Preparer{dir: dir}, nil
}

// Dir returns the directory artifacts are written to.
func (p *Preparer) Dir() string { return p.dir }

// Pad surrounds the audio with padding of silence on both ends and writes
// it as WAV. MP3 and WAV input are accepted; contentType may be empty, in
// which case the format is sniffed.
func (p *Preparer) Pad(ctx context.Context, data []byte, contentType string, padding time.Duration) (*File, error) {
	if padding < 0 {
		return nil, ErrNegativePadding
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stream, format, err := decode(data, contentType)
	if err != nil {
		return nil, err
	}

	silence := format.SampleRate.N(padding)
	padded := beep.Seq(beep.Silence(silence), stream, beep.Silence(silence))

	path := filepath.Join(p.dir, uuid.NewString()+".wav")
	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating artifact: %w", err)
	}

	if err := wav.Encode(out, padded, format); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("encoding artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("closing artifact: %w", err)
	}

	slog.Debug("audio prepared", "path", path, "padding", padding,
		"sample_rate", int(format.SampleRate), "channels", format.NumChannels)
	return &File{path: path}, nil
}

func decode(data []byte, contentType string) (beep.Streamer, beep.Format, error) {
	switch {
	case isWAV(data, contentType):
		s, format, err := wav.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decoding wav: %w", err)
		}
		return s, format, nil
	default:
		s, format, err := decodeMP3(io.NopCloser(bytes.NewReader(data)))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decoding mp3: %w", err)
		}
		return s, format, nil
	}
}

func isWAV(data []byte, contentType string) bool {
	switch strings.ToLower(contentType) {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return true
	case "audio/mpeg", "audio/mp3":
		return false
	}
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}
