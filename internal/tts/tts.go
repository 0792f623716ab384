// Package tts defines the interface for text-to-speech synthesis.
//
// Interlude synthesizes the text of a say command in the guild's language,
// pads it with silence and plays it over whatever music is running. The
// backends (Piper, Google Cloud) live in sub-packages.
package tts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupportedLanguage is wrapped by SynthesisError when the backend has no
// voice for the requested language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Language is the language code (e.g., "en", "fr", "en-GB") to select the voice.
	Language string

	// Voice overrides automatic language-based voice selection.
	Voice string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Synthesize generates playable audio from text. Failures are reported
	// as *SynthesisError.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Languages lists the language codes Synthesize accepts, sorted.
	Languages(ctx context.Context) ([]string, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the encoded audio (WAV or MP3, see ContentType).
	Audio []byte

	// ContentType is the MIME type of the audio (e.g., "audio/wav", "audio/mpeg").
	ContentType string

	// SampleRate is the audio sample rate in Hz, when known.
	SampleRate int

	// Channels is the number of audio channels, when known.
	Channels int
}

// SynthesisError reports an upstream synthesis failure or an unsupported
// language.
type SynthesisError struct {
	Language string
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed (language %q): %v", e.Language, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Fail wraps err as a SynthesisError for lang.
func Fail(lang string, err error) error {
	return &SynthesisError{Language: lang, Err: err}
}

// Lookup finds lang in langs ignoring case and returns the listed spelling.
func Lookup(langs []string, lang string) (string, bool) {
	for _, l := range langs {
		if strings.EqualFold(l, lang) {
			return l, true
		}
	}
	return "", false
}

// SortedKeys returns the keys of m in order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
