// Package piper implements the TTS Synthesizer using a Piper Wyoming protocol server.
//
// Piper is a fast, local neural text-to-speech system. The linuxserver/piper
// container exposes the Wyoming protocol on TCP port 10200. One connection is
// opened per synthesis:
//
//	→ synthesize {text, voice}
//	← audio-start {rate, width, channels}
//	← audio-chunk (PCM payload) ...
//	← audio-stop
package piper

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/nadzzz/interlude/internal/config"
	"github.com/nadzzz/interlude/internal/tts"
)

// defaultVoices maps language codes to Piper voice model names.
var defaultVoices = map[string]string{
	"de": "de_DE-thorsten-medium",
	"en": "en_US-lessac-medium",
	"es": "es_ES-mls_10246-low",
	"fr": "fr_FR-siwis-medium",
	"it": "it_IT-riccardo-x_low",
	"ja": "ja_JP-amitaro-medium",
	"ko": "ko_KR-kss-x_low",
	"nl": "nl_NL-mls-medium",
	"pl": "pl_PL-darkman-medium",
	"pt": "pt_BR-faber-medium",
	"ru": "ru_RU-ruslan-medium",
	"zh": "zh_CN-huayan-medium",
}

// Synthesizer implements tts.Synthesizer over the Wyoming protocol.
type Synthesizer struct {
	endpoint  string            // fallback host:port
	endpoints map[string]string // language -> host:port
	voices    map[string]string // language -> voice name
	timeout   time.Duration
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

// New creates a Piper synthesizer. Configured voices extend and override the
// built-in table; a language is supported iff it has a voice.
func New(cfg config.PiperConfig) *Synthesizer {
	voices := make(map[string]string, len(defaultVoices)+len(cfg.Voices))
	for lang, v := range defaultVoices {
		voices[lang] = v
	}
	for lang, v := range cfg.Voices {
		voices[strings.ToLower(lang)] = v
	}

	endpoints := make(map[string]string, len(cfg.Endpoints))
	for lang, ep := range cfg.Endpoints {
		endpoints[strings.ToLower(lang)] = hostPort(ep)
	}

	return &Synthesizer{
		endpoint:  hostPort(cfg.Endpoint),
		endpoints: endpoints,
		voices:    voices,
		timeout:   30 * time.Second,
	}
}

func hostPort(ep string) string {
	for _, scheme := range []string{"tcp://", "http://"} {
		ep = strings.TrimPrefix(ep, scheme)
	}
	return ep
}

// Languages returns every language with a configured voice.
func (s *Synthesizer) Languages(context.Context) ([]string, error) {
	return tts.SortedKeys(s.voices), nil
}

// Synthesize renders text with the voice for opts.Language and returns WAV.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	lang := strings.ToLower(opts.Language)
	if text == "" {
		return nil, tts.Fail(lang, errors.New("empty text"))
	}

	voice := opts.Voice
	if voice == "" {
		voice = s.voices[lang]
	}
	if voice == "" {
		return nil, tts.Fail(lang, tts.ErrUnsupportedLanguage)
	}

	endpoint := s.endpoints[lang]
	if endpoint == "" {
		endpoint = s.endpoint
	}
	if endpoint == "" {
		return nil, tts.Fail(lang, errors.New("no piper endpoint configured"))
	}

	slog.Debug("piper synthesize", "text_length", len(text), "voice", voice, "language", lang, "endpoint", endpoint)

	res, err := s.roundTrip(ctx, endpoint, text, voice)
	if err != nil {
		return nil, tts.Fail(lang, err)
	}
	return res, nil
}

func (s *Synthesizer) roundTrip(ctx context.Context, endpoint, text, voice string) (*tts.SynthesizeResult, error) {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to piper: %w", err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.timeout)
	}
	_ = conn.SetDeadline(deadline)

	req := &event{Type: "synthesize", Data: map[string]any{
		"text":  text,
		"voice": map[string]any{"name": voice},
	}}
	if err := writeEvent(conn, req); err != nil {
		return nil, fmt.Errorf("sending synthesize: %w", err)
	}

	r := bufio.NewReader(conn)
	var (
		pcm      bytes.Buffer
		rate     = 22050
		width    = 2
		channels = 1
	)
	for {
		e, err := readEvent(r)
		if err != nil {
			return nil, err
		}

		switch e.Type {
		case "audio-start":
			rate = e.int("rate", rate)
			width = e.int("width", width)
			channels = e.int("channels", channels)
		case "audio-chunk":
			if pcm.Len()+len(e.payload) > maxPayloadLength {
				return nil, fmt.Errorf("synthesized audio exceeds %d bytes: %w", maxPayloadLength, ErrEventTooLarge)
			}
			pcm.Write(e.payload)
		case "audio-stop":
			slog.Debug("piper audio complete", "pcm_bytes", pcm.Len(), "rate", rate)
			return &tts.SynthesizeResult{
				Audio:       wrapPCM(pcm.Bytes(), rate, channels, width),
				ContentType: "audio/wav",
				SampleRate:  rate,
				Channels:    channels,
			}, nil
		case "error":
			msg, _ := e.Data["text"].(string)
			if msg == "" {
				msg = "unknown error"
			}
			return nil, fmt.Errorf("piper error: %s", msg)
		default:
			slog.Debug("piper event ignored", "type", e.Type)
		}
	}
}

// Close is a no-op; connections are per-request.
func (s *Synthesizer) Close() error { return nil }
