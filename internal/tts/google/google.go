// Package google implements the TTS Synthesizer using Google Cloud
// Text-to-Speech. Credentials are picked up from the environment
// (GOOGLE_APPLICATION_CREDENTIALS) by the client library.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"golang.org/x/time/rate"

	"github.com/nadzzz/interlude/internal/config"
	"github.com/nadzzz/interlude/internal/tts"
)

// speechClient is the subset of the Cloud client used here.
type speechClient interface {
	SynthesizeSpeech(ctx context.Context, req *ttspb.SynthesizeSpeechRequest) (*ttspb.SynthesizeSpeechResponse, error)
	ListVoices(ctx context.Context, req *ttspb.ListVoicesRequest) (*ttspb.ListVoicesResponse, error)
	Close() error
}

type cloudClient struct {
	c *texttospeech.Client
}

func (c cloudClient) SynthesizeSpeech(ctx context.Context, req *ttspb.SynthesizeSpeechRequest) (*ttspb.SynthesizeSpeechResponse, error) {
	return c.c.SynthesizeSpeech(ctx, req)
}

func (c cloudClient) ListVoices(ctx context.Context, req *ttspb.ListVoicesRequest) (*ttspb.ListVoicesResponse, error) {
	return c.c.ListVoices(ctx, req)
}

func (c cloudClient) Close() error { return c.c.Close() }

// Synthesizer implements tts.Synthesizer on Google Cloud Text-to-Speech.
type Synthesizer struct {
	client  speechClient
	voices  map[string]string // language code -> voice name
	limiter *rate.Limiter

	mu    sync.Mutex
	codes []string // cached language codes, full and base
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

// New creates a Cloud TTS client.
func New(ctx context.Context, cfg config.GoogleConfig) (*Synthesizer, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating google tts client: %w", err)
	}
	return newSynthesizer(cloudClient{client}, cfg), nil
}

func newSynthesizer(client speechClient, cfg config.GoogleConfig) *Synthesizer {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 300
	}
	voices := make(map[string]string, len(cfg.Voices))
	for lang, v := range cfg.Voices {
		voices[strings.ToLower(lang)] = v
	}
	return &Synthesizer{
		client:  client,
		voices:  voices,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

// Languages lists every language code the service has a voice for. Both the
// regional codes ("en-GB") and their base languages ("en") are included. The
// list is fetched once and cached.
func (s *Synthesizer) Languages(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes != nil {
		return s.codes, nil
	}

	resp, err := s.client.ListVoices(ctx, &ttspb.ListVoicesRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing voices: %w", err)
	}

	seen := make(map[string]struct{})
	for _, v := range resp.GetVoices() {
		for _, code := range v.GetLanguageCodes() {
			seen[code] = struct{}{}
			if base, _, ok := strings.Cut(code, "-"); ok {
				seen[base] = struct{}{}
			}
		}
	}
	s.codes = tts.SortedKeys(seen)
	slog.Debug("google tts languages cached", "count", len(s.codes))
	return s.codes, nil
}

// Synthesize renders text as MP3.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	lang := opts.Language
	if text == "" {
		return nil, tts.Fail(lang, errors.New("empty text"))
	}

	codes, err := s.Languages(ctx)
	if err != nil {
		return nil, tts.Fail(lang, err)
	}
	code, ok := matchLanguage(lang, codes)
	if !ok {
		return nil, tts.Fail(lang, tts.ErrUnsupportedLanguage)
	}

	voice := opts.Voice
	if voice == "" {
		voice = s.voices[strings.ToLower(lang)]
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, tts.Fail(lang, fmt.Errorf("rate limiter: %w", err))
	}

	slog.Debug("google synthesize", "text_length", len(text), "language", code, "voice", voice)

	resp, err := s.client.SynthesizeSpeech(ctx, &ttspb.SynthesizeSpeechRequest{
		Input: &ttspb.SynthesisInput{
			InputSource: &ttspb.SynthesisInput_Text{Text: text},
		},
		Voice: &ttspb.VoiceSelectionParams{
			LanguageCode: code,
			Name:         voice,
		},
		AudioConfig: &ttspb.AudioConfig{
			AudioEncoding: ttspb.AudioEncoding_MP3,
		},
	})
	if err != nil {
		return nil, tts.Fail(lang, fmt.Errorf("synthesizing speech: %w", err))
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, tts.Fail(lang, errors.New("empty audio content"))
	}

	return &tts.SynthesizeResult{
		Audio:       resp.GetAudioContent(),
		ContentType: "audio/mpeg",
	}, nil
}

// preferredRegion picks the variant a base code resolves to when the region
// does not simply repeat the language ("fr" -> "fr-FR").
var preferredRegion = map[string]string{
	"en": "US",
	"ja": "JP",
	"ko": "KR",
	"pt": "BR",
	"sv": "SE",
	"da": "DK",
}

// matchLanguage resolves lang against the service's codes. An exact regional
// match wins. A base code resolves to its preferred regional variant, or the
// first one in sort order.
func matchLanguage(lang string, codes []string) (string, bool) {
	if lang == "" {
		return "", false
	}
	var regional []string
	for _, c := range codes {
		if strings.EqualFold(c, lang) && strings.Contains(c, "-") {
			return c, true
		}
		if base, _, ok := strings.Cut(c, "-"); ok && strings.EqualFold(base, lang) {
			regional = append(regional, c)
		}
	}
	if len(regional) == 0 {
		return "", false
	}

	base := strings.ToLower(lang)
	region, ok := preferredRegion[base]
	if !ok {
		region = strings.ToUpper(base)
	}
	for _, c := range regional {
		if strings.EqualFold(c, base+"-"+region) {
			return c, true
		}
	}
	sort.Strings(regional)
	return regional[0], true
}

// Close releases the underlying client.
func (s *Synthesizer) Close() error {
	return s.client.Close()
}
