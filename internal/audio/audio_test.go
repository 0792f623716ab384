package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFormat = beep.Format{SampleRate: 8000, NumChannels: 1, Precision: 2}

// wavBytes renders n samples of silence as a WAV file.
func wavBytes(t *testing.T, n int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, wav.Encode(f, beep.Silence(n), testFormat))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func samplesIn(t *testing.T, path string) (int, beep.Format) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	s, format, err := wav.Decode(f)
	require.NoError(t, err)
	return s.Len(), format
}

func TestPad_AddsSilenceOnBothEnds(t *testing.T) {
	p, err := NewPreparer(t.TempDir())
	require.NoError(t, err)

	art, err := p.Pad(context.Background(), wavBytes(t, 1000), "audio/wav", 100*time.Millisecond)
	require.NoError(t, err)

	n, format := samplesIn(t, art.URI())
	assert.Equal(t, 1000+2*800, n)
	assert.Equal(t, testFormat.SampleRate, format.SampleRate)
	assert.Equal(t, p.Dir(), filepath.Dir(art.URI()))
	assert.Equal(t, ".wav", filepath.Ext(art.URI()))
}

func TestPad_ZeroPaddingKeepsLength(t *testing.T) {
	p, err := NewPreparer(t.TempDir())
	require.NoError(t, err)

	// No content type: the RIFF header is sniffed.
	art, err := p.Pad(context.Background(), wavBytes(t, 500), "", 0)
	require.NoError(t, err)

	n, _ := samplesIn(t, art.URI())
	assert.Equal(t, 500, n)
}

func TestPad_RejectsNegativePadding(t *testing.T) {
	p, err := NewPreparer(t.TempDir())
	require.NoError(t, err)

	_, err = p.Pad(context.Background(), wavBytes(t, 10), "audio/wav", -time.Millisecond)
	assert.ErrorIs(t, err, ErrNegativePadding)
}

func TestPad_InvalidAudio(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPreparer(dir)
	require.NoError(t, err)

	_, err = p.Pad(context.Background(), []byte("definitely not audio"), "audio/mpeg", time.Second)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFile_ReleaseIsIdempotent(t *testing.T) {
	p, err := NewPreparer(t.TempDir())
	require.NoError(t, err)
	art, err := p.Pad(context.Background(), wavBytes(t, 10), "audio/wav", 0)
	require.NoError(t, err)

	require.NoError(t, art.Release())
	_, err = os.Stat(art.URI())
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, art.Release())
}

func TestIsWAV(t *testing.T) {
	riff := []byte("RIFF\x00\x00\x00\x00WAVEfmt ")

	assert.True(t, isWAV(nil, "audio/x-wav"))
	assert.False(t, isWAV(riff, "audio/mpeg"))
	assert.True(t, isWAV(riff, ""))
	assert.False(t, isWAV([]byte("ID3"), ""))
}
