package media

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/weiwangfds/melodia/internal/errors"
	"github.com/weiwangfds/melodia/internal/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func testPolicy() Policy {
	return Policy{
		MaxAudioSize:    1 << 20,
		MaxImageSize:    1 << 10,
		AudioExtensions: []string{".mp3", ".flac", ".wav"},
		ImageExtensions: []string{".png", ".jpg"},
	}
}

// mp3WithTags returns an ID3v2.4 tag followed by some fake frame bytes.
func mp3WithTags(t *testing.T) []byte {
	t.Helper()
	tag := id3v2.NewEmptyTag()
	tag.SetVersion(4)
	tag.SetTitle("Night Drive")
	tag.SetArtist("The Tapes")
	tag.SetAlbum("Highways")
	tag.SetGenre("(17)")
	tag.AddTextFrame(tag.CommonID("Length"), tag.DefaultEncoding(), "185400")

	var buf bytes.Buffer
	_, err := tag.WriteTo(&buf)
	require.NoError(t, err)
	buf.Write(bytes.Repeat([]byte{0xff, 0xfb, 0x90, 0x00}, 64))
	return buf.Bytes()
}

func statusOf(err error) int {
	return apperrors.StatusOf(err)
}

func TestPolicyCheck(t *testing.T) {
	p := testPolicy()

	t.Run("mp3 accepted", func(t *testing.T) {
		ct, ext, err := p.Check(storage.KindAudio, "Song.MP3", 100, []byte("ID3\x04\x00\x00\x00\x00\x00\x00"))
		require.NoError(t, err)
		assert.Equal(t, "audio/mpeg", ct)
		assert.Equal(t, ".mp3", ext)
	})

	t.Run("too large", func(t *testing.T) {
		_, _, err := p.Check(storage.KindAudio, "a.mp3", 2<<20, []byte("ID3"))
		assert.Equal(t, http.StatusRequestEntityTooLarge, statusOf(err))
	})

	t.Run("extension not allowed", func(t *testing.T) {
		_, _, err := p.Check(storage.KindAudio, "a.exe", 10, []byte("MZ"))
		assert.Equal(t, http.StatusUnsupportedMediaType, statusOf(err))
	})

	t.Run("text disguised as audio", func(t *testing.T) {
		_, _, err := p.Check(storage.KindAudio, "a.mp3", 10, []byte("hello, this is plain text"))
		assert.Equal(t, http.StatusUnsupportedMediaType, statusOf(err))
	})

	t.Run("flac without marker", func(t *testing.T) {
		_, _, err := p.Check(storage.KindAudio, "a.flac", 10, []byte("ID3\x04\x00"))
		assert.Equal(t, http.StatusUnsupportedMediaType, statusOf(err))
	})

	t.Run("png accepted", func(t *testing.T) {
		ct, ext, err := p.Check(storage.KindCover, "cover.png", int64(len(pngHeader)), pngHeader)
		require.NoError(t, err)
		assert.Equal(t, "image/png", ct)
		assert.Equal(t, ".png", ext)
	})

	t.Run("image that is not an image", func(t *testing.T) {
		_, _, err := p.Check(storage.KindAvatar, "me.jpg", 10, []byte("<html></html>"))
		assert.Equal(t, http.StatusUnsupportedMediaType, statusOf(err))
	})
}

func TestCleanID3Genre(t *testing.T) {
	assert.Equal(t, "Rock", cleanID3Genre("(17)"))
	assert.Equal(t, "Shoegaze", cleanID3Genre("(17)Shoegaze"))
	assert.Equal(t, "Synthwave", cleanID3Genre(" Synthwave "))
	assert.Equal(t, "", cleanID3Genre("(999)"))
}

func TestProbeMP3(t *testing.T) {
	md, err := Probe(bytes.NewReader(mp3WithTags(t)), ".mp3")
	require.NoError(t, err)
	assert.Equal(t, "mp3", md.Format)
	assert.Equal(t, "Night Drive", md.Title)
	assert.Equal(t, "The Tapes", md.Artist)
	assert.Equal(t, "Highways", md.Album)
	assert.Equal(t, "Rock", md.Genre)
	assert.Equal(t, 185, md.DurationSeconds)

	_, err = Probe(strings.NewReader("RIFF"), ".wav")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestServiceStoreReader(t *testing.T) {
	provider, err := storage.NewLocalProvider(storage.LocalConfig{
		Root:       t.TempDir(),
		BaseURL:    "http://localhost:8080/media",
		SigningKey: "media-test-signing-key",
	})
	require.NoError(t, err)
	svc := NewService(provider, testPolicy(), 5*time.Minute)
	ctx := context.Background()

	data := mp3WithTags(t)
	up, err := svc.StoreReader(ctx, storage.KindAudio, "night.mp3", int64(len(data)), bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.Key, "audio/"))
	require.NotNil(t, up.Meta)
	assert.Equal(t, "Night Drive", up.Meta.Title)

	path, err := provider.FilePath(up.Key)
	require.NoError(t, err)
	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	u := svc.URL(ctx, up.Key)
	assert.Contains(t, u, "signature=")
	assert.Empty(t, svc.URL(ctx, ""))

	svc.Delete(ctx, up.Key, "")
	ok, err := provider.Exists(ctx, up.Key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.StoreReader(ctx, storage.KindAudio, "empty.mp3", 0, bytes.NewReader(nil))
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
}

func TestServiceStoreBytes(t *testing.T) {
	provider, err := storage.NewLocalProvider(storage.LocalConfig{
		Root:       t.TempDir(),
		BaseURL:    "http://localhost:8080/media",
		SigningKey: "media-test-signing-key",
	})
	require.NoError(t, err)
	svc := NewService(provider, testPolicy(), 5*time.Minute)
	ctx := context.Background()

	// a PNG tagged as JPEG is stored as what it is
	key, err := svc.StoreBytes(ctx, storage.KindCover, "image/jpeg", pngHeader)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".png"), key)

	_, err = svc.StoreBytes(ctx, storage.KindCover, "image/png", []byte("<html><script>alert(1)</script></html>"))
	assert.Equal(t, http.StatusUnsupportedMediaType, statusOf(err))

	_, err = svc.StoreBytes(ctx, storage.KindCover, "image/png", nil)
	assert.Error(t, err)

	big := append(append([]byte{}, pngHeader...), make([]byte, 2<<10)...)
	_, err = svc.StoreBytes(ctx, storage.KindCover, "image/png", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusOf(err))
}
