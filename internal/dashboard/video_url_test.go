package dashboard

import (
	"testing"

	"content-sync/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYouTubeID(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"youtube.com/watch?v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ", true},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/live/dQw4w9WgXcQ?feature=share", "dQw4w9WgXcQ", true},
		{"  https://youtu.be/dQw4w9WgXcQ  ", "dQw4w9WgXcQ", true},
		{"", "", false},
		{"short", "", false},
		{"https://www.youtube.com/channel/UC123", "", false},
		{"https://example.com/watch?v=dQw4w9WgXcQ", "", false},
		{"ftp://youtu.be/dQw4w9WgXcQ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseYouTubeID(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestYouTubeLinks(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", YouTubeWatchURL("https://youtu.be/dQw4w9WgXcQ"))
	assert.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ", YouTubeEmbedURL("dQw4w9WgXcQ"))
	assert.Equal(t, "https://img.youtube.com/vi/dQw4w9WgXcQ/hqdefault.jpg", YouTubeThumbnailURL("dQw4w9WgXcQ"))
	assert.Empty(t, YouTubeWatchURL("nope"))
	assert.Empty(t, YouTubeEmbedURL(""))
	assert.Empty(t, YouTubeThumbnailURL("https://vimeo.com/1"))
}

func TestParseVideoURL(t *testing.T) {
	tests := []struct {
		input string
		want  VideoRef
	}{
		{
			"https://youtu.be/dQw4w9WgXcQ",
			VideoRef{Platform: PlatformYouTube, ID: "dQw4w9WgXcQ", URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		},
		{
			"https://www.tiktok.com/@poet/video/7234567890123456789?lang=en",
			VideoRef{Platform: PlatformTikTok, ID: "7234567890123456789", URL: "https://www.tiktok.com/@poet/video/7234567890123456789"},
		},
		{
			"https://vm.tiktok.com/ZMabc123/",
			VideoRef{Platform: PlatformTikTok, ID: "ZMabc123", URL: "https://vm.tiktok.com/ZMabc123/"},
		},
		{
			"https://www.facebook.com/watch/?v=1234567890",
			VideoRef{Platform: PlatformFacebook, ID: "1234567890", URL: "https://www.facebook.com/watch/?v=1234567890"},
		},
		{
			"https://facebook.com/poet.page/videos/987654321/",
			VideoRef{Platform: PlatformFacebook, ID: "987654321", URL: "https://www.facebook.com/poet.page/videos/987654321"},
		},
		{
			"https://www.facebook.com/reel/55555",
			VideoRef{Platform: PlatformFacebook, ID: "55555", URL: "https://www.facebook.com/reel/55555"},
		},
		{
			"fb.watch/aBc-12/",
			VideoRef{Platform: PlatformFacebook, ID: "aBc-12", URL: "https://fb.watch/aBc-12/"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseVideoURL(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVideoURL_Rejects(t *testing.T) {
	for _, input := range []string{
		"",
		"   ",
		"https://vimeo.com/12345",
		"https://www.tiktok.com/@poet",
		"https://www.tiktok.com/@poet/video/abc",
		"https://www.facebook.com/poet.page",
		"https://www.facebook.com/watch/?v=abc",
		"mailto:someone@example.com",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseVideoURL(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrUnsupportedVideo)
			assert.True(t, errors.IsValidation(err))
		})
	}
}
