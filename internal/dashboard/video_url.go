package dashboard

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"content-sync/internal/shared/errors"
)

// Platform names a video host.
type Platform string

const (
	PlatformYouTube  Platform = "youtube"
	PlatformTikTok   Platform = "tiktok"
	PlatformFacebook Platform = "facebook"
)

// VideoRef is a recognized video link.
type VideoRef struct {
	Platform Platform `json:"platform"`
	// ID is the platform's video id, or the share code of a short link.
	ID string `json:"id"`
	// URL is the canonical link stored with the video.
	URL string `json:"url"`
}

var (
	youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	youtubeQueryID   = regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{11})`)
	numericID        = regexp.MustCompile(`^[0-9]+$`)
	shareCode        = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ParseVideoURL recognizes YouTube, TikTok and Facebook links. A bare
// 11-character YouTube id is accepted too. Anything else fails with
// errors.ErrUnsupportedVideo in the chain.
func ParseVideoURL(raw string) (VideoRef, error) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return VideoRef{}, unsupportedVideo(raw, "a video link is required")
	}
	if id, ok := ParseYouTubeID(input); ok {
		return VideoRef{Platform: PlatformYouTube, ID: id, URL: YouTubeWatchURL(id)}, nil
	}

	u, err := parseLink(input)
	if err != nil {
		return VideoRef{}, unsupportedVideo(raw, "not a URL")
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segments := pathSegments(u.Path)

	switch {
	case host == "tiktok.com" || host == "m.tiktok.com":
		// /@user/video/<id>
		for i := 0; i+1 < len(segments); i++ {
			if segments[i] == "video" && numericID.MatchString(segments[i+1]) {
				return VideoRef{
					Platform: PlatformTikTok,
					ID:       segments[i+1],
					URL:      "https://www.tiktok.com/" + strings.Join(segments[:i+2], "/"),
				}, nil
			}
		}
	case host == "vt.tiktok.com" || host == "vm.tiktok.com":
		if len(segments) == 1 && shareCode.MatchString(segments[0]) {
			return VideoRef{Platform: PlatformTikTok, ID: segments[0], URL: "https://" + host + "/" + segments[0] + "/"}, nil
		}
	case host == "facebook.com" || host == "m.facebook.com" || host == "web.facebook.com":
		if v := u.Query().Get("v"); len(segments) > 0 && segments[0] == "watch" && numericID.MatchString(v) {
			return VideoRef{Platform: PlatformFacebook, ID: v, URL: "https://www.facebook.com/watch/?v=" + v}, nil
		}
		for i := 0; i+1 < len(segments); i++ {
			if (segments[i] == "videos" || segments[i] == "reel") && numericID.MatchString(segments[i+1]) {
				return VideoRef{
					Platform: PlatformFacebook,
					ID:       segments[i+1],
					URL:      "https://www.facebook.com/" + strings.Join(segments[:i+2], "/"),
				}, nil
			}
		}
	case host == "fb.watch":
		if len(segments) == 1 && shareCode.MatchString(segments[0]) {
			return VideoRef{Platform: PlatformFacebook, ID: segments[0], URL: "https://fb.watch/" + segments[0] + "/"}, nil
		}
	}
	return VideoRef{}, unsupportedVideo(raw, "expected a YouTube, TikTok or Facebook video link")
}

// ParseYouTubeID extracts the video id from a bare id, a watch, embed,
// shorts or live URL, or a youtu.be short link.
func ParseYouTubeID(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}
	if youtubeIDPattern.MatchString(input) {
		return input, true
	}

	u, err := parseLink(input)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segments := pathSegments(u.Path)

	switch host {
	case "youtu.be":
		if len(segments) > 0 && youtubeIDPattern.MatchString(segments[0]) {
			return segments[0], true
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); youtubeIDPattern.MatchString(v) {
			return v, true
		}
		if len(segments) >= 2 {
			switch segments[0] {
			case "embed", "shorts", "live", "v":
				if youtubeIDPattern.MatchString(segments[1]) {
					return segments[1], true
				}
			}
		}
	default:
		return "", false
	}
	if m := youtubeQueryID.FindStringSubmatch(input); m != nil {
		return m[1], true
	}
	return "", false
}

// YouTubeWatchURL returns the watch link of a YouTube id or URL, or "".
func YouTubeWatchURL(input string) string {
	id, ok := ParseYouTubeID(input)
	if !ok {
		return ""
	}
	return "https://www.youtube.com/watch?v=" + id
}

// YouTubeEmbedURL returns the embeddable link of a YouTube id or URL, or "".
func YouTubeEmbedURL(input string) string {
	id, ok := ParseYouTubeID(input)
	if !ok {
		return ""
	}
	return "https://www.youtube.com/embed/" + id
}

// YouTubeThumbnailURL returns the hqdefault thumbnail, which every video has.
func YouTubeThumbnailURL(input string) string {
	id, ok := ParseYouTubeID(input)
	if !ok {
		return ""
	}
	return "https://img.youtube.com/vi/" + id + "/hqdefault.jpg"
}

func parseLink(input string) (*url.URL, error) {
	if !strings.Contains(input, "://") {
		input = "https://" + input
	}
	u, err := url.Parse(input)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}

func pathSegments(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func unsupportedVideo(raw, reason string) error {
	return errors.NewValidationError(fmt.Sprintf("unsupported video URL %q: %s", raw, reason)).
		WithCode(errors.CodeUnsupportedVideo).
		WithCause(errors.ErrUnsupportedVideo)
}
