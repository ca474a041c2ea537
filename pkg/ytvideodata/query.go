package ytvideodata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	videoIdRegex   = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:[^#\s]*&)?v=|embed/|shorts/|live/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)
	startTimeRegex = regexp.MustCompile(`(?i)[&?]t=((?:[0-9]+[hms]?)+)(?: |&|$)`)
	urlRegex       = regexp.MustCompile(`^(?:ftp|https?)://`)
)

// ExtractVideoId returns the YouTube video id if query is a direct video link.
func ExtractVideoId(query string) (string, bool) {
	m := videoIdRegex.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}

	return m[1], true
}

func IsURL(query string) bool {
	return urlRegex.MatchString(query)
}

// IsYoutubeQuery reports whether query resolves through YouTube: either a
// YouTube link or free text searched on YouTube.
func IsYoutubeQuery(query string) bool {
	_, ok := ExtractVideoId(query)
	return ok || !IsURL(query)
}

func WatchURL(videoId string) string {
	return "https://www.youtube.com/watch?v=" + videoId
}

func ThumbnailURL(videoId string) string {
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/mqdefault.jpg", videoId)
}

// FindStartTimeSeconds parses a t= parameter such as "t=90", "t=1m30s" or "t=1h2m3".
func FindStartTimeSeconds(query string) (int, bool) {
	m := startTimeRegex.FindStringSubmatch(query)
	if m == nil {
		return 0, false
	}

	total := 0
	segment := strings.Builder{}
	for _, r := range strings.ToLower(m[1]) {
		if unicode.IsDigit(r) {
			segment.WriteRune(r)
			continue
		}

		value, _ := strconv.Atoi(segment.String())
		segment.Reset()
		switch r {
		case 'h':
			total += value * 3600
		case 'm':
			total += value * 60
		default:
			total += value
		}
	}
	if segment.Len() > 0 {
		value, _ := strconv.Atoi(segment.String())
		total += value
	}

	return total, true
}
