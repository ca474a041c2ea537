package ytvideodata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"slices"
	"strings"
)

type ytDlpFormat struct {
	URL         string `json:"url"`
	ManifestURL string `json:"manifest_url"`
	VCodec      string `json:"vcodec"`
	ACodec      string `json:"acodec"`
	Ext         string `json:"ext"`
	Protocol    string `json:"protocol"`
}

func (f ytDlpFormat) hasVideo() bool { return f.VCodec != "none" }
func (f ytDlpFormat) hasAudio() bool { return f.ACodec != "none" }

type ytDlpOutput struct {
	WebpageURL    string        `json:"webpage_url"`
	Title         string        `json:"title"`
	Series        string        `json:"series"`
	SeasonNumber  *int          `json:"season_number"`
	EpisodeNumber *int          `json:"episode_number"`
	Channel       string        `json:"channel"`
	Thumbnail     string        `json:"thumbnail"`
	StartTime     *float64      `json:"start_time"`
	ManifestURL   string        `json:"manifest_url"`
	Formats       []ytDlpFormat `json:"formats"`
}

func (r *Resolver) getWithYtDlp(ctx context.Context, query string, fromYoutube bool) (*VideoData, error) {
	cmd := exec.CommandContext(ctx, r.ytDlpPath,
		"--default-search", "ytsearch",
		"--no-playlist",
		"--playlist-items", "1:1",
		"--dump-json",
		"--", query,
	)

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return nil, fmt.Errorf("yt-dlp exited with %d: %s: %w", exitErr.ExitCode(), strings.TrimSpace(string(exitErr.Stderr)), ErrVideoNotFound)
		}
		return nil, fmt.Errorf("failed to run yt-dlp: %w", err)
	}

	var video ytDlpOutput
	if err := json.Unmarshal(out, &video); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}

	url, mimeType, err := r.selectSource(ctx, &video, fromYoutube)
	if err != nil {
		return nil, err
	}

	videoData := VideoData{
		URL:           url,
		MimeType:      mimeType,
		Title:         video.Title,
		Series:        strings.TrimSpace(video.Series),
		SeasonNumber:  video.SeasonNumber,
		EpisodeNumber: video.EpisodeNumber,
		Channel:       video.Channel,
		Thumbnail:     video.Thumbnail,
	}
	if video.StartTime != nil {
		start := int(*video.StartTime)
		videoData.StartTimeSeconds = &start
	}

	return &videoData, nil
}

func (r *Resolver) selectSource(ctx context.Context, video *ytDlpOutput, fromYoutube bool) (string, string, error) {
	if fromYoutube {
		if video.WebpageURL == "" {
			return "", "", ErrVideoNotFound
		}
		if videoId, ok := ExtractVideoId(video.WebpageURL); ok {
			return WatchURL(videoId), "", nil
		}
		return video.WebpageURL, "", nil
	}

	if video.ManifestURL != "" {
		return video.ManifestURL, r.fetchContentType(ctx, video.ManifestURL), nil
	}

	format, ok := selectFormat(video.Formats)
	if !ok {
		return "", "", ErrVideoNotFound
	}

	return r.formatSource(ctx, format)
}

// selectFormat prefers the best format carrying both audio and video, either
// muxed in one stream or grouped under one manifest. yt-dlp lists formats worst first.
func selectFormat(formats []ytDlpFormat) (ytDlpFormat, bool) {
	if len(formats) == 0 {
		return ytDlpFormat{}, false
	}

	formats = slices.Clone(formats)
	slices.Reverse(formats)

	anyVideo := slices.ContainsFunc(formats, ytDlpFormat.hasVideo)
	anyAudio := slices.ContainsFunc(formats, ytDlpFormat.hasAudio)
	if !anyVideo || !anyAudio {
		return formats[0], true
	}

	manifestVideo := map[string]bool{}
	manifestAudio := map[string]bool{}
	for _, f := range formats {
		if f.ManifestURL == "" {
			continue
		}
		manifestVideo[f.ManifestURL] = manifestVideo[f.ManifestURL] || f.hasVideo()
		manifestAudio[f.ManifestURL] = manifestAudio[f.ManifestURL] || f.hasAudio()
	}

	for _, f := range formats {
		if f.hasVideo() && f.hasAudio() {
			return f, true
		}
		if f.ManifestURL != "" && manifestVideo[f.ManifestURL] && manifestAudio[f.ManifestURL] {
			return f, true
		}
	}

	return ytDlpFormat{}, false
}

func (r *Resolver) formatSource(ctx context.Context, format ytDlpFormat) (string, string, error) {
	url := format.URL
	if format.ManifestURL != "" {
		url = format.ManifestURL
	}

	contentType := r.fetchContentType(ctx, url)
	if contentType == "" ||
		contentType == "binary/octet-stream" ||
		contentType == "application/octet-stream" ||
		strings.HasPrefix(contentType, "text/") {
		if format.Protocol == "https" || format.Protocol == "http" {
			switch format.Ext {
			case "mp4":
				contentType = "video/mp4"
			case "m4a":
				contentType = "audio/m4a"
			}
		}
	}

	return url, contentType, nil
}

func (r *Resolver) fetchContentType(ctx context.Context, url string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return ""
	}
	resp.Body.Close()

	return resp.Header.Get("Content-Type")
}
