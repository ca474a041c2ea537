package ytvideodata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrVideoNotFound      = errors.New("video not found")
	ErrVideoNotEmbeddable = errors.New("video is not embeddable")
	ErrTimeout            = errors.New("video lookup timed out")
)

type VideoData struct {
	URL              string
	MimeType         string
	Title            string
	Series           string
	SeasonNumber     *int
	EpisodeNumber    *int
	Channel          string
	Thumbnail        string
	StartTimeSeconds *int
}

type Config struct {
	HTTPClient *http.Client
	// OEmbedURL and PageURL are overridable for tests.
	OEmbedURL string
	PageURL   string
	YtDlpPath string
	Timeout   time.Duration
}

type Resolver struct {
	client    *http.Client
	oembedURL string
	pageURL   string
	ytDlpPath string
	timeout   time.Duration
}

func NewResolver(cfg *Config) *Resolver {
	r := Resolver{
		client:    cfg.HTTPClient,
		oembedURL: cfg.OEmbedURL,
		pageURL:   cfg.PageURL,
		ytDlpPath: cfg.YtDlpPath,
		timeout:   cfg.Timeout,
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	if r.oembedURL == "" {
		r.oembedURL = "https://www.youtube.com/oembed"
	}
	if r.pageURL == "" {
		r.pageURL = "https://youtu.be/"
	}
	if r.ytDlpPath == "" {
		r.ytDlpPath = "yt-dlp"
	}
	if r.timeout <= 0 {
		r.timeout = 15 * time.Second
	}

	return &r
}

// Resolve looks up the video a queue query refers to. YouTube links go through
// oEmbed first; everything else, and oEmbed misses, go through yt-dlp.
func (r *Resolver) Resolve(ctx context.Context, query string) (*VideoData, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	videoData, err := r.resolve(ctx, query)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("failed to resolve %q: %w", query, ErrTimeout)
		}

		return nil, fmt.Errorf("failed to resolve %q: %w", query, err)
	}

	if videoData.StartTimeSeconds == nil {
		if start, ok := FindStartTimeSeconds(query); ok {
			videoData.StartTimeSeconds = &start
		}
	}

	return videoData, nil
}

func (r *Resolver) resolve(ctx context.Context, query string) (*VideoData, error) {
	videoId, ok := ExtractVideoId(query)
	if !ok {
		return r.getWithYtDlp(ctx, query, !IsURL(query))
	}

	videoData, err := r.getWithEmbed(ctx, videoId)
	if err == nil {
		return videoData, nil
	}

	if errors.Is(err, ErrVideoNotEmbeddable) {
		videoData, pageErr := r.getFromPage(ctx, videoId)
		if pageErr == nil {
			return videoData, nil
		}
		err = errors.Join(err, pageErr)
	}

	if ctx.Err() != nil {
		return nil, err
	}

	videoData, ytDlpErr := r.getWithYtDlp(ctx, query, true)
	if ytDlpErr != nil {
		return nil, errors.Join(err, ytDlpErr)
	}

	return videoData, nil
}
