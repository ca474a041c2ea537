package room

import (
	"math"
	"time"
)

// Conn is a client connection. Both methods must return without waiting on the peer.
type Conn interface {
	Send(msg string)
	// Kill sends reason and closes the connection with a policy violation status.
	Kill(reason string)
}

// SyncState is one of NotStarted, Paused, AwaitReady, Ready or Playing.
type SyncState interface {
	isSyncState()
}

type NotStarted struct{}

type Paused struct {
	Timestamp float64
}

// AwaitReady asks the client to buffer to Timestamp and report back.
type AwaitReady struct {
	Timestamp float64
}

type Ready struct {
	Timestamp float64
}

// Playing does not track playback speed.
type Playing struct {
	StartedAt time.Time
	Timestamp float64
}

func (NotStarted) isSyncState() {}
func (Paused) isSyncState()     {}
func (AwaitReady) isSyncState() {}
func (Ready) isSyncState()      {}
func (Playing) isSyncState()    {}

// TimestampAt is the playback position at now.
func (p Playing) TimestampAt(now time.Time) float64 {
	return p.Timestamp + now.Sub(p.StartedAt).Seconds()
}

// ReadyOrPlayingAt reports whether state can start playing at ts without seeking.
func ReadyOrPlayingAt(state SyncState, ts float64, now time.Time, tolerance float64) bool {
	switch s := state.(type) {
	case NotStarted:
		return true
	case Ready:
		return math.Abs(s.Timestamp-ts) <= tolerance
	case Playing:
		return math.Abs(s.TimestampAt(now)-ts) <= tolerance
	default:
		return false
	}
}

// PlayingAt reports whether state is already playing at ts.
func PlayingAt(state SyncState, ts float64, now time.Time, tolerance float64) bool {
	switch s := state.(type) {
	case NotStarted:
		return true
	case Playing:
		return math.Abs(s.TimestampAt(now)-ts) <= tolerance
	default:
		return false
	}
}

func isActive(state SyncState) bool {
	_, notStarted := state.(NotStarted)
	return !notStarted
}

type VideoSource struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType,omitempty"`
}

type VideoMetadata struct {
	Title         string `json:"title,omitempty"`
	Series        string `json:"series,omitempty"`
	SeasonNumber  *int   `json:"seasonNumber,omitempty"`
	EpisodeNumber *int   `json:"episodeNumber,omitempty"`
	Channel       string `json:"channel,omitempty"`
}

type QueueItem struct {
	Source           *VideoSource   `json:"source,omitempty"`
	OriginalQuery    string         `json:"originalQuery"`
	Metadata         *VideoMetadata `json:"metadata,omitempty"`
	StartTimeSeconds *int           `json:"startTimeSeconds,omitempty"`
	Thumbnail        string         `json:"thumbnail,omitempty"`
	Favicon          string         `json:"favicon,omitempty"`
	Loading          bool           `json:"loading"`
	Id               string         `json:"id"`
}

func (item *QueueItem) startOffset() float64 {
	if item.StartTimeSeconds == nil {
		return 0
	}
	return float64(*item.StartTimeSeconds)
}

func (item *QueueItem) sourceURL() string {
	if item.Source == nil {
		return ""
	}
	return item.Source.URL
}

// isDuplicateOf compares resolved source urls and raw queries.
func (item *QueueItem) isDuplicateOf(other *QueueItem) bool {
	if item.OriginalQuery == other.OriginalQuery {
		return true
	}
	url := item.sourceURL()
	return url != "" && url == other.sourceURL()
}

// VideoCommand is the payload of "video" messages.
type VideoCommand struct {
	Source           VideoSource    `json:"source"`
	OriginalQuery    string         `json:"originalQuery"`
	Metadata         *VideoMetadata `json:"metadata,omitempty"`
	StartTimeSeconds *int           `json:"startTimeSeconds,omitempty"`
	Favicon          string         `json:"favicon,omitempty"`
}

func (item *QueueItem) videoCommand() (*VideoCommand, bool) {
	if item.Source == nil {
		return nil, false
	}

	return &VideoCommand{
		Source:           *item.Source,
		OriginalQuery:    item.OriginalQuery,
		Metadata:         item.Metadata,
		StartTimeSeconds: item.StartTimeSeconds,
		Favicon:          item.Favicon,
	}, true
}
