package call

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Media acquires local capture tracks. Acquisition is the slow,
// fallible step (device permission), so it takes a context.
type Media interface {
	Acquire(ctx context.Context, video bool) (*LocalMedia, error)
}

// LocalMedia is the set of capture tracks held for one call. Release
// drops every track; a released set reports zero tracks.
type LocalMedia struct {
	mu       sync.Mutex
	tracks   []webrtc.TrackLocal
	audioOn  bool
	videoOn  bool
	released bool
}

func NewLocalMedia(tracks ...webrtc.TrackLocal) *LocalMedia {
	return &LocalMedia{tracks: tracks, audioOn: true, videoOn: true}
}

func (m *LocalMedia) Tracks() []webrtc.TrackLocal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracks
}

func (m *LocalMedia) TrackCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracks)
}

func (m *LocalMedia) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return
	}
	m.released = true
	m.tracks = nil
}

// SetAudioEnabled is the mic mute toggle. The flag is consulted by
// whatever feeds samples into the tracks.
func (m *LocalMedia) SetAudioEnabled(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audioOn = on
}

func (m *LocalMedia) SetVideoEnabled(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videoOn = on
}

func (m *LocalMedia) AudioEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioOn
}

func (m *LocalMedia) VideoEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoOn
}

// StaticMedia builds pion static sample tracks: always an opus audio
// track, plus a VP8 track for video calls. It stands in for device
// capture; a capture loop pushes samples into the tracks it returns.
type StaticMedia struct{}

func (StaticMedia) Acquire(ctx context.Context, video bool) (*LocalMedia, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "huddle")
	if err != nil {
		return nil, err
	}
	tracks := []webrtc.TrackLocal{audio}
	if video {
		v, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "huddle")
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, v)
	}
	return NewLocalMedia(tracks...), nil
}
