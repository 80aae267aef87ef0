// Package rtc wraps pion's PeerConnection behind the small surface the
// call package drives. The pion API objects never leak past call's
// PeerLink interface except for the description and candidate types
// that are the negotiation payload itself.
package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Config builds a pion configuration from the configured ICE servers.
func Config(urls []string) webrtc.Configuration {
	if len(urls) == 0 {
		urls = []string{"stun:stun.l.google.com:19302"}
	}
	servers := make([]webrtc.ICEServer, 0, len(urls))
	for _, u := range urls {
		servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
	}
	return webrtc.Configuration{ICEServers: servers}
}

type Peer struct {
	pc *webrtc.PeerConnection

	mu     sync.Mutex
	closed bool
}

func New(cfg webrtc.Configuration) (*Peer, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	p := &Peer{pc: pc}
	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("ice_state", s.String()).Msg("ICE state")
	})
	return p, nil
}

func (p *Peer) AddTrack(t webrtc.TrackLocal) error {
	_, err := p.pc.AddTrack(t)
	return err
}

func (p *Peer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *Peer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *Peer) SetLocalDescription(d webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(d)
}

func (p *Peer) SetRemoteDescription(d webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(d)
}

func (p *Peer) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(ci)
}

// OnICECandidate fires per discovered candidate, at whatever moment the
// ICE agent finds one. The terminating nil candidate is filtered out.
func (p *Peer) OnICECandidate(f func(webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			f(c.ToJSON())
		}
	})
}

func (p *Peer) OnTrack(f func(*webrtc.TrackRemote)) {
	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().Str("module", "rtc").Str("kind", track.Kind().String()).Str("track_id", track.ID()).Msg("remote track")
		f(track)
	})
}

func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.pc.Close()
}
