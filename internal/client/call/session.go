// Package call holds the client-side call session: a single state
// machine that reacts to relayed events and drives peer negotiation.
// The server knows nothing about call state; it only relays.
package call

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/protocol"
)

var (
	ErrCallInProgress = errors.New("call already in progress")
	ErrNotRinging     = errors.New("no incoming call to answer")
)

// Signaler sends events toward the relay. Send must not block.
type Signaler interface {
	Send(protocol.Event) error
}

// Frontend is the presentation surface: ring notifications, call end,
// and arriving remote media. Callbacks run on whatever goroutine
// completed the transition; implementations must be safe for that.
type Frontend interface {
	IncomingCall(from, callType string)
	CallEnded(reason string)
	RemoteTrack(track *webrtc.TrackRemote)
}

// PeerLink is the opaque negotiation capability for one call: the
// offer/answer/candidate surface of a peer connection. Its async
// operations cannot be cancelled; the session discards stale
// completions by epoch instead.
type PeerLink interface {
	AddTrack(webrtc.TrackLocal) error
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	OnICECandidate(func(webrtc.ICECandidateInit))
	OnTrack(func(*webrtc.TrackRemote))
	Close() error
}

// PeerFactory builds a fresh PeerLink per call.
type PeerFactory func() (PeerLink, error)

// Session is the per-client call state machine. All state sits behind
// one mutex; suspension points (media acquisition, offer/answer
// creation) happen outside it and re-validate the call epoch before
// committing their result.
type Session struct {
	mu    sync.Mutex
	phase Phase
	video bool
	epoch string // identifies the current call attempt
	peer  string // display name of the negotiating peer, once known
	media *LocalMedia
	link  PeerLink

	room string
	self string

	sig     Signaler
	mediaIn Media
	newPeer PeerFactory
	ui      Frontend
}

func NewSession(room, self string, sig Signaler, media Media, peers PeerFactory, ui Frontend) *Session {
	return &Session{
		room:    room,
		self:    self,
		sig:     sig,
		mediaIn: media,
		newPeer: peers,
		ui:      ui,
	}
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// TracksHeld reports how many local capture tracks the session holds.
// Zero whenever the machine is at rest.
func (s *Session) TracksHeld() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.media == nil {
		return 0
	}
	return s.media.TrackCount()
}

// StartCall rings the room. The not-idle guard runs synchronously
// before any media is touched: a second call can never start while one
// is pending or active.
func (s *Session) StartCall(ctx context.Context, video bool) error {
	s.mu.Lock()
	if s.phase != PhaseIdle {
		s.mu.Unlock()
		return ErrCallInProgress
	}
	epoch := uuid.NewString()
	s.epoch = epoch
	s.phase = PhaseDialing
	s.video = video
	s.mu.Unlock()

	m, err := s.mediaIn.Acquire(ctx, video)

	s.mu.Lock()
	if s.epoch != epoch {
		// Torn down while we were acquiring.
		s.mu.Unlock()
		if err == nil {
			m.Release()
		}
		return nil
	}
	if err != nil {
		s.resetLocked()
		s.mu.Unlock()
		return fmt.Errorf("acquire media: %w", err)
	}
	s.media = m
	s.mu.Unlock()

	callType := protocol.CallTypeAudio
	if video {
		callType = protocol.CallTypeVideo
	}
	return s.sig.Send(protocol.Event{
		Type:     protocol.EventCallUser,
		Room:     s.room,
		Name:     s.self,
		CallType: callType,
	})
}

// Accept answers the ringing call: acquire media per the recorded call
// type, then tell the caller. The offer arrives next and is handled by
// HandleEvent.
func (s *Session) Accept(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseRinging {
		s.mu.Unlock()
		return ErrNotRinging
	}
	epoch := s.epoch
	video := s.video
	s.mu.Unlock()

	m, err := s.mediaIn.Acquire(ctx, video)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		if err == nil {
			m.Release()
		}
		return nil
	}
	if err != nil {
		s.resetLocked()
		s.mu.Unlock()
		return fmt.Errorf("acquire media: %w", err)
	}
	s.media = m
	s.phase = PhaseActive
	s.mu.Unlock()

	return s.sig.Send(protocol.Event{
		Type: protocol.EventAcceptCall,
		Room: s.room,
		Name: s.self,
	})
}

// Reject declines the ringing call. No media was acquired yet, so
// there is nothing to release.
func (s *Session) Reject() error {
	s.mu.Lock()
	if s.phase != PhaseRinging {
		s.mu.Unlock()
		return ErrNotRinging
	}
	s.resetLocked()
	s.mu.Unlock()

	return s.sig.Send(protocol.Event{
		Type: protocol.EventRejectCall,
		Room: s.room,
		Name: s.self,
	})
}

// Hangup ends the call locally and tells the room.
func (s *Session) Hangup() {
	if s.teardown() {
		_ = s.sig.Send(protocol.Event{Type: protocol.EventEndCall, Room: s.room})
		s.ui.CallEnded("hung up")
	}
}

// EnableAudio is the mic toggle; a no-op outside a call.
func (s *Session) EnableAudio(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.media != nil {
		s.media.SetAudioEnabled(on)
	}
}

func (s *Session) EnableVideo(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.media != nil {
		s.media.SetVideoEnabled(on)
	}
}

// HandleEvent feeds one relayed event into the machine. It reports
// whether the event was call-related; chat and roster traffic is left
// to the caller.
func (s *Session) HandleEvent(ctx context.Context, ev protocol.Event) bool {
	switch ev.Type {
	case protocol.EventIncomingCall:
		s.onIncomingCall(ev)
	case protocol.EventCallAccepted:
		s.onCallAccepted(ctx, ev)
	case protocol.EventCallRejected:
		s.onCallRejected(ev)
	case protocol.EventCallEnded:
		s.onRemoteEnd("call ended by " + ev.From)
	case protocol.EventUserDisconnected:
		// The peer's transport died without an end-call; tear down
		// independently. Report unhandled so the roster updates too.
		s.onRemoteEnd(ev.From + " disconnected")
		return false
	case protocol.EventOffer:
		s.onOffer(ev)
	case protocol.EventAnswer:
		s.onAnswer(ev)
	case protocol.EventICECandidate:
		s.onCandidate(ev)
	default:
		return false
	}
	return true
}

func (s *Session) onIncomingCall(ev protocol.Event) {
	s.mu.Lock()
	if s.phase != PhaseIdle {
		s.mu.Unlock()
		log.Warn().Str("module", "call").Str("from", ev.From).Msg("incoming call while busy, ignored")
		return
	}
	s.phase = PhaseRinging
	s.epoch = uuid.NewString()
	s.video = ev.CallType == protocol.CallTypeVideo
	s.peer = ev.From
	s.mu.Unlock()

	s.ui.IncomingCall(ev.From, ev.CallType)
}

func (s *Session) onCallRejected(ev protocol.Event) {
	s.mu.Lock()
	if s.phase != PhaseDialing {
		s.mu.Unlock()
		return
	}
	s.resetLocked()
	s.mu.Unlock()

	s.ui.CallEnded(ev.From + " declined")
}

func (s *Session) onRemoteEnd(reason string) {
	if s.teardown() {
		s.ui.CallEnded(reason)
	}
}

// addressedToMe filters broadcast negotiation frames: the relay sends
// them to the whole room, receivers keep only frames with no target or
// their own name.
func (s *Session) addressedToMe(ev protocol.Event) bool {
	return ev.Target == "" || ev.Target == s.self
}

// teardown returns the machine to idle, closing the negotiation handle
// and releasing all held media. Reports whether a call existed.
func (s *Session) teardown() bool {
	s.mu.Lock()
	if s.phase == PhaseIdle {
		s.mu.Unlock()
		return false
	}
	link := s.link
	s.resetLocked()
	s.mu.Unlock()

	if link != nil {
		_ = link.Close()
	}
	return true
}

// abort tears down a specific call attempt after a negotiation
// failure. A stale epoch means some other transition already won.
func (s *Session) abort(epoch, reason string) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	link := s.link
	s.resetLocked()
	s.mu.Unlock()

	if link != nil {
		_ = link.Close()
	}
	s.ui.CallEnded(reason)
}

func (s *Session) resetLocked() {
	if s.media != nil {
		s.media.Release()
		s.media = nil
	}
	s.link = nil
	s.phase = PhaseIdle
	s.epoch = ""
	s.peer = ""
	s.video = false
}
