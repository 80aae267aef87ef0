package call

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/protocol"
)

// This file is the negotiation driver: it runs the offer/answer/ICE
// exchange over the PeerLink in response to state machine transitions.
// Every async completion carries the call epoch and is dropped when it
// no longer matches.

// onCallAccepted runs on the caller once the callee said yes: make
// sure media is held (the callee can accept before our setup finished),
// then build the link and send the offer.
func (s *Session) onCallAccepted(ctx context.Context, ev protocol.Event) {
	s.mu.Lock()
	if s.phase != PhaseDialing {
		s.mu.Unlock()
		log.Warn().Str("module", "call").Str("from", ev.From).Msg("call-accepted while not dialing, ignored")
		return
	}
	epoch := s.epoch
	video := s.video
	s.peer = ev.From
	haveMedia := s.media != nil
	s.mu.Unlock()

	if !haveMedia {
		m, err := s.mediaIn.Acquire(ctx, video)

		s.mu.Lock()
		if s.epoch != epoch {
			s.mu.Unlock()
			if err == nil {
				m.Release()
			}
			return
		}
		if err != nil {
			s.resetLocked()
			s.mu.Unlock()
			log.Error().Err(err).Str("module", "call").Msg("media acquire on accept")
			s.ui.CallEnded("media unavailable")
			return
		}
		s.media = m
		s.mu.Unlock()
	}

	if err := s.initiateOffer(epoch, ev.From); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("initiate offer")
		s.abort(epoch, "negotiation failed")
	}
}

// initiateOffer creates the local description and hands it to the
// relay, addressed to the accepting peer.
func (s *Session) initiateOffer(epoch, target string) error {
	link, err := s.newLink(epoch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		_ = link.Close()
		return nil
	}
	s.link = link
	s.phase = PhaseActive
	s.mu.Unlock()

	offer, err := link.CreateOffer()
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := link.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return s.sig.Send(protocol.Event{
		Type:   protocol.EventOffer,
		Room:   s.room,
		SDP:    offer.SDP,
		Target: target,
	})
}

// onOffer runs on the callee after it accepted: set the remote
// description, answer, and address the answer back to the offerer.
func (s *Session) onOffer(ev protocol.Event) {
	if !s.addressedToMe(ev) {
		return
	}

	s.mu.Lock()
	if s.phase != PhaseActive || s.media == nil {
		s.mu.Unlock()
		log.Warn().Str("module", "call").Str("from", ev.From).Msg("offer with no active call, ignored")
		return
	}
	epoch := s.epoch
	s.peer = ev.From
	link := s.link
	s.mu.Unlock()

	if link == nil {
		fresh, err := s.newLink(epoch)
		if err != nil {
			log.Error().Err(err).Str("module", "call").Msg("new peer link")
			s.abort(epoch, "negotiation failed")
			return
		}
		s.mu.Lock()
		if s.epoch != epoch {
			s.mu.Unlock()
			_ = fresh.Close()
			return
		}
		s.link = fresh
		s.mu.Unlock()
		link = fresh
	}

	if err := s.respondToOffer(link, ev); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("respond to offer")
		s.abort(epoch, "negotiation failed")
	}
}

func (s *Session) respondToOffer(link PeerLink, ev protocol.Event) error {
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: ev.SDP}
	if err := link.SetRemoteDescription(remote); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	answer, err := link.CreateAnswer()
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := link.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return s.sig.Send(protocol.Event{
		Type:   protocol.EventAnswer,
		Room:   s.room,
		SDP:    answer.SDP,
		Target: ev.From,
	})
}

// onAnswer completes the offering side. An answer with no negotiation
// in flight is logged and dropped, never fatal.
func (s *Session) onAnswer(ev protocol.Event) {
	if !s.addressedToMe(ev) {
		return
	}
	s.mu.Lock()
	epoch := s.epoch
	link := s.link
	s.mu.Unlock()

	if link == nil {
		log.Warn().Str("module", "call").Str("from", ev.From).Msg("answer with no negotiation, ignored")
		return
	}
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: ev.SDP}
	if err := link.SetRemoteDescription(remote); err != nil {
		log.Error().Err(err).Str("module", "call").Msg("apply answer")
		s.abort(epoch, "negotiation failed")
	}
}

// onCandidate applies a relayed remote candidate. Malformed or late
// candidates are swallowed.
func (s *Session) onCandidate(ev protocol.Event) {
	if !s.addressedToMe(ev) {
		return
	}
	s.mu.Lock()
	link := s.link
	s.mu.Unlock()

	if link == nil {
		log.Warn().Str("module", "call").Msg("candidate with no negotiation, ignored")
		return
	}
	ci := webrtc.ICECandidateInit{
		Candidate:     ev.Candidate,
		SDPMid:        ev.SDPMid,
		SDPMLineIndex: ev.SDPMLineIndex,
	}
	if err := link.AddICECandidate(ci); err != nil {
		log.Warn().Err(err).Str("module", "call").Msg("add ice candidate")
	}
}

// newLink builds a PeerLink for the given call attempt: local tracks
// attached, candidate and track callbacks wired through the epoch
// check. Candidates are relayed the moment they surface, in no
// particular order relative to the offer/answer exchange.
func (s *Session) newLink(epoch string) (PeerLink, error) {
	link, err := s.newPeer()
	if err != nil {
		return nil, fmt.Errorf("new peer link: %w", err)
	}

	s.mu.Lock()
	media := s.media
	s.mu.Unlock()
	if media != nil {
		for _, t := range media.Tracks() {
			if err := link.AddTrack(t); err != nil {
				_ = link.Close()
				return nil, fmt.Errorf("add local track: %w", err)
			}
		}
	}

	link.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		s.emitCandidate(epoch, ci)
	})
	link.OnTrack(func(track *webrtc.TrackRemote) {
		s.mu.Lock()
		current := s.epoch == epoch
		s.mu.Unlock()
		if current {
			s.ui.RemoteTrack(track)
		}
	})
	return link, nil
}

func (s *Session) emitCandidate(epoch string, ci webrtc.ICECandidateInit) {
	s.mu.Lock()
	if s.epoch != epoch || s.link == nil {
		s.mu.Unlock()
		return
	}
	target := s.peer
	s.mu.Unlock()

	if err := s.sig.Send(protocol.Event{
		Type:          protocol.EventICECandidate,
		Room:          s.room,
		Candidate:     ci.Candidate,
		SDPMid:        ci.SDPMid,
		SDPMLineIndex: ci.SDPMLineIndex,
		Target:        target,
	}); err != nil {
		log.Warn().Err(err).Str("module", "call").Msg("emit candidate")
	}
}
