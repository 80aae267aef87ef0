// Package protocol defines the wire contract shared by the server relay
// and the client. Events are JSON objects dispatched on the "type" field.
// Field names and event names are fixed: unmodified peers speak the same
// vocabulary.
package protocol

type EventType string

// Client -> server verbs.
const (
	EventJoinRoom     EventType = "join-room"
	EventSendMessage  EventType = "send-message"
	EventCallUser     EventType = "call-user"
	EventAcceptCall   EventType = "accept-call"
	EventRejectCall   EventType = "reject-call"
	EventEndCall      EventType = "end-call"
	EventOffer        EventType = "offer"
	EventAnswer       EventType = "answer"
	EventICECandidate EventType = "ice-candidate"
)

// Server -> client verbs. Offer/answer/ice-candidate are relayed under
// their inbound names with the sender annotated in From.
const (
	EventExistingUsers    EventType = "existing-users"
	EventUserConnected    EventType = "user-connected"
	EventUserDisconnected EventType = "user-disconnected"
	EventReceiveMessage   EventType = "receive-message"
	EventIncomingCall     EventType = "incoming-call"
	EventCallAccepted     EventType = "call-accepted"
	EventCallRejected     EventType = "call-rejected"
	EventCallEnded        EventType = "call-ended"
	EventError            EventType = "error"
)

const (
	CallTypeAudio = "audio"
	CallTypeVideo = "video"
)

// Event is the envelope for every signaling frame. Unused fields are
// omitted from the wire; the relay never interprets SDP or candidate
// payloads, it only annotates From and fans out.
type Event struct {
	Type EventType `json:"type"`

	Room string `json:"room,omitempty"`
	Name string `json:"name,omitempty"`

	// From is stamped by the relay on everything it forwards. Clients
	// must not trust a self-reported sender.
	From string `json:"from,omitempty"`

	// Target carries the display name the frame is addressed to.
	// The relay still broadcasts room-wide; receivers filter.
	Target string `json:"target,omitempty"`

	Text      string `json:"text,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`

	CallType string `json:"callType,omitempty"`

	SDP           string  `json:"sdp,omitempty"`
	Candidate     string  `json:"candidate,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`

	// Users is the roster sent to a joiner; nil and empty both encode
	// as [] so a lone joiner still sees a list.
	Users []string `json:"users"`

	Error string `json:"error,omitempty"`
}
