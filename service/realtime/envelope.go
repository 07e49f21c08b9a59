package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound event names (client -> server).
const (
	EvtJoinChannel    = "joinChannel"
	EvtLeaveChannel   = "leaveChannel"
	EvtSendMessage    = "sendMessage"
	EvtTyping         = "typing"
	EvtEditMessage    = "editMessage"
	EvtDeleteMessage  = "deleteMessage"
	EvtAddReaction    = "addReaction"
	EvtRemoveReaction = "removeReaction"
	EvtMemberAdded    = "memberAdded"
	EvtMemberRemoved  = "memberRemoved"
)

// Outbound event names (server -> client).
const (
	EvtUserJoined             = "userJoined"
	EvtUserLeft               = "userLeft"
	EvtNewMessage             = "newMessage"
	EvtMessageSent            = "messageSent"
	EvtUserTyping             = "userTyping"
	EvtMessageUpdated         = "messageUpdated"
	EvtMessageDeleted         = "messageDeleted"
	EvtReactionAdded          = "reactionAdded"
	EvtReactionRemoved        = "reactionRemoved"
	EvtUserAddedToChannel     = "userAddedToChannel"
	EvtUserRemovedFromChannel = "userRemovedFromChannel"
	EvtMemberAddedConfirm     = "memberAddedConfirmation"
	EvtMemberRemovedConfirm   = "memberRemovedConfirmation"
)

// Transport lifecycle signals surfaced to the client session's listeners.
// These never travel on the wire as envelopes.
const (
	EvtConnect         = "connect"
	EvtDisconnect      = "disconnect"
	EvtConnectError    = "connect_error"
	EvtReconnectFailed = "reconnect_failed"
)

// Envelope is the wire frame: one JSON object per websocket text message.
type Envelope struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

func ParseEnvelope(raw []byte) (*Envelope, error) {
	env := &Envelope{}
	if err := json.Unmarshal(raw, env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("envelope missing event name")
	}
	return env, nil
}

// MarshalEvent builds the wire bytes for one outbound event.
func MarshalEvent(event string, payload any) ([]byte, error) {
	var data map[string]any
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		if err := json.Unmarshal(b, &data); err != nil {
			return nil, fmt.Errorf("payload not an object: %w", err)
		}
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// NowISO is the server-side timestamp stamp, millisecond ISO-8601 in UTC.
func NowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ---- payload contracts, field-for-field with the web client ----

type ChannelRef struct {
	ChannelID string `json:"channelId"`
}

type ChannelEventData struct {
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
	ChannelID string `json:"channelId"`
}

type MessageData struct {
	ID         string `json:"id,omitempty"`
	Text       string `json:"text"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	ChannelID  string `json:"channelId"`
	Timestamp  string `json:"timestamp,omitempty"`
}

type TypingData struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	ChannelID string `json:"channelId"`
	IsTyping  bool   `json:"isTyping"`
}

type EditMessageData struct {
	MessageID string `json:"messageId"`
	NewText   string `json:"newText"`
	ChannelID string `json:"channelId"`
	IsEdited  bool   `json:"isEdited,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type DeleteMessageData struct {
	MessageID string `json:"messageId"`
	ChannelID string `json:"channelId"`
}

type ReactionData struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type MemberData struct {
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	UserEmail   string `json:"userEmail"`
	ChannelID   string `json:"channelId"`
	ChannelName string `json:"channelName"`
}
