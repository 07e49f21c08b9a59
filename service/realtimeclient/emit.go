package realtimeclient

import (
	"RTChat/service/realtime"
)

// Typed emit wrappers mirroring the web client's API. Each returns the
// delivery-attempt indicator from Emit.

func (s *Session) JoinChannel(channelID string) bool {
	return s.Emit(realtime.EvtJoinChannel, realtime.ChannelRef{ChannelID: channelID})
}

func (s *Session) LeaveChannel(channelID string) bool {
	return s.Emit(realtime.EvtLeaveChannel, realtime.ChannelRef{ChannelID: channelID})
}

// SendMessage emits text for a channel; id and timestamp are stamped
// server-side, anything set here is overwritten.
func (s *Session) SendMessage(data realtime.MessageData) bool {
	return s.Emit(realtime.EvtSendMessage, data)
}

func (s *Session) SendTyping(data realtime.TypingData) bool {
	return s.Emit(realtime.EvtTyping, data)
}

func (s *Session) EditMessage(data realtime.EditMessageData) bool {
	return s.Emit(realtime.EvtEditMessage, data)
}

func (s *Session) DeleteMessage(data realtime.DeleteMessageData) bool {
	return s.Emit(realtime.EvtDeleteMessage, data)
}

func (s *Session) AddReaction(data realtime.ReactionData) bool {
	return s.Emit(realtime.EvtAddReaction, data)
}

func (s *Session) RemoveReaction(data realtime.ReactionData) bool {
	return s.Emit(realtime.EvtRemoveReaction, data)
}

func (s *Session) AddMember(data realtime.MemberData) bool {
	return s.Emit(realtime.EvtMemberAdded, data)
}

func (s *Session) RemoveMember(data realtime.MemberData) bool {
	return s.Emit(realtime.EvtMemberRemoved, data)
}
