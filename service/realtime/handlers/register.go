package handlers

import (
	"RTChat/service/realtime"
)

// RegisterAll installs the full inbound event table on the server's
// dispatcher. Called once from main (and from tests building a server).
func RegisterAll(s *realtime.Server) {
	d := s.Dispatcher()
	d.Register(NewJoinChannelHandler())
	d.Register(NewLeaveChannelHandler())
	d.Register(NewSendMessageHandler())
	d.Register(NewTypingHandler())
	d.Register(NewEditMessageHandler())
	d.Register(NewDeleteMessageHandler())
	d.Register(NewAddReactionHandler())
	d.Register(NewRemoveReactionHandler())
	d.Register(NewMemberAddedHandler())
	d.Register(NewMemberRemovedHandler())
}
