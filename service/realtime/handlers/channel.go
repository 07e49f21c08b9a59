package handlers

import (
	"RTChat/logger"
	"RTChat/service/realtime"
	"RTChat/tools/decode"
)

// joinChannel / leaveChannel mutate room membership and notify the rest of
// the room. Both are idempotent; the notifications exclude the mover.

type JoinChannelHandler struct{}

func NewJoinChannelHandler() realtime.Handler { return &JoinChannelHandler{} }

func (h *JoinChannelHandler) Event() string { return realtime.EvtJoinChannel }

func (h *JoinChannelHandler) Handle(ctx *realtime.Context, env *realtime.Envelope, c *realtime.Conn) error {
	ref, err := decode.DecodeMap[realtime.ChannelRef](env.Data)
	if err != nil {
		return err
	}
	if ref.ChannelID == "" {
		return nil
	}
	ctx.S.Rooms().Join(c, ref.ChannelID)
	logger.Infof("[ws] user %s joined channel %s", c.UserID, ref.ChannelID)

	ctx.S.Broadcast(ref.ChannelID, realtime.EvtUserJoined, realtime.ChannelEventData{
		UserID:    c.UserID,
		UserEmail: c.UserEmail,
		ChannelID: ref.ChannelID,
	}, c.ID)
	return nil
}

type LeaveChannelHandler struct{}

func NewLeaveChannelHandler() realtime.Handler { return &LeaveChannelHandler{} }

func (h *LeaveChannelHandler) Event() string { return realtime.EvtLeaveChannel }

func (h *LeaveChannelHandler) Handle(ctx *realtime.Context, env *realtime.Envelope, c *realtime.Conn) error {
	ref, err := decode.DecodeMap[realtime.ChannelRef](env.Data)
	if err != nil {
		return err
	}
	if ref.ChannelID == "" {
		return nil
	}
	ctx.S.Rooms().Leave(c, ref.ChannelID)
	logger.Infof("[ws] user %s left channel %s", c.UserID, ref.ChannelID)

	ctx.S.Broadcast(ref.ChannelID, realtime.EvtUserLeft, realtime.ChannelEventData{
		UserID:    c.UserID,
		UserEmail: c.UserEmail,
		ChannelID: ref.ChannelID,
	}, c.ID)
	return nil
}
