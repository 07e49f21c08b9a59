package handlers

import (
	"RTChat/service/realtime"
	"RTChat/tools/decode"
)

// memberAdded / memberRemoved mirror an out-of-band HTTP membership change:
// the room gets the userAdded/RemovedFromChannel broadcast (without the
// sender) and the sender alone gets a confirmation echo.

type MemberEventHandler struct {
	event   string
	out     string
	confirm string
}

func NewMemberAddedHandler() realtime.Handler {
	return &MemberEventHandler{
		event:   realtime.EvtMemberAdded,
		out:     realtime.EvtUserAddedToChannel,
		confirm: realtime.EvtMemberAddedConfirm,
	}
}

func NewMemberRemovedHandler() realtime.Handler {
	return &MemberEventHandler{
		event:   realtime.EvtMemberRemoved,
		out:     realtime.EvtUserRemovedFromChannel,
		confirm: realtime.EvtMemberRemovedConfirm,
	}
}

func (h *MemberEventHandler) Event() string { return h.event }

func (h *MemberEventHandler) Handle(ctx *realtime.Context, env *realtime.Envelope, c *realtime.Conn) error {
	data, err := decode.DecodeMap[realtime.MemberData](env.Data)
	if err != nil {
		return err
	}
	ctx.S.Broadcast(data.ChannelID, h.out, data, c.ID)
	ctx.S.SendTo(c, h.confirm, data)
	return nil
}
