package handlers

import (
	"RTChat/service/realtime"
	"RTChat/tools/decode"
)

// addReaction / removeReaction stamp the sender id from the connection's
// trusted identity (never from the payload) plus a timestamp, then relay to
// the rest of the room.

type ReactionHandler struct {
	event string
	out   string
}

func NewAddReactionHandler() realtime.Handler {
	return &ReactionHandler{event: realtime.EvtAddReaction, out: realtime.EvtReactionAdded}
}

func NewRemoveReactionHandler() realtime.Handler {
	return &ReactionHandler{event: realtime.EvtRemoveReaction, out: realtime.EvtReactionRemoved}
}

func (h *ReactionHandler) Event() string { return h.event }

func (h *ReactionHandler) Handle(ctx *realtime.Context, env *realtime.Envelope, c *realtime.Conn) error {
	data, err := decode.DecodeMap[realtime.ReactionData](env.Data)
	if err != nil {
		return err
	}
	data.UserID = c.UserID
	data.Timestamp = realtime.NowISO()

	ctx.S.Broadcast(data.ChannelID, h.out, data, c.ID)
	return nil
}
