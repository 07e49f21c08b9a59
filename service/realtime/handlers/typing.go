package handlers

import (
	"RTChat/service/realtime"
	"RTChat/tools/decode"
)

// typing relays the indicator to everyone else in the room; no server state,
// no echo. The receivers run their own decay timers, so a lost
// isTyping:false is self-healing.

type TypingHandler struct{}

func NewTypingHandler() realtime.Handler { return &TypingHandler{} }

func (h *TypingHandler) Event() string { return realtime.EvtTyping }

func (h *TypingHandler) Handle(ctx *realtime.Context, env *realtime.Envelope, c *realtime.Conn) error {
	data, err := decode.DecodeMap[realtime.TypingData](env.Data)
	if err != nil {
		return err
	}
	ctx.S.Broadcast(data.ChannelID, realtime.EvtUserTyping, data, c.ID)
	return nil
}
