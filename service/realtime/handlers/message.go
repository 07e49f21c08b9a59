package handlers

import (
	"RTChat/service/realtime"
	"RTChat/tools/decode"
	"RTChat/tools/ids"
)

// sendMessage: the server stamps the message id and timestamp, overwriting
// anything the client supplied, so the broadcast and the sender echo carry
// exactly one authoritative pair. The room gets newMessage without the
// sender; the sender alone gets messageSent with the same payload.

type SendMessageHandler struct{}

func NewSendMessageHandler() realtime.Handler { return &SendMessageHandler{} }

func (h *SendMessageHandler) Event() string { return realtime.EvtSendMessage }

func (h *SendMessageHandler) Handle(ctx *realtime.Context, env *realtime.Envelope, c *realtime.Conn) error {
	msg, err := decode.DecodeMap[realtime.MessageData](env.Data)
	if err != nil {
		return err
	}
	msg.ID = ids.GenerateString()
	msg.Timestamp = realtime.NowISO()

	ctx.S.Broadcast(msg.ChannelID, realtime.EvtNewMessage, msg, c.ID)
	ctx.S.SendTo(c, realtime.EvtMessageSent, msg)
	return nil
}

// editMessage stamps isEdited plus a fresh timestamp; only remote peers need
// the update, the editor already applied it locally.

type EditMessageHandler struct{}

func NewEditMessageHandler() realtime.Handler { return &EditMessageHandler{} }

func (h *EditMessageHandler) Event() string { return realtime.EvtEditMessage }

func (h *EditMessageHandler) Handle(ctx *realtime.Context, env *realtime.Envelope, c *realtime.Conn) error {
	data, err := decode.DecodeMap[realtime.EditMessageData](env.Data)
	if err != nil {
		return err
	}
	data.IsEdited = true
	data.Timestamp = realtime.NowISO()

	ctx.S.Broadcast(data.ChannelID, realtime.EvtMessageUpdated, data, c.ID)
	return nil
}

type DeleteMessageHandler struct{}

func NewDeleteMessageHandler() realtime.Handler { return &DeleteMessageHandler{} }

func (h *DeleteMessageHandler) Event() string { return realtime.EvtDeleteMessage }

func (h *DeleteMessageHandler) Handle(ctx *realtime.Context, env *realtime.Envelope, c *realtime.Conn) error {
	data, err := decode.DecodeMap[realtime.DeleteMessageData](env.Data)
	if err != nil {
		return err
	}
	ctx.S.Broadcast(data.ChannelID, realtime.EvtMessageDeleted, data, c.ID)
	return nil
}
