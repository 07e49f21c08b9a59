package channel

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"RTChat/logger"
	"RTChat/middleware"
	midsec "RTChat/middleware/security"
	"RTChat/service/realtime"
	"RTChat/service/storage"
	"RTChat/tools/errs"
	"RTChat/tools/ids"
)

// Handler is the REST collaborator around the realtime layer. Mutations
// commit to the store first and broadcast to the affected room afterwards,
// so a client that sees the event can trust the fact behind it.
type Handler struct {
	Store storage.Store
	RT    *realtime.Server
}

func NewHandler(store storage.Store, rt *realtime.Server) *Handler {
	return &Handler{Store: store, RT: rt}
}

// RegisterRoutes mounts the API under /api.
func (h *Handler) RegisterRoutes(r gin.IRoutes, auth *midsec.Options) {
	opt := middleware.RouteOpt{IsAuth: true}
	middleware.POST(r, "/api/channels", auth, h.CreateChannel, opt)
	middleware.GET(r, "/api/channels/:id", auth, h.GetChannel, opt)
	middleware.GET(r, "/api/channels/:id/members", auth, h.ListMembers, opt)
	middleware.POST(r, "/api/channels/:id/members", auth, h.AddMember, opt)
	middleware.DELETE(r, "/api/channels/:id/members/:userId", auth, h.RemoveMember, opt)
	middleware.GET(r, "/api/channels/:id/messages", auth, h.RecentMessages, opt)
	middleware.POST(r, "/api/messages", auth, h.PostMessage, opt)
}

type createChannelReq struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
}

func (h *Handler) CreateChannel(c *gin.Context) {
	var req createChannelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}
	userID, _ := midsec.Identity(c)

	ch := storage.Channel{
		ID:          ids.GenerateString(),
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
		CreatedBy:   userID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Store.CreateChannel(c.Request.Context(), ch); err != nil {
		logger.Errorf("[api] create channel err=%v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	// creator is a member from the start
	if err := h.Store.AddMember(c.Request.Context(), ch.ID, userID); err != nil {
		logger.Errorf("[api] add creator member channel=%s err=%v", ch.ID, err)
	}
	c.JSON(http.StatusCreated, ch)
}

func (h *Handler) GetChannel(c *gin.Context) {
	ch, err := h.Store.GetChannel(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, errs.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.Store.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		logger.Errorf("[api] list members err=%v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

type addMemberReq struct {
	UserID    string `json:"userId" binding:"required"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

// AddMember commits the membership and then broadcasts userAddedToChannel
// to the channel room. The HTTP caller gets the committed fact; connected
// clients get the event.
func (h *Handler) AddMember(c *gin.Context) {
	channelID := c.Param("id")
	var req addMemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}

	ch, err := h.Store.GetChannel(c.Request.Context(), channelID)
	if err != nil {
		c.JSON(http.StatusNotFound, errs.ErrNotFound)
		return
	}
	if err := h.Store.AddMember(c.Request.Context(), channelID, req.UserID); err != nil {
		if storage.ErrAlreadyMember.Is(err) {
			c.JSON(http.StatusConflict, errs.ErrConflict)
			return
		}
		logger.Errorf("[api] add member channel=%s err=%v", channelID, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}

	data := realtime.MemberData{
		UserID:      req.UserID,
		UserName:    req.UserName,
		UserEmail:   req.UserEmail,
		ChannelID:   channelID,
		ChannelName: ch.Name,
	}
	h.RT.Broadcast(channelID, realtime.EvtUserAddedToChannel, data, "")
	c.JSON(http.StatusOK, data)
}

// RemoveMember commits the removal and broadcasts userRemovedFromChannel.
func (h *Handler) RemoveMember(c *gin.Context) {
	channelID := c.Param("id")
	userID := c.Param("userId")

	ch, err := h.Store.GetChannel(c.Request.Context(), channelID)
	if err != nil {
		c.JSON(http.StatusNotFound, errs.ErrNotFound)
		return
	}
	if err := h.Store.RemoveMember(c.Request.Context(), channelID, userID); err != nil {
		logger.Errorf("[api] remove member channel=%s err=%v", channelID, err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}

	data := realtime.MemberData{
		UserID:    userID,
		ChannelID: channelID, ChannelName: ch.Name,
	}
	h.RT.Broadcast(channelID, realtime.EvtUserRemovedFromChannel, data, "")
	c.JSON(http.StatusOK, data)
}

func (h *Handler) RecentMessages(c *gin.Context) {
	msgs, err := h.Store.RecentMessages(c.Request.Context(), c.Param("id"), 50)
	if err != nil {
		logger.Errorf("[api] recent messages err=%v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type postMessageReq struct {
	ChannelID  string `json:"channelId" binding:"required"`
	Text       string `json:"text" binding:"required"`
	SenderName string `json:"senderName"`
}

// PostMessage is the REST variant of sendMessage: same server-side stamping,
// same newMessage broadcast, but the sender is an HTTP caller with no
// connection to echo to.
func (h *Handler) PostMessage(c *gin.Context) {
	var req postMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}
	userID, _ := midsec.Identity(c)

	msg := realtime.MessageData{
		ID:         ids.GenerateString(),
		Text:       req.Text,
		SenderID:   userID,
		SenderName: req.SenderName,
		ChannelID:  req.ChannelID,
		Timestamp:  realtime.NowISO(),
	}
	rec := storage.Message{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		SenderID:  msg.SenderID,
		Content:   msg.Text,
		Timestamp: msg.Timestamp,
	}
	if err := h.Store.AppendMessage(c.Request.Context(), rec); err != nil {
		logger.Errorf("[api] append message err=%v", err)
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}

	h.RT.Broadcast(msg.ChannelID, realtime.EvtNewMessage, msg, "")
	c.JSON(http.StatusCreated, msg)
}
