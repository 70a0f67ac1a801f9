package chat

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ChitChat/logger"
	mid "ChitChat/middleware"
	midsec "ChitChat/middleware/security"
	chatsvc "ChitChat/service/chat"
	"ChitChat/service/storage"
	"ChitChat/tools/errs"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	store    *storage.Store
	pipeline *chatsvc.Pipeline
	server   *chatsvc.Server
	presence *storage.PresenceManager
}

func NewHandler(store *storage.Store, pipeline *chatsvc.Pipeline, server *chatsvc.Server, presence *storage.PresenceManager) *Handler {
	return &Handler{store: store, pipeline: pipeline, server: server, presence: presence}
}

func (h *Handler) Register(rt *mid.Router, r gin.IRoutes) {
	rt.POST(r, "/api/chats", h.createChat, mid.RouteOpt{IsAuth: true})
	rt.GET(r, "/api/chats", h.listChats, mid.RouteOpt{IsAuth: true})
	rt.GET(r, "/api/chats/:id", h.getChat, mid.RouteOpt{IsAuth: true})
	rt.GET(r, "/api/chats/:id/messages", h.listMessages, mid.RouteOpt{IsAuth: true})
	rt.POST(r, "/api/chats/:id/messages", h.sendMessage, mid.RouteOpt{IsAuth: true})
	rt.GET(r, "/api/chats/:id/online", h.onlineUsers, mid.RouteOpt{IsAuth: true})
	rt.GET(r, "/ws/:chat_id/:token", h.serveWS, mid.RouteOpt{})
	rt.GET(r, "/api/health", h.health, mid.RouteOpt{})
}

type createChatReq struct {
	Name           string          `json:"name"`
	Type           chatsvc.ChatType `json:"type" binding:"required,oneof=one_on_one group bot"`
	ParticipantIDs []int64         `json:"participant_ids"`
}

func (h *Handler) createChat(c *gin.Context) {
	me := midsec.CurrentUser(c)
	var req createChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}
	detail, err := h.store.CreateChat(c.Request.Context(), req.Name, req.Type, me.ID, req.ParticipantIDs)
	if err != nil {
		c.JSON(errs.HTTPStatus(err), errs.Parse(err))
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) listChats(c *gin.Context) {
	me := midsec.CurrentUser(c)
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	chats, err := h.store.ChatsForUser(c.Request.Context(), me.ID, skip, limit)
	if err != nil {
		c.JSON(errs.HTTPStatus(err), errs.Parse(err))
		return
	}
	if chats == nil {
		chats = []*storage.ChatDetail{}
	}
	c.JSON(http.StatusOK, chats)
}

func (h *Handler) getChat(c *gin.Context) {
	me := midsec.CurrentUser(c)
	chatID, err := paramID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail("bad chat id"))
		return
	}

	detail, err := h.store.GetChatDetail(c.Request.Context(), chatID, me.ID)
	if err != nil {
		c.JSON(errs.HTTPStatus(err), errs.Parse(err))
		return
	}
	detail.Messages, err = h.store.MessagesForChat(c.Request.Context(), chatID, me.ID, 0, 50)
	if err != nil {
		c.JSON(errs.HTTPStatus(err), errs.Parse(err))
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) listMessages(c *gin.Context) {
	me := midsec.CurrentUser(c)
	chatID, err := paramID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail("bad chat id"))
		return
	}
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	msgs, err := h.store.MessagesForChat(c.Request.Context(), chatID, me.ID, skip, limit)
	if err != nil {
		c.JSON(errs.HTTPStatus(err), errs.Parse(err))
		return
	}
	if msgs == nil {
		msgs = []*chatsvc.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

type sendMessageReq struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	me := midsec.CurrentUser(c)
	chatID, err := paramID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail("bad chat id"))
		return
	}
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}

	msg, err := h.pipeline.HandleSend(c.Request.Context(), chatID, me.ID, req.Content)
	if err != nil {
		c.JSON(errs.HTTPStatus(err), errs.Parse(err))
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) onlineUsers(c *gin.Context) {
	me := midsec.CurrentUser(c)
	chatID, err := paramID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail("bad chat id"))
		return
	}
	ok, err := h.store.IsParticipant(c.Request.Context(), chatID, me.ID)
	if err != nil {
		c.JSON(errs.HTTPStatus(err), errs.Parse(err))
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, errs.ErrNotParticipant)
		return
	}

	ids, err := h.presence.OnlineUsers(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(errs.HTTPStatus(err), errs.Parse(err))
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "online": ids})
}

// serveWS upgrades the request and hands the socket to the realtime layer.
// Admission failures close the socket with a policy code; the HTTP response
// is already hijacked by then.
func (h *Handler) serveWS(c *gin.Context) {
	chatID, err := paramID(c, "chat_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail("bad chat id"))
		return
	}
	token := c.Param("token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade failed chat=%d err=%v", chatID, err)
		return
	}

	session, err := h.server.Admit(c.Request.Context(), ws, token, chatID)
	if err != nil {
		logger.Infof("[ws] admission rejected chat=%d err=%v", chatID, err)
		return
	}
	session.Run(c.Request.Context())
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func paramID(c *gin.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}
