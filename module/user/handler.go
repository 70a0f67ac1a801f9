package user

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ChitChat/logger"
	mid "ChitChat/middleware"
	midsec "ChitChat/middleware/security"
	chatsvc "ChitChat/service/chat"
	"ChitChat/service/storage"
	"ChitChat/tools/errs"
	"ChitChat/tools/security"
)

type Handler struct {
	store   *storage.Store
	jwtOpts security.Options
}

func NewHandler(store *storage.Store, jwtOpts security.Options) *Handler {
	return &Handler{store: store, jwtOpts: jwtOpts}
}

func (h *Handler) Register(rt *mid.Router, r gin.IRoutes) {
	rt.POST(r, "/api/auth/signup", h.signup, mid.RouteOpt{})
	rt.POST(r, "/api/auth/token", h.token, mid.RouteOpt{})
	rt.GET(r, "/api/users/me", h.me, mid.RouteOpt{IsAuth: true})
	rt.GET(r, "/api/users/contacts", h.contacts, mid.RouteOpt{IsAuth: true})
}

type signupReq struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name"`
	Password string `json:"password" binding:"required,min=6"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail(err.Error()))
		return
	}
	hash, err := security.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errs.Parse(err))
		return
	}
	u, err := h.store.CreateUser(c.Request.Context(), req.Email, req.FullName, hash)
	if err != nil {
		c.JSON(errs.HTTPStatus(err), errs.Parse(err))
		return
	}
	logger.Infof("[user] signup id=%d email=%s", u.ID, u.Email)
	c.JSON(http.StatusOK, u)
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// token implements the password login form: username is the email.
func (h *Handler) token(c *gin.Context) {
	email := c.PostForm("username")
	password := c.PostForm("password")
	if email == "" || password == "" {
		c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail("username and password required"))
		return
	}

	u, hash, err := h.store.GetUserByEmail(c.Request.Context(), email)
	if err != nil || !security.VerifyPassword(password, hash) {
		c.JSON(http.StatusUnauthorized, errs.ErrTokenInvalid.WithDetail("incorrect email or password"))
		return
	}

	signed, _, err := security.Generate(h.jwtOpts, u.ID, u.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errs.Parse(err))
		return
	}
	c.JSON(http.StatusOK, tokenResp{AccessToken: signed, TokenType: "bearer"})
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, midsec.CurrentUser(c))
}

func (h *Handler) contacts(c *gin.Context) {
	me := midsec.CurrentUser(c)
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	users, err := h.store.ListUsers(c.Request.Context(), me.ID, skip, limit)
	if err != nil {
		c.JSON(errs.HTTPStatus(err), errs.Parse(err))
		return
	}
	if users == nil {
		users = []*chatsvc.User{}
	}
	c.JSON(http.StatusOK, users)
}
