package handler

import (
	"net/http"

	"newsscope/internal/model"
	"newsscope/internal/service"
	"newsscope/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserView 返回给前端的用户信息
type UserView struct {
	ID          int64   `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Credits     int64   `json:"credits"`
	CreditsUsed int64   `json:"credits_used"`
	CreatedAt   string  `json:"created_at"`
	LastLogin   *string `json:"last_login"`
}

func newUserView(u *model.User) *UserView {
	v := &UserView{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Credits:     u.Credits,
		CreditsUsed: u.CreditsUsed,
		CreatedAt:   u.CreatedAt.UTC().Format(isoLayout),
	}
	if u.LastLogin != nil {
		s := u.LastLogin.UTC().Format(isoLayout)
		v.LastLogin = &s
	}
	return v
}

const isoLayout = "2006-01-02T15:04:05Z07:00"

func (h *Handler) setSession(c *gin.Context, sess *service.Session) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, sess.Token, int(sess.TTL.Seconds()), "/", "", h.cookie.Secure, true)
}

func (h *Handler) clearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
}

// Signup 注册
// POST /api/auth/signup
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if !h.bindJSON(c, &req) {
		return
	}
	sess, err := h.auth.Signup(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.setSession(c, sess)
	response.OK(c, http.StatusCreated, gin.H{
		"message": "Account created successfully",
		"user":    newUserView(sess.User),
	})
}

// Login 登录
// POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}
	sess, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.setSession(c, sess)
	response.OK(c, http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    newUserView(sess.User),
	})
}

// Logout 无论会话是否有效都清除 cookie
// POST /api/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), sessionToken(c, h.cookie.Name)); err != nil {
		h.log.Warn("注销会话失败", zap.Error(err))
	}
	h.clearSession(c)
	response.Message(c, "Logged out successfully")
}

// Me 当前用户
// GET /api/auth/me
func (h *Handler) Me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"user": newUserView(user)})
}

// DeleteAccount 删除当前用户及其全部数据
// DELETE /api/auth/me
func (h *Handler) DeleteAccount(c *gin.Context) {
	if err := h.auth.DeleteAccount(c.Request.Context(), currentUserID(c), currentClaims(c)); err != nil {
		h.fail(c, err)
		return
	}
	h.clearSession(c)
	response.Message(c, "Account deleted successfully")
}

// ForgotPassword 发送重置邮件，邮箱是否存在都返回相同结果
// POST /api/auth/forgot-password
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	response.Message(c, "If an account exists with this email, a password reset link has been sent")
}

// ResetPassword 使用邮件中的令牌设置新密码
// POST /api/auth/reset-password
func (h *Handler) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.fail(c, err)
		return
	}
	response.Message(c, "Password reset successfully. You can now log in with your new password")
}
