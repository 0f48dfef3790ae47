package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/busgo/internal/service"
)

// @Summary  Log in
// @Param    req body  LoginRequest true "credentials"
// @Success  200 {object} SessionResponse
// @Failure  401 {object} ErrorResponse
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /login [post]
func handleLogin(svcs *service.Services, cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		sess, err := svcs.Account.Login(
			c.Request.Context(),
			req.Email,
			req.Password,
			"ip:"+c.ClientIP(),
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, sess.ID, int(cfg.SessionTTL.Seconds()), "/", "", cfg.SecureCookie, true)
		c.JSON(http.StatusOK, SessionResponse{User: sess.User})
	}
}

// @Summary  Log out
// @Success  204
// @Router   /logout [post]
func handleLogout(svcs *service.Services, cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Get(ctxSession)
		sid, _ := id.(string)

		if err := svcs.Account.Logout(c.Request.Context(), sid); err != nil {
			respondErr(c, err)
			return
		}

		c.SetCookie(sessionCookie, "", -1, "/", "", cfg.SecureCookie, true)
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Current user
// @Success  200 {object} SessionResponse
// @Failure  401 {object} ErrorResponse
// @Router   /me [get]
func handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, _ := currentUser(c)
		c.JSON(http.StatusOK, SessionResponse{User: u})
	}
}
