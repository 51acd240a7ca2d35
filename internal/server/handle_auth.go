// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

type loginPage struct {
	Next string
}

func (s *Server) handleLoginForm(c *gin.Context) {
	s.render(c, http.StatusOK, "login.html", "", loginPage{Next: safeNext(c.Query("next"))})
}

func (s *Server) handleLogin(c *gin.Context) {
	next := safeNext(c.PostForm("next"))
	token, claims, err := s.auth.Login(c.PostForm("username"), c.PostForm("password"))
	s.svc.Metrics().ObserveLogin(err == nil)
	if err != nil {
		if !errors.Is(err, types.ErrUnauthorized) {
			s.presentError(c, err)
			return
		}
		s.logger.WarnContext(c.Request.Context(), "login failed", "client", c.ClientIP())
		c.HTML(http.StatusUnauthorized, "login.html", page{
			Title: appTitle,
			Error: "Invalid credentials!",
			Data:  loginPage{Next: next},
		})
		return
	}

	s.logger.InfoContext(c.Request.Context(), "login", "user", claims.Username, "session", claims.SessionID)
	s.setSession(c, token)
	c.Redirect(http.StatusSeeOther, next)
}

func (s *Server) handleLogout(c *gin.Context) {
	s.clearSession(c)
	c.Redirect(http.StatusSeeOther, "/login")
}
