package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/metabubble/go-comdirect/server/backend"
)

func (s *Server) handlePostToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.PostForm("grant_type") {
		case "password":
			pair, err := s.b.PasswordGrant(c.PostForm("username"), c.PostForm("password"))
			if err != nil {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}

			writeTokenPair(c, pair, backend.ScopeSession)

		case "cd_secondary":
			pair, err := s.b.SecondaryGrant(c.PostForm("token"))
			if err != nil {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}

			writeTokenPair(c, pair, backend.ScopeBanking)

		case "refresh_token":
			pair, err := s.b.RefreshGrant(c.PostForm("refresh_token"))
			if err != nil {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}

			writeTokenPair(c, pair, backend.ScopeBanking)

		default:
			c.AbortWithStatus(http.StatusBadRequest)
		}
	}
}

func writeTokenPair(c *gin.Context, pair backend.TokenPair, scope string) {
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"token_type":    "bearer",
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
		"scope":         scope,
	})
}

func (s *Server) handleGetSessions() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.b.GetSessions(c.GetString("UserID")))
	}
}

func (s *Server) handlePostSessionValidate() gin.HandlerFunc {
	return func(c *gin.Context) {
		challenge, err := s.b.CreateChallenge(c.GetString("UserID"), c.Param("sessionID"))
		if err != nil {
			c.AbortWithStatus(http.StatusUnprocessableEntity)
			return
		}

		// The challenge travels in a response header, not the body.
		raw, err := json.Marshal(challenge)
		if err != nil {
			panic(err)
		}

		c.Header("x-once-authentication-info", string(raw))

		c.Status(http.StatusCreated)
	}
}

func (s *Server) handleGetChallengeStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := s.b.PollChallenge(c.GetString("UserID"), c.Param("challengeID"))
		if err != nil {
			c.AbortWithStatus(http.StatusUnprocessableEntity)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}

func (s *Server) handlePatchSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		var ref struct {
			ID string `json:"id"`
		}

		header := c.Request.Header.Get("x-once-authentication-info")

		if err := json.Unmarshal([]byte(header), &ref); err != nil || ref.ID == "" {
			c.AbortWithStatus(http.StatusUnprocessableEntity)
			return
		}

		status, err := s.b.ActivateSession(c.GetString("UserID"), c.Param("sessionID"), ref.ID)
		if err != nil {
			if errors.Is(err, backend.ErrNotApproved) {
				c.AbortWithStatus(http.StatusForbidden)
			} else {
				c.AbortWithStatus(http.StatusUnprocessableEntity)
			}

			return
		}

		c.JSON(http.StatusOK, status)
	}
}
