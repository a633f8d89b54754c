package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/princinho/postboard/auth"
	"github.com/princinho/postboard/dto"
)

func sessionResponse(s *auth.Session) dto.SessionResponse {
	return dto.SessionResponse{Token: s.AccessToken, RefreshToken: s.RefreshToken, UserID: s.UserID}
}

// POST /auth/register
func Register(sessions *auth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.RegisterDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, errInvalidBody)
			return
		}

		session, err := sessions.Register(c.Request.Context(), auth.RegisterInput{
			Username: body.Username,
			Email:    body.Email,
			Password: body.Password,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sessionResponse(session))
	}
}

// POST /auth/login
func Login(sessions *auth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.LoginDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, errInvalidBody)
			return
		}

		session, err := sessions.Login(c.Request.Context(), auth.LoginInput{
			Username: body.Username,
			Email:    body.Email,
			Password: body.Password,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sessionResponse(session))
	}
}

// POST /auth/refresh-token
func RefreshToken(sessions *auth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.RefreshTokenDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, errInvalidBody)
			return
		}

		session, err := sessions.Refresh(c.Request.Context(), body.RefreshToken)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sessionResponse(session))
	}
}

// POST /auth/logout
func Logout(sessions *auth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.RefreshTokenDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, errInvalidBody)
			return
		}

		if err := sessions.Logout(c.Request.Context(), body.RefreshToken); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
	}
}
