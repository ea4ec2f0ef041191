package handlers

//go:generate mockgen -source=login.go -destination=mock_login.go -package=handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/sbilibin2017/gw-user-accounts/internal/logger"
	"github.com/sbilibin2017/gw-user-accounts/internal/models"
	"github.com/sbilibin2017/gw-user-accounts/internal/responses"
	"github.com/sbilibin2017/gw-user-accounts/internal/services"
)

// Loginer defines the interface that the login service must implement.
type Loginer interface {
	Login(ctx context.Context, username, password string) (int64, string, error)
}

// NewLoginHandler returns an HTTP handler for user login.
// @Summary User login
// @Description Authenticate user and return its id and a JWT
// @Tags users
// @Accept json
// @Produce json
// @Param loginRequest body models.LoginRequest true "Login Request"
// @Success 200 {object} models.TokenResponse "JWT token returned"
// @Failure 401 {object} models.ErrorResponse "Invalid username or password"
// @Failure 422 {object} models.ErrorResponse "Invalid request body"
// @Router /users/login [post]
func NewLoginHandler(svc Loginer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest

		if err := decodeBody(r, &req); err != nil {
			logger.Log.Infow("invalid login request", "err", err)
			responses.Error(w, http.StatusUnprocessableEntity)
			return
		}

		id, token, err := svc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrInvalidCredentials):
				responses.Error(w, http.StatusUnauthorized)
			default:
				logger.Log.Errorw("failed to log in", "err", err)
				responses.Error(w, http.StatusUnprocessableEntity)
			}
			return
		}

		responses.JSON(w, http.StatusOK, models.TokenResponse{
			Success: true,
			ID:      id,
			Token:   token,
		})
	}
}
