package handlers

//go:generate mockgen -source=create.go -destination=mock_create.go -package=handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/sbilibin2017/gw-user-accounts/internal/logger"
	"github.com/sbilibin2017/gw-user-accounts/internal/models"
	"github.com/sbilibin2017/gw-user-accounts/internal/responses"
	"github.com/sbilibin2017/gw-user-accounts/internal/services"
)

// Creator defines the interface that the service must implement.
type Creator interface {
	Create(ctx context.Context, name, username, password string) (int64, string, error)
}

// NewCreateUserHandler returns an HTTP handler for account creation.
// @Summary Create a user
// @Description Creates a user with a hashed password and returns its id and a JWT. Usernames are unique.
// @Tags users
// @Accept json
// @Produce json
// @Param createUserRequest body models.CreateUserRequest true "New user"
// @Success 200 {object} models.TokenResponse "User created"
// @Failure 409 {object} models.ErrorResponse "Username already taken"
// @Failure 422 {object} models.ErrorResponse "Invalid body or persistence failure"
// @Router /users/create [post]
func NewCreateUserHandler(svc Creator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateUserRequest

		if err := decodeBody(r, &req); err != nil {
			logger.Log.Infow("invalid create request", "err", err)
			responses.Error(w, http.StatusUnprocessableEntity)
			return
		}

		id, token, err := svc.Create(r.Context(), req.Name, req.Username, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrUserAlreadyExists):
				responses.Error(w, http.StatusConflict)
			default:
				logger.Log.Errorw("failed to create user", "err", err)
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
