package handlers

//go:generate mockgen -source=update.go -destination=mock_update.go -package=handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/sbilibin2017/gw-user-accounts/internal/logger"
	"github.com/sbilibin2017/gw-user-accounts/internal/models"
	"github.com/sbilibin2017/gw-user-accounts/internal/responses"
	"github.com/sbilibin2017/gw-user-accounts/internal/services"
)

// Updater defines the interface that the service must implement.
type Updater interface {
	Update(ctx context.Context, id int64, name, username, password string) (int64, error)
}

// NewUpdateUserHandler returns an HTTP handler that overwrites a user's fields.
// @Summary Update a user
// @Description Overwrites name, username and password. The password is stored hashed.
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param updateUserRequest body models.UpdateUserRequest true "New field values"
// @Success 200 {object} models.IDResponse "User updated"
// @Failure 404 {object} models.ErrorResponse "No such user"
// @Failure 422 {object} models.ErrorResponse "Invalid body or persistence failure"
// @Router /users/{id} [patch]
func NewUpdateUserHandler(svc Updater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userIDParam(r)
		if !ok {
			responses.Error(w, http.StatusNotFound)
			return
		}

		var req models.UpdateUserRequest
		if err := decodeBody(r, &req); err != nil {
			logger.Log.Infow("invalid update request", "id", id, "err", err)
			responses.Error(w, http.StatusUnprocessableEntity)
			return
		}

		updatedID, err := svc.Update(r.Context(), id, req.Name, req.Username, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrUserNotFound):
				responses.Error(w, http.StatusNotFound)
			default:
				logger.Log.Errorw("failed to update user", "id", id, "err", err)
				responses.Error(w, http.StatusUnprocessableEntity)
			}
			return
		}

		responses.JSON(w, http.StatusOK, models.IDResponse{
			Success: true,
			ID:      updatedID,
		})
	}
}
