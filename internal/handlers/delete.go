package handlers

//go:generate mockgen -source=delete.go -destination=mock_delete.go -package=handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/sbilibin2017/gw-user-accounts/internal/logger"
	"github.com/sbilibin2017/gw-user-accounts/internal/models"
	"github.com/sbilibin2017/gw-user-accounts/internal/responses"
	"github.com/sbilibin2017/gw-user-accounts/internal/services"
)

// Deleter defines the interface that the service must implement.
type Deleter interface {
	Delete(ctx context.Context, id int64) (int64, error)
}

// NewDeleteUserHandler returns an HTTP handler that removes a user.
// @Summary Delete a user
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.IDResponse "User deleted"
// @Failure 404 {object} models.ErrorResponse "No such user"
// @Failure 422 {object} models.ErrorResponse "Persistence failure"
// @Router /users/{id} [delete]
func NewDeleteUserHandler(svc Deleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userIDParam(r)
		if !ok {
			responses.Error(w, http.StatusNotFound)
			return
		}

		deletedID, err := svc.Delete(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrUserNotFound):
				responses.Error(w, http.StatusNotFound)
			default:
				logger.Log.Errorw("failed to delete user", "id", id, "err", err)
				responses.Error(w, http.StatusUnprocessableEntity)
			}
			return
		}

		responses.JSON(w, http.StatusOK, models.IDResponse{
			Success: true,
			ID:      deletedID,
		})
	}
}
