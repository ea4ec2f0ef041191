package handlers

//go:generate mockgen -source=search.go -destination=mock_search.go -package=handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/sbilibin2017/gw-user-accounts/internal/logger"
	"github.com/sbilibin2017/gw-user-accounts/internal/models"
	"github.com/sbilibin2017/gw-user-accounts/internal/responses"
	"github.com/sbilibin2017/gw-user-accounts/internal/services"
)

const maxSearchFormMemory = 1 << 20

// Searcher defines the interface that the service must implement.
type Searcher interface {
	Search(ctx context.Context, term string, page int) ([]models.UserView, int, error)
}

// NewSearchUsersHandler returns an HTTP handler for paginated username search.
// @Summary Search users
// @Description Case-insensitive substring search on username, 10 users per page
// @Tags users
// @Accept x-www-form-urlencoded
// @Produce json
// @Param search_term formData string true "Substring of the username"
// @Param page query int false "1-indexed page" default(1)
// @Success 200 {object} models.SearchResponse "Matching users"
// @Failure 404 {object} models.ErrorResponse "No user matches"
// @Failure 422 {object} models.ErrorResponse "Missing search_term"
// @Router /users/search [post]
func NewSearchUsersHandler(svc Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxSearchFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			logger.Log.Infow("invalid search form", "err", err)
			responses.Error(w, http.StatusUnprocessableEntity)
			return
		}

		terms, ok := r.PostForm["search_term"]
		if !ok || len(terms) == 0 {
			responses.Error(w, http.StatusUnprocessableEntity)
			return
		}

		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			page = 1
		}

		users, total, err := svc.Search(r.Context(), terms[0], page)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrNoUsersFound):
				responses.Error(w, http.StatusNotFound)
			default:
				logger.Log.Errorw("failed to search users", "err", err)
				responses.Error(w, http.StatusUnprocessableEntity)
			}
			return
		}

		responses.JSON(w, http.StatusOK, models.SearchResponse{
			Success:    true,
			Users:      users,
			TotalUsers: total,
		})
	}
}
