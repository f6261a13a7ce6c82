package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/middleware"
	"github.com/openshelf/openshelf-backend/internal/repos"
)

type UserHandler struct {
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewUserHandler(log *logger.Logger, userRepo repos.UserRepo) *UserHandler {
	return &UserHandler{
		log:      log.With("handler", "UserHandler"),
		userRepo: userRepo,
	}
}

// GET /api/users/me
func (uh *UserHandler) GetMe(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user"))
		return
	}
	users, err := uh.userRepo.GetByIDs(c.Request.Context(), nil, []uuid.UUID{userID})
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	if len(users) == 0 || users[0] == nil {
		RespondError(c, http.StatusNotFound, "not_found", errors.New("user not found"))
		return
	}
	user := users[0]
	RespondOK(c, gin.H{
		"id":               user.ID,
		"email":            user.Email,
		"first_name":       user.FirstName,
		"last_name":        user.LastName,
		"points":           user.Points,
		"level":            user.Level,
		"streak_days":      user.StreakDays,
		"last_streak_date": user.LastStreakDate,
	})
}
