package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Rrens/support-chat/internal/api"
	"github.com/Rrens/support-chat/internal/devserver/middleware"
	"github.com/Rrens/support-chat/internal/devserver/response"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

// decode reads and validates a JSON body, writing the error response on failure
func decode(w http.ResponseWriter, r *http.Request, input any) bool {
	if err := json.NewDecoder(r.Body).Decode(input); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}

	if err := validate.Struct(input); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			response.BadRequest(w, api.NewValidationError(err).Fields)
			return false
		}
		response.BadRequest(w, err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid user ID")
		return 0, false
	}
	return id, true
}

func currentUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
	}
	return userID, ok
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "ok"})
}

func (s *Server) issue(w http.ResponseWriter, status int, user domain.User) {
	token, err := s.jwtManager.Generate(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		response.InternalError(w, "failed to issue token")
		return
	}
	response.JSON(w, status, domain.AuthResponse{Token: token, User: user})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var input domain.LoginRequest
	if !decode(w, r, &input) {
		return
	}

	user, err := s.backend.Authenticate(r.Context(), input.Email, input.Password)
	switch {
	case errors.Is(err, ErrInactive):
		response.Forbidden(w, err.Error())
		return
	case err != nil:
		response.Unauthorized(w, err.Error())
		return
	}

	s.issue(w, http.StatusOK, user)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var input domain.RegisterRequest
	if !decode(w, r, &input) {
		return
	}

	user, err := s.backend.Register(r.Context(), input)
	if errors.Is(err, ErrEmailTaken) {
		response.Conflict(w, err.Error())
		return
	}
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	s.issue(w, http.StatusCreated, user)
}

func (s *Server) config(w http.ResponseWriter, r *http.Request) {
	response.OK(w, domain.AppConfig{
		BotName: s.backend.SettingValue(r.Context(), domain.SettingBotName, s.cfg.BotName),
	})
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	response.OK(w, domain.VersionResponse{Version: s.cfg.Version})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	user, err := s.backend.User(r.Context(), userID)
	if err != nil {
		response.Unauthorized(w, err.Error())
		return
	}
	response.OK(w, map[string]any{"user": user})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var input domain.UpdateProfileRequest
	if !decode(w, r, &input) {
		return
	}

	user, err := s.backend.UpdateProfile(r.Context(), userID, input)
	if errors.Is(err, ErrUserNotFound) {
		response.NotFound(w, err.Error())
		return
	}
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	// Only the changed fields are returned
	changed := map[string]any{"id": user.ID, "username": user.Username}
	if input.Theme != "" {
		changed["theme"] = user.Theme
	}
	response.OK(w, map[string]any{"user": changed})
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var input domain.ChangePasswordRequest
	if !decode(w, r, &input) {
		return
	}

	err := s.backend.ChangePassword(r.Context(), userID, input)
	switch {
	case errors.Is(err, ErrWrongPassword):
		response.BadRequest(w, map[string]string{"CurrentPassword": err.Error()})
	case errors.Is(err, ErrUserNotFound):
		response.NotFound(w, err.Error())
	case err != nil:
		response.InternalError(w, err.Error())
	default:
		response.OK(w, map[string]string{"message": "password updated"})
	}
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	messages, err := s.backend.Messages(r.Context(), userID)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.OK(w, messages)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var input domain.SendMessageRequest
	if !decode(w, r, &input) {
		return
	}

	msg, err := s.backend.AddMessage(r.Context(), userID, domain.SenderUser, input.Content)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Created(w, map[string]any{"message": msg})

	go s.reply(userID, msg)
}

// reply pushes the stored user message and a bot answer to the user's live connections
func (s *Server) reply(userID int64, msg domain.ChatMessage) {
	s.hub.Publish(userID, msg)

	ctx := context.Background()
	botName := s.backend.SettingValue(ctx, domain.SettingBotName, s.cfg.BotName)
	answer, err := s.backend.AddMessage(ctx, userID, domain.SenderBot, s.generateReply(ctx, userID, msg, botName))
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to store bot reply")
		return
	}
	n := s.hub.Publish(userID, answer)
	log.Debug().Int64("user_id", userID).Int("connections", n).Msg("bot reply pushed")
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.backend.Users(r.Context())
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.OK(w, domain.UsersListResponse{Users: users})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var input domain.CreateUserRequest
	if !decode(w, r, &input) {
		return
	}

	user, err := s.backend.CreateUser(r.Context(), input)
	if errors.Is(err, ErrEmailTaken) {
		response.Conflict(w, err.Error())
		return
	}
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.Created(w, map[string]any{"user": user})
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var input domain.UpdateUserRequest
	if !decode(w, r, &input) {
		return
	}

	user, err := s.backend.UpdateUser(r.Context(), id, input)
	switch {
	case errors.Is(err, ErrUserNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrEmailTaken):
		response.Conflict(w, err.Error())
	case err != nil:
		response.InternalError(w, err.Error())
	default:
		response.OK(w, map[string]any{"user": user})
	}
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := s.backend.DeleteUser(r.Context(), id)
	if errors.Is(err, ErrUserNotFound) {
		response.NotFound(w, err.Error())
		return
	}
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.OK(w, map[string]string{"message": "user deleted"})
}

func (s *Server) allMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.backend.AllMessages(r.Context())
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.OK(w, messages)
}

func (s *Server) userMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.backend.User(r.Context(), id); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(w, err.Error())
		} else {
			response.InternalError(w, err.Error())
		}
		return
	}
	messages, err := s.backend.Messages(r.Context(), id)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.OK(w, messages)
}

func (s *Server) listSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.backend.Settings(r.Context())
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.OK(w, settings)
}

func (s *Server) getSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := s.backend.Setting(r.Context(), chi.URLParam(r, "key"))
	if errors.Is(err, ErrSettingNotFound) {
		response.NotFound(w, err.Error())
		return
	}
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.OK(w, setting)
}

func (s *Server) putSetting(w http.ResponseWriter, r *http.Request) {
	var input domain.UpdateSettingRequest
	if !decode(w, r, &input) {
		return
	}
	setting, err := s.backend.PutSetting(r.Context(), chi.URLParam(r, "key"), input)
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.OK(w, setting)
}

func (s *Server) deleteSetting(w http.ResponseWriter, r *http.Request) {
	err := s.backend.DeleteSetting(r.Context(), chi.URLParam(r, "key"))
	if errors.Is(err, ErrSettingNotFound) {
		response.NotFound(w, err.Error())
		return
	}
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}
	response.OK(w, map[string]string{"message": "setting deleted"})
}
