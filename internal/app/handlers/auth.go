package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/curryleaf/orders/internal/service"
)

type StaffLoginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type StaffLoginResponse struct {
	Token string `json:"token"`
}

// StaffLoginHandler handles POST /api/auth/staff/login.
func StaffLoginHandler(log *slog.Logger, authService service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.StaffLoginHandler"
		logger := log.With(slog.String("op", op))

		var req StaffLoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: "validation error", Reason: err.Error()})
			return
		}

		token, err := authService.StaffLogin(r.Context(), req.Phone, req.Password)
		if err != nil {
			logger.Warn("staff login rejected", slog.Any("error", err))
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, StaffLoginResponse{Token: token})
	}
}
