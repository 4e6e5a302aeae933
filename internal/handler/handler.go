package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/Dan9191/vesting-service/internal/middleware"
	"github.com/Dan9191/vesting-service/internal/models"
	"github.com/Dan9191/vesting-service/internal/service"
	"github.com/Dan9191/vesting-service/internal/vesting"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// VestingService is the business logic the handlers call into
type VestingService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Status(ctx context.Context) (*models.VestingStatus, error)
	VestingAmount() (*big.Int, error)
	Release(ctx context.Context) (*models.ReleaseResult, error)
	Forecast(days int) (*models.VestingForecast, error)
	History(ctx context.Context) ([]models.Transfer, error)
	Balance(ctx context.Context, address string) (*models.Account, error)
}

type Handler struct {
	svc VestingService
	log *logrus.Logger
}

func NewHandler(svc VestingService, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles operator registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", "invalid request body")
		return
	}
	user, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login handles operator authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", "invalid request body")
		return
	}
	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Status reports the schedule parameters and current amounts
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// VestingAmount reports the amount vested as of now
func (h *Handler) VestingAmount(w http.ResponseWriter, r *http.Request) {
	amount, err := h.svc.VestingAmount()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"vested": amount.String()})
}

// Release pays the releasable amount to the beneficiary
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	operator, _ := middleware.UserIDFromContext(r.Context())
	log := h.log.WithField("operator", operator)

	result, err := h.svc.Release(r.Context())
	if err != nil {
		log.Infof("Release rejected: %v", err)
		h.fail(w, err)
		return
	}
	log.Infof("Release of schedule %s paid %s to %s", result.ScheduleID, result.Amount, result.Beneficiary)
	writeJSON(w, http.StatusOK, result)
}

// Forecast projects vested amounts for ?days=N days (default 30)
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BadRequest", "days must be an integer")
			return
		}
		days = n
	}
	forecast, err := h.svc.Forecast(days)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

// History lists the releases made so far
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.svc.History(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if transfers == nil {
		transfers = []models.Transfer{}
	}
	writeJSON(w, http.StatusOK, transfers)
}

// Balance reports the token balance of an address
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.Balance(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vesting.ErrCliffNotReached):
		writeError(w, http.StatusConflict, "CliffNotReached", err.Error())
	case errors.Is(err, vesting.ErrNoTokensToRelease):
		writeError(w, http.StatusConflict, "NoTokensToRelease", err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
	case errors.Is(err, service.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, service.ErrNotDeployed):
		writeError(w, http.StatusServiceUnavailable, "NotDeployed", err.Error())
	default:
		h.log.Errorf("Request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
