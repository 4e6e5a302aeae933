package handler

import (
	"github.com/Dan9191/vesting-service/internal/config"
	"github.com/Dan9191/vesting-service/internal/middleware"
	"github.com/gorilla/mux"
)

// NewRouter wires the public and protected routes
func NewRouter(h *Handler, cfg *config.Config) *mux.Router {
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/vesting", h.Status).Methods("GET")
	r.HandleFunc("/vesting/amount", h.VestingAmount).Methods("GET")
	r.HandleFunc("/vesting/forecast", h.Forecast).Methods("GET")
	r.HandleFunc("/balances/{address}", h.Balance).Methods("GET")
	// Protected routes
	authRouter := r.PathPrefix("/vesting").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/release", h.Release).Methods("POST")
	authRouter.HandleFunc("/releases", h.History).Methods("GET")
	return r
}
