package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"kaspa-auction-engine/internal/domain"
	"kaspa-auction-engine/internal/engine"
	"kaspa-auction-engine/internal/events/wshub"
	"kaspa-auction-engine/internal/storage"
	"kaspa-auction-engine/internal/watcher"
)

// apiServer serves the auction HTTP API and the websocket endpoint.
type apiServer struct {
	engine  *engine.Engine
	watcher *watcher.Watcher // nil when running without a node
	hub     *wshub.Hub
	logger  *log.Logger
	started time.Time
}

func (s *apiServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auctions", s.handleCreateAuction)
	mux.HandleFunc("GET /auctions", s.handleListAuctions)
	mux.HandleFunc("GET /auctions/{id}", s.handleGetAuction)
	mux.HandleFunc("DELETE /auctions/{id}", s.handleDeleteAuction)
	mux.Handle("GET /ws", s.hub)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /status", s.handleStatus)
	return mux
}

// createAuctionRequest is the JSON body for POST /auctions.
type createAuctionRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	ImageURL         string `json:"imageUrl"`
	SellerAddress    string `json:"sellerAddress"`
	SellerName       string `json:"sellerName"`
	StartPrice       int64  `json:"startPrice"`
	ReservePrice     *int64 `json:"reservePrice,omitempty"`
	MinimumIncrement int64  `json:"minimumIncrement"`
	StartTime        string `json:"startTime"` // RFC 3339
	EndTime          string `json:"endTime"`   // RFC 3339
}

func (s *apiServer) handleCreateAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "startTime must be RFC 3339")
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "endTime must be RFC 3339")
		return
	}

	a, err := s.engine.CreateAuction(r.Context(), domain.AuctionInput{
		Title:            req.Title,
		Description:      req.Description,
		ImageURL:         req.ImageURL,
		SellerAddress:    req.SellerAddress,
		SellerName:       req.SellerName,
		StartPrice:       req.StartPrice,
		ReservePrice:     req.ReservePrice,
		MinimumIncrement: req.MinimumIncrement,
		StartTime:        startTime,
		EndTime:          endTime,
	})
	if err != nil {
		writeStorageError(w, err)
		return
	}

	if s.watcher != nil {
		if err := s.watcher.Track(r.Context(), a.ID, a.Seller.Address); err != nil {
			s.logger.Printf("Failed to track auction %s: %v", a.ID, err)
		}
	}

	writeJSON(w, http.StatusCreated, a)
}

func (s *apiServer) handleListAuctions(w http.ResponseWriter, r *http.Request) {
	auctions, err := s.engine.ListAuctions(r.Context())
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auctions)
}

func (s *apiServer) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.GetAuction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *apiServer) handleDeleteAuction(w http.ResponseWriter, r *http.Request) {
	requester := r.URL.Query().Get("requester")
	if requester == "" {
		writeError(w, http.StatusBadRequest, "requester query parameter is required")
		return
	}

	id := r.PathValue("id")
	if err := s.engine.DeleteAuction(r.Context(), id, requester); err != nil {
		writeStorageError(w, err)
		return
	}

	if s.watcher != nil {
		if err := s.watcher.Untrack(r.Context(), id); err != nil {
			s.logger.Printf("Failed to untrack auction %s: %v", id, err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// statusResponse is the JSON response for GET /status.
type statusResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status: "running",
		Uptime: time.Since(s.started).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStorageError maps storage sentinel errors to HTTP status codes.
func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "auction not found")
	case errors.Is(err, storage.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "only the seller can do that")
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, "auction already has bids")
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
