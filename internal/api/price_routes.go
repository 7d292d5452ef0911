package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/zeru/price-oracle/internal/external"
	"github.com/zeru/price-oracle/internal/models"
	"github.com/zeru/price-oracle/internal/resolver"
)

type priceRequest struct {
	Token     string `json:"token"`
	Network   string `json:"network"`
	Timestamp int64  `json:"timestamp"`
}

type priceResponse struct {
	Token     string  `json:"token"`
	Network   string  `json:"network"`
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
	Source    string  `json:"source"`
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, network, msg := validatePair(req.Token, req.Network)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Timestamp <= 0 {
		writeError(w, http.StatusBadRequest, "timestamp must be a positive Unix timestamp")
		return
	}

	res, err := s.resolver.Resolve(r.Context(), models.PriceQuery{
		Token:     token,
		Network:   network,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		switch {
		case errors.Is(err, resolver.ErrNotFound):
			writeError(w, http.StatusNotFound, "no price data available for this token and timestamp")
		case errors.Is(err, external.ErrQuotaExceeded):
			writeError(w, http.StatusServiceUnavailable, "price providers are rate limited, try again later")
		default:
			fmt.Printf("[API] Price resolution failed for %s@%d: %v\n", token, req.Timestamp, err)
			writeError(w, http.StatusInternalServerError, "failed to resolve price")
		}
		return
	}

	writeJSON(w, http.StatusOK, priceResponse{
		Token:     token,
		Network:   network,
		Timestamp: req.Timestamp,
		Price:     res.Price,
		Source:    res.Source,
	})
}

type historyRequest struct {
	Token   string `json:"token"`
	Network string `json:"network"`
}

type historyResponse struct {
	Token   string              `json:"token"`
	Network string              `json:"network"`
	Count   int                 `json:"count"`
	History []models.PricePoint `json:"history"`
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, network, msg := validatePair(req.Token, req.Network)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	points, err := s.history.History(r.Context(), token, network)
	if err != nil {
		fmt.Printf("[API] History fetch failed for %s: %v\n", token, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch price history")
		return
	}
	if len(points) == 0 {
		writeError(w, http.StatusNotFound, "no price history for this token, schedule a backfill first")
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Token:   token,
		Network: network,
		Count:   len(points),
		History: points,
	})
}
