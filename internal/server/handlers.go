package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"chainswitch/internal/model"
	"chainswitch/internal/orchestrator"
)

// capability mints the caller's capability from the X-API-Key header.
// Unknown or missing keys act as plain users; the acting address comes
// from X-Actor for user-scoped mutations.
func (s *Server) capability(r *http.Request) model.Capability {
	key := r.Header.Get("X-API-Key")
	switch {
	case key != "" && s.cfg.AdminKey != "" && key == s.cfg.AdminKey:
		return model.Capability{Role: model.RoleAdmin}
	case key != "" && s.registry.IsKeeperKey(key):
		return model.Capability{Role: model.RoleKeeper}
	}
	cap := model.Capability{Role: model.RoleUser}
	if actor := r.Header.Get("X-Actor"); common.IsHexAddress(actor) {
		cap.Actor = common.HexToAddress(actor)
	}
	return cap
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrEmptyUser),
		errors.Is(err, model.ErrZeroAmount),
		errors.Is(err, model.ErrExpiredDeadline),
		errors.Is(err, model.ErrInvalidDestinationChain),
		errors.Is(err, model.ErrAmountOutOfBounds),
		errors.Is(err, model.ErrChainDisabled):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrUnknownChain),
		errors.Is(err, model.ErrSwapNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrInvalidStateTransition),
		errors.Is(err, model.ErrSwapNotActive),
		errors.Is(err, model.ErrRecoveryTooEarly):
		status = http.StatusConflict
	case errors.Is(err, model.ErrOperationsPaused),
		errors.Is(err, model.ErrStalePrice),
		errors.Is(err, model.ErrPriceFeedUnavailable),
		errors.Is(err, model.ErrUnsupportedChain):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func parseChainID(r *http.Request) (model.ChainID, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", model.ErrUnknownChain, raw)
	}
	return model.ChainID(id), nil
}

func parseAddress(r *http.Request) (common.Address, error) {
	raw := chi.URLParam(r, "addr")
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: bad address %q", model.ErrEmptyUser, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseAmount(raw string) (*big.Int, error) {
	if raw == "" {
		return nil, model.ErrZeroAmount
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%w: bad amount %q", model.ErrZeroAmount, raw)
	}
	return amount, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type quoteRequest struct {
	User        string `json:"user"`
	TokenIn     string `json:"token_in"`
	TokenOut    string `json:"token_out"`
	AmountIn    string `json:"amount_in"`
	SourceChain uint64 `json:"source_chain"`
	GasUnits    uint64 `json:"gas_units"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	amount, err := parseAmount(req.AmountIn)
	if err != nil {
		writeError(w, err)
		return
	}
	quote, err := s.orch.Quote(r.Context(), model.SwapIntent{
		User:        common.HexToAddress(req.User),
		TokenIn:     common.HexToAddress(req.TokenIn),
		TokenOut:    common.HexToAddress(req.TokenOut),
		AmountIn:    amount,
		SourceChain: model.ChainID(req.SourceChain),
		GasUnits:    req.GasUnits,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type initiateRequest struct {
	User             string `json:"user"`
	TokenIn          string `json:"token_in"`
	TokenOut         string `json:"token_out"`
	AmountIn         string `json:"amount_in"`
	SourceChain      uint64 `json:"source_chain"`
	DestinationChain uint64 `json:"destination_chain"`
	DeadlineUnix     int64  `json:"deadline_unix"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	amount, err := parseAmount(req.AmountIn)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.orch.Initiate(r.Context(), orchestrator.InitiateParams{
		User:             common.HexToAddress(req.User),
		TokenIn:          common.HexToAddress(req.TokenIn),
		TokenOut:         common.HexToAddress(req.TokenOut),
		AmountIn:         amount,
		SourceChain:      model.ChainID(req.SourceChain),
		DestinationChain: model.ChainID(req.DestinationChain),
		Deadline:         time.Unix(req.DeadlineUnix, 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetSwap(w http.ResponseWriter, r *http.Request) {
	rec, err := s.orch.Swap(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type destinationResultRequest struct {
	Success   bool   `json:"success"`
	AmountOut string `json:"amount_out,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (s *Server) handleDestinationResult(w http.ResponseWriter, r *http.Request) {
	if cap := s.capability(r); cap.Role == model.RoleUser {
		writeError(w, model.ErrUnauthorized)
		return
	}
	var req destinationResultRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	result := model.DestinationResult{Success: req.Success, Reason: req.Reason}
	if req.Success {
		amount, err := parseAmount(req.AmountOut)
		if err != nil {
			writeError(w, err)
			return
		}
		result.AmountOut = amount
	}
	rec, err := s.orch.HandleDestinationSwap(r.Context(), chi.URLParam(r, "id"), result)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	if cap := s.capability(r); cap.Role == model.RoleUser {
		writeError(w, model.ErrUnauthorized)
		return
	}
	rec, err := s.orch.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	rec, err := s.orch.EmergencyRecovery(r.Context(), s.capability(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUserSwaps(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ids": s.orch.SwapsByUser(addr)})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r)
	if err != nil {
		writeError(w, err)
		return
	}
	prefs, ok := s.orch.Preferences(addr)
	if !ok {
		writeJSON(w, http.StatusOK, model.UserPreferences{})
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var prefs model.UserPreferences
	if err := decodeBody(r, &prefs); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.orch.SetPreferences(s.capability(r), addr, prefs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleChains(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Chains())
}

func (s *Server) handleGas(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sample, err := s.oracle.Get(chainID)
	if err != nil {
		writeError(w, err)
		return
	}
	level, err := s.oracle.Congestion(chainID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chain_id":    chainID,
		"price_wei":   sample.PriceWei.String(),
		"observed_at": sample.ObservedAt,
		"congestion":  level,
	})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	windowSize := 12
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad window"})
			return
		}
		windowSize = n
	}
	trend, err := s.oracle.Trend(chainID, windowSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

func (s *Server) handleChainStats(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.ChainStats(chainID))
}

type gasUpdateRequest struct {
	PriceWei string `json:"price_wei"`
}

func (s *Server) handleGasUpdate(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req gasUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	price, ok := new(big.Int).SetString(req.PriceWei, 10)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad price_wei"})
		return
	}
	if err := s.oracle.Update(s.capability(r), chainID, price); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePause(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.registry.SetPaused(s.capability(r), paused); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
	}
}

func (s *Server) handleGetThresholds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Thresholds())
}

func (s *Server) handleSetThresholds(w http.ResponseWriter, r *http.Request) {
	var t model.Thresholds
	if err := decodeBody(r, &t); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.registry.SetThresholds(s.capability(r), t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleSetFeeSchedule(w http.ResponseWriter, r *http.Request) {
	var sched model.BridgeFeeSchedule
	if err := decodeBody(r, &sched); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.registry.SetFeeSchedule(s.capability(r), sched); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) handleSetChain(w http.ResponseWriter, r *http.Request) {
	var cfg model.ChainConfig
	if err := decodeBody(r, &cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.registry.SetChain(s.capability(r), cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSetChainEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chainID, err := parseChainID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := s.registry.SetChainEnabled(s.capability(r), chainID, enabled); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chain_id": chainID, "enabled": enabled})
	}
}

type rotateKeeperRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleRotateKeeper(w http.ResponseWriter, r *http.Request) {
	var req rotateKeeperRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.registry.RotateKeeper(s.capability(r), req.Key); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
