package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/data"
	"github.com/carloswaibl/algotrader/internal/market"
)

const defaultClient = "default"

type Server struct {
	loader data.Loader
	cache  *data.IndexCache
	maxAge time.Duration
	logger *zap.Logger
}

// NewServer serves stored sessions from loader. maxAge bounds how stale a
// chain snapshot may be for the as-of lookups.
func NewServer(loader data.Loader, cache *data.IndexCache, maxAge time.Duration, logger *zap.Logger) *Server {
	return &Server{
		loader: loader,
		cache:  cache,
		maxAge: maxAge,
		logger: logger,
	}
}

// Preload reads every stored session of root so requests never hit Parquet.
// A missing chain file is not an error.
func (s *Server) Preload(root string) (int, error) {
	dates, err := s.loader.Dates(root)
	if err != nil {
		return 0, err
	}
	for _, date := range dates {
		if _, err := s.loader.LoadBars(root, date); err != nil {
			return 0, err
		}
		if _, err := s.loader.LoadChain(root, date); err != nil && !errors.Is(err, data.ErrNotFound) {
			return 0, err
		}
	}
	return len(dates), nil
}

type HealthResponse struct {
	Status string `json:"status"`
}

type DatesResponse struct {
	Root  string   `json:"root"`
	Dates []string `json:"dates"`
}

type BarsResponse struct {
	Root string           `json:"root"`
	Date string           `json:"date"`
	Bars []data.BarRecord `json:"bars"`
}

type ChainResponse struct {
	Root string              `json:"root"`
	Date string              `json:"date"`
	At   string              `json:"at"`
	Rows []data.OptionRecord `json:"rows"`
}

type ResetResponse struct {
	Cleared int `json:"cleared"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (s *Server) GetDates(w http.ResponseWriter, r *http.Request) {
	root := market.Root(chi.URLParam(r, "root"))
	dates, err := s.loader.Dates(root)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, http.StatusOK, DatesResponse{Root: root, Dates: dates})
}

func (s *Server) GetBars(w http.ResponseWriter, r *http.Request) {
	root, date, ok := s.session(w, r)
	if !ok {
		return
	}
	bars, err := s.loader.LoadBars(root, date)
	if err != nil {
		s.writeError(w, err)
		return
	}

	records := make([]data.BarRecord, len(bars))
	for i, b := range bars {
		records[i] = data.NewBarRecord(b)
	}
	writeJSON(w, http.StatusOK, BarsResponse{Root: root, Date: date, Bars: records})
}

// GetChain returns the freshest snapshot at or before ?at=HH:MM.
func (s *Server) GetChain(w http.ResponseWriter, r *http.Request) {
	root, date, ok := s.session(w, r)
	if !ok {
		return
	}
	clock, err := market.ParseClock(r.URL.Query().Get("at"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "at: " + err.Error()})
		return
	}
	open, _ := market.SessionOpen(date)

	chain, err := s.loader.LoadChain(root, date)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChainResponse{
		Root: root,
		Date: date,
		At:   clock.String(),
		Rows: data.OptionRecords(chain.AsOf(clock.On(open), s.maxAge)),
	})
}

// GetNext hands the next bar of the session to the client named by ?key=,
// with the chain snapshot in force at that bar when one is stored.
func (s *Server) GetNext(w http.ResponseWriter, r *http.Request) {
	root, date, ok := s.session(w, r)
	if !ok {
		return
	}
	client := r.URL.Query().Get("key")
	if client == "" {
		client = defaultClient
	}

	bars, err := s.loader.LoadBars(root, date)
	if err != nil {
		s.writeError(w, err)
		return
	}

	cacheKey := data.CacheKey(root, date, client)
	idx, exhausted := s.cache.GetAndAdvance(cacheKey, len(bars))
	if exhausted {
		s.logger.Debug("replay exhausted", zap.String("root", root), zap.String("date", date), zap.Int("index", idx))
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no more bars"})
		return
	}

	chain, err := s.loader.LoadChain(root, date)
	if err != nil && !errors.Is(err, data.ErrNotFound) {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, data.NewReplayFrame(root, date, idx, bars, chain, s.maxAge))
}

// ResetReplay rewinds the cursors of ?key=, or all cursors without it.
func (s *Server) ResetReplay(w http.ResponseWriter, r *http.Request) {
	client := r.URL.Query().Get("key")
	cleared := s.cache.Reset(client)
	s.logger.Info("replay cursors reset", zap.Int("cleared", cleared))
	writeJSON(w, http.StatusOK, ResetResponse{Cleared: cleared})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	root := market.Root(chi.URLParam(r, "root"))
	date := chi.URLParam(r, "date")
	if _, err := market.SessionOpen(date); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date: " + err.Error()})
		return "", "", false
	}
	return root, date, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, data.ErrNotFound) || errors.Is(err, data.ErrNoBars) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	s.logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
