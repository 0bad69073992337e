package fakeapi

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bobmcallan/tradeonly/internal/models"
)

func (s *Server) registerMarketRoutes(r *mux.Router) {
	r.HandleFunc("/market/overview", s.handleOverview).Methods(http.MethodGet)
	r.HandleFunc("/market/indian/overview", s.handleOverview).Methods(http.MethodGet)
	r.HandleFunc("/market/sectors", s.handleSectors).Methods(http.MethodGet)
	r.HandleFunc("/market/gainers", s.handleGainers).Methods(http.MethodGet)
	r.HandleFunc("/market/movers", s.handleMovers).Methods(http.MethodGet)
	r.HandleFunc("/market/indian/movers", s.handleMovers).Methods(http.MethodGet)
	r.HandleFunc("/market/sector/{name}", s.handleSector).Methods(http.MethodGet)
	r.HandleFunc("/market/indian/sector/{name}", s.handleSector).Methods(http.MethodGet)

	r.HandleFunc("/stock/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/stock/quote/{symbol}", s.handleQuote).Methods(http.MethodGet)
	r.HandleFunc("/stock/history/{symbol}", s.handleHistory).Methods(http.MethodGet)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.data.getOverview(regionOf(r)))
}

func (s *Server) handleSectors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.data.getSectors())
}

func (s *Server) handleGainers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.data.getGainers())
}

func (s *Server) handleMovers(w http.ResponseWriter, r *http.Request) {
	t, err := models.ParseMoverType(r.URL.Query().Get("type"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "type must be gainers or losers")
		return
	}
	writeJSON(w, http.StatusOK, s.data.getMovers(regionOf(r), t))
}

func (s *Server) handleSector(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	writeJSON(w, http.StatusOK, s.data.getSector(regionOf(r), name))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeDetail(w, http.StatusBadRequest, "q is required")
		return
	}
	writeJSON(w, http.StatusOK, s.data.search(q))
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	q, ok := s.data.getQuote(symbol)
	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Stock %s not found", symbol))
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	period, err := models.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid period")
		return
	}
	rows, ok := s.data.history(symbol, period)
	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Stock %s not found", symbol))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"period": period,
		"data":   rows,
	})
}
