package server

import (
	"net/http"
	"time"
)

func (s *Service) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.stats.Summary(r.Context(), userID, time.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Service) handleStatsDaily(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	days := queryIntDefault(r, "days", 7)
	if days > 366 {
		days = 366
	}
	totals, err := s.stats.Daily(r.Context(), userID, time.Now(), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Service) handleStatsProjects(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := time.Now()
	if from == nil {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		from = &monthStart
	}
	if to == nil {
		horizon := now.Add(time.Second)
		to = &horizon
	}
	totals, err := s.stats.ByProject(r.Context(), userID, *from, *to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}
