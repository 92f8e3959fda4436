package server

import (
	"net/http"
	"time"

	"github.com/fthabet1/Kaizen-sub000/internal/apperr"
)

type timerStartReq struct {
	TaskID      int64  `json:"task_id"`
	Description string `json:"description"`
}

type adjustStartReq struct {
	StartTime time.Time `json:"start_time"`
}

type descriptionReq struct {
	Description string `json:"description"`
}

// handleTimerCurrent returns the reconciled timer state. A fresh tab calls
// this on load; the store is asked every time, so a timer started in
// another tab is adopted here.
func (s *Service) handleTimerCurrent(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	state, err := s.timer.Current(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Service) handleTimerStart(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req timerStartReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.TaskID <= 0 {
		writeError(w, r, apperr.Invalidf("task_id is required"))
		return
	}
	result, err := s.timer.Start(r.Context(), userID, req.TaskID, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleTimerStop(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.timer.Stop(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleTimerDiscard(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.timer.Discard(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Service) handleTimerAdjustStart(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req adjustStartReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.StartTime.IsZero() {
		writeError(w, r, apperr.Invalidf("start_time is required"))
		return
	}
	state, err := s.timer.AdjustStartTime(r.Context(), userID, req.StartTime)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Service) handleTimerDescription(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req descriptionReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	state, err := s.timer.SetDescription(r.Context(), userID, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleEvents streams timer state changes to the caller's other tabs.
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.broadcaster.Serve(userID, w, r)
}
