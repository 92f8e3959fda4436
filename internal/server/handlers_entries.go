package server

import (
	"net/http"

	"github.com/fthabet1/Kaizen-sub000/internal/timer"
	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

func (s *Service) handleListEntries(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter := models.EntryFilter{Limit: queryIntDefault(r, "limit", 100)}
	if filter.From, err = queryTime(r, "from"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.To, err = queryTime(r, "to"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.TaskID, err = queryInt64(r, "task_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.ProjectID, err = queryInt64(r, "project_id"); err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := s.entries.List(r.Context(), userID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleCreatePastEntry records a closed entry for a past interval. It goes
// through the timer manager so validation (midnight rollover, no future
// instants, derived duration) lives in one place.
func (s *Service) handleCreatePastEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in timer.PastEntryInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := s.timer.CreatePastEntry(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Service) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := s.entries.GetByID(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Service) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch models.EntryPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := s.entries.Update(r.Context(), userID, id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Service) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.entries.Delete(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
