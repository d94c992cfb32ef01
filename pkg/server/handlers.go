package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/core/liveview"
	"github.com/jakechorley/shift-calendar/pkg/core/model"
	"github.com/jakechorley/shift-calendar/pkg/core/services"
	"github.com/jakechorley/shift-calendar/pkg/db"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type assignBody struct {
	MemberID       string `json:"member_id"`
	CurrentShiftID string `json:"current_shift_id"`
}

type cancelBody struct {
	Reason         string `json:"reason"`
	CurrentShiftID string `json:"current_shift_id"`
}

type calendarResponse struct {
	*liveview.View
	Month   string   `json:"month,omitempty"`
	Visible []string `json:"visible,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusFor(kind string) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := services.ErrorKind(err)
	status := statusFor(kind)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		message = "internal error"
	} else {
		s.logger.Debug("Request rejected",
			zap.String("path", r.URL.Path),
			zap.String("kind", kind),
			zap.Error(err))
	}
	writeJSON(w, status, errorBody{Code: kind, Message: message})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &services.ValidationError{Message: "invalid request body: " + err.Error()}
	}
	return nil
}

func currentShift(id string) *db.ShiftWithMember {
	if id == "" {
		return nil
	}
	return &db.ShiftWithMember{Shift: db.Shift{ID: id}}
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	view, err := liveview.Fetch(r.Context(), s.store)
	if err != nil {
		s.writeError(w, r, &services.PersistenceError{Op: "fetch calendar", Err: err})
		return
	}

	resp := calendarResponse{View: view}
	if month := r.URL.Query().Get("month"); month != "" {
		start, err := model.ParseMonth(month)
		if err != nil {
			s.writeError(w, r, &services.ValidationError{Message: err.Error()})
			return
		}
		days, err := services.CalendarDays(s.opts.VisibleDays, start)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Month = month
		resp.Visible = make([]string, len(days))
		for i, d := range days {
			resp.Visible[i] = model.FormatDate(d)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := services.ListMembers(r.Context(), s.store, s.logger)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if members == nil {
		members = []db.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var input services.MemberInput
	if err := decodeBody(r, &input); err != nil {
		s.writeError(w, r, err)
		return
	}
	member, err := services.AddMember(r.Context(), s.store, s.logger, input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	var input services.MemberInput
	if err := decodeBody(r, &input); err != nil {
		s.writeError(w, r, err)
		return
	}
	member, err := services.UpdateMember(r.Context(), s.store, s.logger, mux.Vars(r)["id"], input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	removed, err := services.RemoveMember(r.Context(), s.store, s.logger, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"shifts_removed": removed})
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var body assignBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.Apply(r.Context(), services.TransitionRequest{
		Intent:   model.IntentAssign,
		Date:     mux.Vars(r)["date"],
		MemberID: body.MemberID,
		Current:  currentShift(body.CurrentShiftID),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var body cancelBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.Apply(r.Context(), services.TransitionRequest{
		Intent:  model.IntentCancel,
		Date:    mux.Vars(r)["date"],
		Reason:  body.Reason,
		Current: currentShift(body.CurrentShiftID),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.opts.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, r, &services.ValidationError{Message: "limit must be a positive number"})
			return
		}
		limit = n
	}

	entries, err := services.ListHistory(r.Context(), s.store, s.logger, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []db.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDateHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := services.DateHistory(r.Context(), s.store, s.logger, mux.Vars(r)["date"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []db.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
