package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"stealthcompany.com/hrportal/internal/rangefilter"
	"stealthcompany.com/hrportal/internal/requests"
	"stealthcompany.com/hrportal/internal/view"
)

type createViewRequest struct {
	EmployeeID int64 `json:"employeeId"`
	PageSize   int   `json:"pageSize"`
}

type statusRequest struct {
	// Status is empty to clear the filter.
	Status string `json:"status"`
}

type pageRequest struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

type rangeTextRequest struct {
	Side string `json:"side"`
	Text string `json:"text"`
}

type rangeTextResponse struct {
	Range  rangefilter.State `json:"range"`
	Parsed bool              `json:"parsed"`
}

type calendarRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (h *handlers) lookupView(w http.ResponseWriter, r *http.Request) (*view.View, bool) {
	v, err := h.Views.Get(mux.Vars(r)["view"])
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return v, true
}

func (h *handlers) createView(w http.ResponseWriter, r *http.Request) {
	var body createViewRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if body.EmployeeID < 0 || body.PageSize < 0 {
		writeError(w, r, &requests.ValidationError{Reason: "employeeId and pageSize must not be negative"})
		return
	}

	snap := h.Views.Create(r.Context(), view.Options{EmployeeID: body.EmployeeID, PageSize: body.PageSize})
	writeJSON(w, http.StatusCreated, snap)
}

func (h *handlers) getView(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookupView(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

func (h *handlers) closeView(w http.ResponseWriter, r *http.Request) {
	if err := h.Views.Close(mux.Vars(r)["view"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) setViewStatus(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookupView(w, r)
	if !ok {
		return
	}
	var body statusRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	var status *requests.Status
	if strings.TrimSpace(body.Status) != "" {
		st, err := requests.ParseStatus(body.Status)
		if err != nil {
			writeError(w, r, err)
			return
		}
		status = &st
	}
	writeJSON(w, http.StatusOK, v.SetStatus(r.Context(), status))
}

func (h *handlers) setViewPage(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookupView(w, r)
	if !ok {
		return
	}
	var body pageRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Page < 0 || body.Size < 0 {
		writeError(w, r, &requests.ValidationError{Field: "page", Reason: "must not be negative"})
		return
	}
	writeJSON(w, http.StatusOK, v.SetPage(r.Context(), requests.Page{Number: body.Page, Size: body.Size}))
}

func parseSide(s string) (rangefilter.Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start", "from":
		return rangefilter.Start, nil
	case "end", "to":
		return rangefilter.End, nil
	}
	return 0, &requests.ValidationError{Field: "side", Reason: "must be start or end"}
}

func (h *handlers) setRangeText(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookupView(w, r)
	if !ok {
		return
	}
	var body rangeTextRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	side, err := parseSide(body.Side)
	if err != nil {
		writeError(w, r, err)
		return
	}

	state, parsed := v.SetRangeText(r.Context(), side, body.Text)
	writeJSON(w, http.StatusOK, rangeTextResponse{Range: state, Parsed: parsed})
}

func (h *handlers) calendarDate(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, h.Location)
	if err != nil {
		return nil, &requests.ValidationError{Field: field, Reason: "expected YYYY-MM-DD"}
	}
	return &t, nil
}

func (h *handlers) selectCalendar(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookupView(w, r)
	if !ok {
		return
	}
	var body calendarRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	from, err := h.calendarDate(body.From, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := h.calendarDate(body.To, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, v.SelectCalendar(r.Context(), from, to))
}

func (h *handlers) commitRange(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookupView(w, r)
	if !ok {
		return
	}
	snap, err := v.CommitRange(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) clearFilters(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookupView(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v.ClearFilters(r.Context()))
}
