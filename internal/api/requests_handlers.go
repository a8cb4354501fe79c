package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/hrportal/internal/auth"
	"stealthcompany.com/hrportal/internal/dispatch"
	"stealthcompany.com/hrportal/internal/rangefilter"
	"stealthcompany.com/hrportal/internal/requests"
)

type decisionRequest struct {
	Action        string `json:"action"`
	Comment       string `json:"comment"`
	CurrentStatus string `json:"currentStatus"`
}

type cancelRequest struct {
	Confirm       bool   `json:"confirm"`
	CurrentStatus string `json:"currentStatus"`
}

func intParam(raw, field string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &requests.ValidationError{Field: field, Reason: "must be a non-negative integer"}
	}
	return n, nil
}

func parseDateParam(raw, field string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := rangefilter.Parse(raw, loc)
	if err != nil {
		return nil, &requests.ValidationError{Field: field, Reason: err.Error()}
	}
	return &t, nil
}

// parseQuery reads the one-shot feed query from the URL. Dates accept the
// same lenient text the range inputs do.
func (h *handlers) parseQuery(r *http.Request) (requests.Query, error) {
	params := r.URL.Query()
	q := requests.Query{Page: requests.Page{Size: h.DefaultPageSize}}

	if raw := params.Get("status"); raw != "" {
		st, err := requests.ParseStatus(raw)
		if err != nil {
			return q, err
		}
		q.Criteria.Status = &st
	}

	from, err := parseDateParam(params.Get("from"), "from", h.Location)
	if err != nil {
		return q, err
	}
	to, err := parseDateParam(params.Get("to"), "to", h.Location)
	if err != nil {
		return q, err
	}
	rng := requests.DateRange{From: from, To: to}
	if rng.From != nil && rng.To != nil && rng.From.After(*rng.To) {
		return q, &requests.ValidationError{Field: "dateRange", Reason: "from is after to"}
	}
	if !rng.IsZero() {
		q.Criteria.DateRange = &rng
	}

	if raw := params.Get("page"); raw != "" {
		n, err := intParam(raw, "page")
		if err != nil {
			return q, err
		}
		q.Page.Number = n
	}
	if raw := params.Get("size"); raw != "" {
		n, err := intParam(raw, "size")
		if err != nil {
			return q, err
		}
		if n > 0 {
			q.Page.Size = n
		}
	}

	if raw := params.Get("employee"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return q, &requests.ValidationError{Field: "employee", Reason: "must be a positive integer"}
		}
		q.EmployeeID = id
	} else if p, err := auth.PrincipalFromContext(r.Context()); err == nil {
		q.EmployeeID = p.EmployeeID
	}

	return q, nil
}

func (h *handlers) listRequests(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	feed := h.Feed.Query(r.Context(), q)

	log.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("items", len(feed.Items)).
		Bool("degraded", feed.Degraded()).
		Msg("Feed served")

	writeJSON(w, http.StatusOK, feed)
}

func pathKey(r *http.Request) (requests.Key, error) {
	vars := mux.Vars(r)
	kind, err := requests.ParseKind(vars["kind"])
	if err != nil {
		return requests.Key{}, err
	}
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		return requests.Key{}, &requests.ValidationError{Field: "id", Reason: "must be an integer"}
	}
	return requests.Key{Kind: kind, ID: id}, nil
}

func (h *handlers) decide(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body decisionRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	action, err := requests.ParseAction(body.Action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if action == requests.ActionCancel {
		writeError(w, r, &requests.ValidationError{Field: "action", Reason: "use the cancel endpoint to withdraw a request"})
		return
	}
	current, err := requests.ParseStatus(body.CurrentStatus)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Commands.Submit(r.Context(), dispatch.Command{
		Key:     key,
		Action:  action,
		Comment: body.Comment,
		Current: current,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body cancelRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	current := requests.StatusPending
	if body.CurrentStatus != "" {
		if current, err = requests.ParseStatus(body.CurrentStatus); err != nil {
			writeError(w, r, err)
			return
		}
	}

	res, err := h.Commands.Cancel(r.Context(), key, current, body.Confirm)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
