package server

import (
	"net/http"
	"strings"

	"github.com/desertthunder/zylofm/internal/models"
)

type reviewBody struct {
	Reason string `json:"reason"`
}

type featureBody struct {
	Featured *bool `json:"featured"`
}

type roleBody struct {
	Role string `json:"role"`
}

// decodeOptionalJSON leaves v untouched for requests without a body.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	return decodeJSON(r, v)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.moderator.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (s *Server) adminMixes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := queryPage(r)
	mixes, err := s.store.Mixes.List(map[string]any{
		"status":   query.Get("status"),
		"dj_id":    query.Get("dj_id"),
		"genre_id": query.Get("genre_id"),
		"search":   query.Get("q"),
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, mixes)
}

func (s *Server) approveMix(w http.ResponseWriter, r *http.Request) {
	mix, err := s.moderator.ApproveMix(r.Context(), r.PathValue("id"), currentUser(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, mix)
}

func (s *Server) rejectMix(w http.ResponseWriter, r *http.Request) {
	var body reviewBody
	if err := decodeOptionalJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	mix, err := s.moderator.RejectMix(r.Context(), r.PathValue("id"), currentUser(r).ID, body.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, mix)
}

// featureMix features a mix, or unfeatures it with {"featured": false}.
func (s *Server) featureMix(w http.ResponseWriter, r *http.Request) {
	var body featureBody
	if err := decodeOptionalJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	featured := body.Featured == nil || *body.Featured

	mix, err := s.moderator.FeatureMix(r.Context(), r.PathValue("id"), featured)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, mix)
}

func (s *Server) adminDJRequests(w http.ResponseWriter, r *http.Request) {
	page := queryPage(r)
	requests, err := s.store.Requests.List(map[string]any{
		"status": r.URL.Query().Get("status"),
		"limit":  page.Limit,
		"offset": page.Offset,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, requests)
}

func (s *Server) approveDJRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.moderator.ApproveDJRequest(r.Context(), r.PathValue("id"), currentUser(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, req)
}

func (s *Server) rejectDJRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.moderator.RejectDJRequest(r.Context(), r.PathValue("id"), currentUser(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, req)
}

func (s *Server) adminUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := queryPage(r)
	users, err := s.store.Users.List(map[string]any{
		"role":   strings.ToLower(query.Get("role")),
		"search": query.Get("q"),
		"limit":  page.Limit,
		"offset": page.Offset,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, users)
}

func (s *Server) setUserRole(w http.ResponseWriter, r *http.Request) {
	var body roleBody
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	role, err := models.ParseRole(body.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.moderator.SetRole(r.Context(), currentUser(r).ID, r.PathValue("id"), role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

type probeView struct {
	Station    string `json:"station"`
	Online     bool   `json:"online"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMS  int64  `json:"latency_ms"`
	Reason     string `json:"reason,omitempty"`
}

func (s *Server) probeStations(w http.ResponseWriter, r *http.Request) {
	if s.prober == nil {
		s.notImplemented(w, r, "station probing")
		return
	}

	summary, err := s.prober.ProbeAll(r.Context(), nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	results := make([]probeView, 0, len(summary.Results))
	for _, res := range summary.Results {
		results = append(results, probeView{
			Station:    res.Station.Slug,
			Online:     res.Online,
			StatusCode: res.StatusCode,
			LatencyMS:  res.Latency.Milliseconds(),
			Reason:     res.Reason,
		})
	}
	writeData(w, http.StatusOK, map[string]any{
		"total": summary.Total, "online": summary.Online, "offline": summary.Offline, "results": results,
	})
}
