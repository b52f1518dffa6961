package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/roach88/speller/internal/engine"
	"github.com/roach88/speller/internal/monitor"
)

// ActionResult reports whether a control request changed anything, with the
// state after it.
type ActionResult struct {
	Changed bool            `json:"changed"`
	State   engine.Snapshot `json:"state"`
}

// SettingsRequest is the PUT /settings body. Omitted fields are unchanged.
type SettingsRequest struct {
	Threshold  *float64 `json:"threshold" validate:"omitempty,gte=0,lte=1"`
	IntervalMS *int64   `json:"interval_ms" validate:"omitempty,gte=1,lte=60000"`
}

// SampleRequest is the POST /samples body.
type SampleRequest struct {
	Probability *float64 `json:"probability" validate:"required,gte=0,lte=1"`
}

func (s *Server) health(http.ResponseWriter, *http.Request) (int, any, error) {
	return http.StatusOK, map[string]string{"session": s.ctl.Snapshot().Session}, nil
}

func (s *Server) state(http.ResponseWriter, *http.Request) (int, any, error) {
	return http.StatusOK, s.ctl.Snapshot(), nil
}

func (s *Server) startFlashing(http.ResponseWriter, *http.Request) (int, any, error) {
	changed := s.ctl.StartFlashing()
	return http.StatusOK, ActionResult{Changed: changed, State: s.ctl.Snapshot()}, nil
}

func (s *Server) stopFlashing(http.ResponseWriter, *http.Request) (int, any, error) {
	changed := s.ctl.StopFlashing()
	return http.StatusOK, ActionResult{Changed: changed, State: s.ctl.Snapshot()}, nil
}

func (s *Server) resetSelection(http.ResponseWriter, *http.Request) (int, any, error) {
	if !s.ctl.Reset() {
		return 0, nil, unavailable("engine stopped")
	}
	return http.StatusAccepted, ActionResult{Changed: true, State: s.ctl.Snapshot()}, nil
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) (int, any, error) {
	req, err := decodeJSON[SettingsRequest](w, r)
	if err != nil {
		return 0, nil, err
	}
	if req.Threshold == nil && req.IntervalMS == nil {
		return 0, nil, badRequest("no settings given")
	}

	if req.Threshold != nil {
		s.ctl.SetThreshold(*req.Threshold)
	}
	if req.IntervalMS != nil {
		s.ctl.SetInterval(time.Duration(*req.IntervalMS) * time.Millisecond)
	}
	return http.StatusOK, s.ctl.Snapshot(), nil
}

func (s *Server) postSample(w http.ResponseWriter, r *http.Request) (int, any, error) {
	if s.samples == nil {
		return 0, nil, &httpError{code: http.StatusNotFound, msg: "sample ingest disabled"}
	}
	req, err := decodeJSON[SampleRequest](w, r)
	if err != nil {
		return 0, nil, err
	}

	err = s.samples.Publish(r.Context(), monitor.Sample{Value: *req.Probability})
	if errors.Is(err, monitor.ErrNotSubscribed) {
		return 0, nil, conflict("no probability subscriber")
	}
	if err != nil {
		return 0, nil, err
	}
	return http.StatusAccepted, map[string]float64{"probability": *req.Probability}, nil
}
