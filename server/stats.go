package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/cyclopcam/unrealgt/pkg/gt"
	"github.com/cyclopcam/unrealgt/pkg/perfstats"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

// annotationStats summarizes every frame processed since startup
type annotationStats struct {
	lock      sync.Mutex
	frameTime perfstats.Accumulator[time.Duration]
	regions   perfstats.Accumulator[int64] // Candidate regions per frame
	accepted  int64
	rejected  map[string]int64 // Keyed by gt.RejectReason
	classes   map[string]int64
}

// StatsJSON is the summary returned by /api/stats
type StatsJSON struct {
	Frames             int64            `json:"frames"`
	AvgFrameTimeMS     float64          `json:"avgFrameTimeMS"`
	AvgRegionsPerFrame float64          `json:"avgRegionsPerFrame"`
	Accepted           int64            `json:"accepted"`
	Rejected           map[string]int64 `json:"rejected"`
	Classes            map[string]int64 `json:"classes"`
}

func newAnnotationStats() *annotationStats {
	return &annotationStats{
		rejected: map[string]int64{},
		classes:  map[string]int64{},
	}
}

func (a *annotationStats) add(result *gt.FrameResult) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.frameTime.AddSample(time.Duration(result.Elapsed * float64(time.Second)))
	a.regions.AddSample(int64(len(result.Accepted) + len(result.Rejected)))
	a.accepted += int64(len(result.Accepted))
	for _, r := range result.Rejected {
		a.rejected[r.Reason]++
	}
	for _, c := range result.Classnames() {
		a.classes[c]++
	}
}

func (a *annotationStats) snapshot() *StatsJSON {
	a.lock.Lock()
	defer a.lock.Unlock()
	s := &StatsJSON{
		Frames:   a.frameTime.Samples,
		Accepted: a.accepted,
		Rejected: map[string]int64{},
		Classes:  map[string]int64{},
	}
	s.AvgFrameTimeMS = float64(a.frameTime.Average().Microseconds()) / 1000
	if a.regions.Samples != 0 {
		s.AvgRegionsPerFrame = float64(a.regions.Total) / float64(a.regions.Samples)
	}
	for k, v := range a.rejected {
		s.Rejected[k] = v
	}
	for k, v := range a.classes {
		s.Classes[k] = v
	}
	return s
}

// Stats returns a summary of all frames processed since startup
func (s *Server) Stats() *StatsJSON {
	return s.stats.snapshot()
}

func (s *Server) httpStats(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.CacheNever(w)
	www.SendJSON(w, s.Stats())
}
