package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/cyclopcam/unrealgt/pkg/overlay"
	"github.com/cyclopcam/unrealgt/server/annotationdb"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) setupHttpRoutes() error {
	router := httprouter.New()

	handle := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	// Encoding a JPEG is the only expensive thing a viewer can ask for
	ratelimited := func(method, route string, handle httprouter.Handle, requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	handle("GET", "/api/ping", s.httpPing)
	handle("GET", "/api/catalog", s.httpCatalog)
	handle("GET", "/api/frames/latest", s.httpLatestFrame)
	handle("GET", "/api/frames/history", s.httpFrameHistory)
	handle("GET", "/api/frames/annotations/:uuid", s.httpFrameAnnotations)
	handle("GET", "/api/regions/at", s.httpRegionAt)
	handle("GET", "/api/classes/histogram", s.httpClassHistogram)
	handle("GET", "/api/stats", s.httpStats)
	handle("GET", "/api/ws", s.httpFeed)
	ratelimited("GET", "/api/overlay/latest.jpg", s.httpOverlayLatest, 20, time.Second)

	s.httpRouter = router
	return nil
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type pingJSON struct {
		Time int64 `json:"time"`
	}
	www.SendJSON(w, &pingJSON{
		Time: time.Now().Unix(),
	})
}

func (s *Server) httpCatalog(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.Annotator.Catalog().Names())
}

func (s *Server) httpLatestFrame(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.CacheNever(w)
	latest := s.Latest()
	if latest == nil {
		www.PanicNotFound()
	}
	www.SendJSON(w, latest)
}

func (s *Server) httpFrameHistory(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.CacheNever(w)
	www.SendJSON(w, s.History())
}

func (s *Server) httpFrameAnnotations(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.DB == nil {
		www.PanicBadRequestf("No annotation database is configured")
	}
	regions, err := s.DB.FrameAnnotations(params.ByName("uuid"))
	if errors.Is(err, annotationdb.ErrFrameNotFound) {
		www.PanicNotFound()
	}
	www.Check(err)
	www.SendJSON(w, regions)
}

// Example: curl "localhost:8090/api/regions/at?x=120&y=45"
func (s *Server) httpRegionAt(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	x := www.RequiredQueryInt(r, "x")
	y := www.RequiredQueryInt(r, "y")
	region, ok := s.RegionAt(x, y)
	if !ok {
		www.PanicNotFound()
	}
	www.SendJSON(w, region)
}

func (s *Server) httpClassHistogram(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.DB == nil {
		www.PanicBadRequestf("No annotation database is configured")
	}
	counts, err := s.DB.ClassHistogram()
	www.Check(err)
	www.SendJSON(w, counts)
}

// Example: curl -o overlay.jpg localhost:8090/api/overlay/latest.jpg
func (s *Server) httpOverlayLatest(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.Overlay == nil {
		www.PanicBadRequestf("Overlays are disabled")
	}
	www.CacheNever(w)
	img, err := s.Overlay.SnapshotJPEG(s.config.Overlay.JPEGQuality)
	if errors.Is(err, overlay.ErrNothingRendered) {
		www.PanicNotFound()
	}
	www.Check(err)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(img)
}
