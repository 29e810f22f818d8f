package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/unrealgt/pkg/framesource"
	"github.com/cyclopcam/unrealgt/pkg/gt"
	"github.com/cyclopcam/unrealgt/pkg/overlay"
	"github.com/cyclopcam/unrealgt/pkg/scene"
	"github.com/cyclopcam/unrealgt/server/annotationdb"
	"github.com/cyclopcam/unrealgt/server/config"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Server runs the annotator over frames, one frame at a time, and lets a human
// inspect the results over HTTP.
type Server struct {
	Log       logs.Log
	Annotator *gt.Annotator
	Scene     *scene.Scene               // Live scene. After each frame, holds only the annotated clusters.
	Overlay   *overlay.Canvas            // nil if overlays are disabled
	DB        *annotationdb.AnnotationDB // nil if no database is configured

	// Receives the result of Shutdown()
	ShutdownComplete chan error

	config *config.Config

	// ProcessFrame is not re-entrant
	processLock sync.Mutex

	historyLock sync.Mutex
	history     ringbuffer.RingP[*gt.FrameResult]
	latestIndex *scene.RegionIndex // Spatial index of the latest frame's accepted regions
	stats       *annotationStats

	feedsLock sync.Mutex
	feeds     map[*feed]bool
	upgrader  websocket.Upgrader

	shutdownOnce sync.Once
	signalIn     chan os.Signal
	httpServer   *http.Server
	httpRouter   *httprouter.Router
}

func NewServer(logger logs.Log, cfg *config.Config) (*Server, error) {
	catalog := gt.DefaultCatalog()
	if cfg.CatalogFile != "" {
		var err error
		catalog, err = gt.LoadCatalogFile(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		logger.Infof("Loaded %v object types from %v", catalog.Len(), cfg.CatalogFile)
	}

	s := &Server{
		Log:              logger,
		Scene:            scene.NewScene(),
		ShutdownComplete: make(chan error, 1),
		config:           cfg,
		history:          ringbuffer.NewRingP[*gt.FrameResult](nextPowerOf2(cfg.HistorySize)),
		latestIndex:      scene.NewRegionIndex(nil),
		stats:            newAnnotationStats(),
		feeds:            map[*feed]bool{},
	}

	writers := gt.MultiWriter{s.Scene, framesource.GroundTruthWriter{}}
	if cfg.DB != nil {
		db, err := annotationdb.Open(logger, *cfg.DB)
		if err != nil {
			return nil, err
		}
		s.DB = db
		writers = append(writers, db)
	}

	var ovl gt.Overlay
	if cfg.Overlay.Enabled {
		s.Overlay = overlay.NewCanvas(logger)
		ovl = s.Overlay
	}

	s.Annotator = gt.NewAnnotator(logger, catalog, writers, ovl, cfg.Threads)

	if err := s.setupHttpRoutes(); err != nil {
		return nil, err
	}
	// Created here rather than in ListenHTTP, so that Shutdown never races with ListenHTTP
	s.httpServer = &http.Server{
		Handler: s.httpRouter,
	}
	return s, nil
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

// port example: ":8090"
func (s *Server) ListenHTTP(port string) error {
	ln, err := net.Listen("tcp", port)
	if err != nil {
		return err
	}
	s.Log.Infof("Listening on %v", ln.Addr())
	// If Shutdown has already run, Serve closes the listener and returns ErrServerClosed
	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) ListenForKillSignals() {
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'", sig.String())
			s.Shutdown()
		}
	}()
}

// Shutdown may be called more than once, but only the first call does anything
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(s.shutdown)
}

func (s *Server) shutdown() {
	s.Log.Infof("Shutdown")
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
		close(s.signalIn)
	}
	s.Log.Infof("Closing HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	err := s.httpServer.Shutdown(ctx)
	cancel()
	s.closeFeeds()
	if s.DB != nil {
		s.DB.Close()
	}
	if err != nil {
		s.Log.Warnf("Shutdown complete, with error: %v", err)
	} else {
		s.Log.Infof("Shutdown complete")
	}
	s.ShutdownComplete <- err
}
