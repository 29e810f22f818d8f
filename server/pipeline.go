package server

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cyclopcam/unrealgt/pkg/framesource"
	"github.com/cyclopcam/unrealgt/pkg/gt"
	"github.com/cyclopcam/unrealgt/pkg/scene"
)

// ProcessFrame annotates a single frame, and publishes the result to the history and to websocket feeds.
// Frames are processed strictly one after the other.
func (s *Server) ProcessFrame(frame *scene.Frame) (*gt.FrameResult, error) {
	s.processLock.Lock()
	defer s.processLock.Unlock()

	// The scene starts out holding every candidate, and the annotator replaces that with the accepted subset
	s.Scene.SetRegions(frame.Regions)
	result, err := s.Annotator.ProcessFrame(frame)
	if err != nil {
		return nil, err
	}

	if s.Overlay != nil && s.config.Overlay.SaveDir != "" && frame.Color != nil {
		filename := filepath.Join(s.config.Overlay.SaveDir, frame.Name+".jpg")
		if err := s.Overlay.SaveJPEG(filename, s.config.Overlay.JPEGQuality); err != nil {
			s.Log.Warnf("Failed to save overlay %v: %v", filename, err)
		}
	}

	index := scene.NewRegionIndex(result.Accepted)
	s.historyLock.Lock()
	s.history.Add(result)
	s.latestIndex = index
	s.historyLock.Unlock()
	s.stats.add(result)

	s.broadcast(result)
	return result, nil
}

// RunSource processes every frame of the source, and returns the number of frames processed.
// A frame that fails to load or process is logged and skipped.
func (s *Server) RunSource(src *framesource.DirSource) (int, error) {
	n := 0
	for {
		frame, err := src.Next()
		if errors.Is(err, framesource.ErrNoMoreFrames) {
			break
		} else if err != nil {
			s.Log.Errorf("Failed to load frame: %v", err)
			continue
		}
		if _, err := s.ProcessFrame(frame); err != nil {
			return n, fmt.Errorf("Frame %v: %w", frame.Name, err)
		}
		n++
	}
	return n, nil
}

// Latest returns the result of the most recent frame, or nil
func (s *Server) Latest() *gt.FrameResult {
	s.historyLock.Lock()
	defer s.historyLock.Unlock()
	if s.history.Len() == 0 {
		return nil
	}
	return s.history.Peek(s.history.Len() - 1)
}

// History returns the recent frame results, oldest first
func (s *Server) History() []*gt.FrameResult {
	s.historyLock.Lock()
	defer s.historyLock.Unlock()
	results := make([]*gt.FrameResult, 0, s.history.Len())
	for i := 0; i < s.history.Len(); i++ {
		results = append(results, s.history.Peek(i))
	}
	return results
}

// RegionAt returns the accepted region of the latest frame that lies under pixel x,y
func (s *Server) RegionAt(x, y int) (scene.AnnotatedRegion, bool) {
	s.historyLock.Lock()
	index := s.latestIndex
	s.historyLock.Unlock()
	return index.At(x, y)
}
