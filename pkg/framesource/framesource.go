// Package framesource loads frames that were exported from the simulator.
//
// Each frame lives in its own directory:
//
//	color.jpg (or color.png)   Color image, optional
//	segmentation.png           Segmentation render, one flat color per instance
//	objects.json               {"SM_LinuxCup_21": [r,g,b], ...}
//	regions.json               [{"clusterID": 1, "box": {"x":..,"y":..,"width":..,"height":..}}, ...]
//
// After annotation, GroundTruthWriter writes groundtruth.json next to these files.
package framesource

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/unrealgt/pkg/scene"
)

const (
	ColorJPEGFile    = "color.jpg"
	ColorPNGFile     = "color.png"
	SegmentationFile = "segmentation.png"
	ObjectsFile      = "objects.json"
	RegionsFile      = "regions.json"
	GroundTruthFile  = "groundtruth.json"
)

var ErrNoMoreFrames = errors.New("No more frames")

// IsFrameDir returns true if dir contains a segmentation image
func IsFrameDir(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, SegmentationFile))
	return err == nil
}

// LoadFrame reads a single frame from a directory
func LoadFrame(dir string) (*scene.Frame, error) {
	seg, err := loadSegmentation(filepath.Join(dir, SegmentationFile))
	if err != nil {
		return nil, err
	}
	color, err := loadColor(dir)
	if err != nil {
		return nil, err
	}
	objects := scene.InstanceColorMap{}
	if err := readJSON(filepath.Join(dir, ObjectsFile), &objects); err != nil {
		return nil, err
	}
	regions := []scene.Region{}
	if err := readJSON(filepath.Join(dir, RegionsFile), &regions); err != nil {
		return nil, err
	}
	frame, err := scene.NewFrame(filepath.Base(dir), color, seg, objects, regions)
	if err != nil {
		return nil, fmt.Errorf("Frame %v: %w", dir, err)
	}
	frame.Source = dir
	return frame, nil
}

// Segmentation renders must be lossless (PNG), otherwise the flat instance colors are smeared
func loadSegmentation(filename string) (*scene.SegmentationImage, error) {
	img, err := cimg.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Failed to read segmentation image %v: %w", filename, err)
	}
	return scene.SegmentationImageFromCImage(img), nil
}

// Returns nil if there is no color image. The result is always RGB.
func loadColor(dir string) (*cimg.Image, error) {
	for _, name := range []string{ColorJPEGFile, ColorPNGFile} {
		filename := filepath.Join(dir, name)
		if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
			continue
		}
		img, err := cimg.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("Failed to read color image %v: %w", filename, err)
		}
		return img.ToRGB(), nil
	}
	return nil, nil
}

func readJSON(filename string, obj any) error {
	b, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, obj); err != nil {
		return fmt.Errorf("Error parsing %v: %w", filename, err)
	}
	return nil
}

// DirSource produces frames from a directory.
// If the root directory is itself a frame, then it produces that single frame.
// Otherwise every sub-directory that looks like a frame is produced, in name order.
type DirSource struct {
	log  logs.Log
	dirs []string
	next int
}

func NewDirSource(log logs.Log, root string) (*DirSource, error) {
	s := &DirSource{
		log: logs.NewPrefixLogger(log, "FrameSource:"),
	}
	if IsFrameDir(root) {
		s.dirs = []string{root}
		return s, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		if e.IsDir() && IsFrameDir(dir) {
			s.dirs = append(s.dirs, dir)
		}
	}
	sort.Strings(s.dirs)
	s.log.Infof("Found %v frames in %v", len(s.dirs), root)
	return s, nil
}

// Len is the total number of frames
func (s *DirSource) Len() int {
	return len(s.dirs)
}

// Next returns the next frame, or ErrNoMoreFrames
func (s *DirSource) Next() (*scene.Frame, error) {
	if s.next >= len(s.dirs) {
		return nil, ErrNoMoreFrames
	}
	dir := s.dirs[s.next]
	s.next++
	return LoadFrame(dir)
}

// GroundTruthWriter writes the accepted regions of a frame into groundtruth.json,
// inside the directory that the frame was loaded from.
type GroundTruthWriter struct{}

func (GroundTruthWriter) ReplaceRegions(frame *scene.Frame, accepted []scene.AnnotatedRegion) error {
	if frame.Source == "" {
		return nil
	}
	if accepted == nil {
		accepted = []scene.AnnotatedRegion{}
	}
	b, err := json.MarshalIndent(accepted, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(frame.Source, GroundTruthFile), b, 0644)
}

// ReadGroundTruth reads the groundtruth.json file of a frame directory
func ReadGroundTruth(dir string) ([]scene.AnnotatedRegion, error) {
	accepted := []scene.AnnotatedRegion{}
	err := readJSON(filepath.Join(dir, GroundTruthFile), &accepted)
	return accepted, err
}
