package gt

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/unrealgt/pkg/scene"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SceneWriter receives the regions that were accepted, and replaces the scene's candidate list with them
type SceneWriter interface {
	ReplaceRegions(frame *scene.Frame, accepted []scene.AnnotatedRegion) error
}

// Overlay draws the accepted regions on top of the color image, for human inspection
type Overlay interface {
	Render(background *cimg.Image, accepted []scene.AnnotatedRegion)
}

// Rejection records why a region was dropped
type Rejection struct {
	Region scene.Region `json:"region"`
	Reason string       `json:"reason"` // See RejectReason
	Detail string       `json:"detail"`
}

// FrameResult is the outcome of annotating one frame
type FrameResult struct {
	FrameID  uuid.UUID               `json:"frameID"`
	Name     string                  `json:"name"`
	Time     time.Time               `json:"time"`
	Width    int                     `json:"width"`
	Height   int                     `json:"height"`
	Accepted []scene.AnnotatedRegion `json:"accepted"`
	Rejected []Rejection             `json:"rejected"`
	Elapsed  float64                 `json:"elapsed"` // Seconds
}

// Classnames returns the resolved type name of every accepted region, in order
func (f *FrameResult) Classnames() []string {
	names := make([]string, 0, len(f.Accepted))
	for _, a := range f.Accepted {
		names = append(names, a.Annotation.Classification.Classname)
	}
	return names
}

// Annotator attaches ground truth to the candidate regions of a frame.
// Frames must be processed one at a time, but the regions inside a frame are resolved in parallel.
type Annotator struct {
	log     logs.Log
	catalog *Catalog
	writer  SceneWriter // may be nil
	overlay Overlay     // may be nil
	threads int
}

// Create a new annotator. writer and overlay may be nil.
// If threads is zero, then we use one thread per CPU.
func NewAnnotator(log logs.Log, catalog *Catalog, writer SceneWriter, overlay Overlay, threads int) *Annotator {
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	return &Annotator{
		log:     logs.NewPrefixLogger(log, "Annotator:"),
		catalog: catalog,
		writer:  writer,
		overlay: overlay,
		threads: threads,
	}
}

func (a *Annotator) Catalog() *Catalog {
	return a.catalog
}

type regionOutcome struct {
	resolution *Resolution
	err        error
}

// ProcessFrame resolves every region of the frame, hands the accepted regions to the SceneWriter,
// and draws them on the overlay.
// Rejected regions are not an error. An error is only returned if the frame itself is unusable,
// or the SceneWriter fails.
func (a *Annotator) ProcessFrame(frame *scene.Frame) (*FrameResult, error) {
	start := time.Now()
	if frame.Segmentation == nil {
		return nil, errors.New("Frame has no segmentation image")
	}
	seg := frame.Segmentation
	if frame.Color != nil && (frame.Color.Width != seg.Width() || frame.Color.Height != seg.Height()) {
		return nil, scene.ErrImageSizeMismatch
	}

	a.log.Infof("Found %v regions in frame %v", len(frame.Regions), frame.Name)

	index := NewColorIndex(frame.Objects)
	if index.DuplicateColors() != 0 {
		a.log.Warnf("%v colors are shared by more than one instance in frame %v", index.DuplicateColors(), frame.Name)
	}
	resolver := NewResolver(a.catalog, seg, index)

	// Every region writes only to its own slot, so no locking is needed here
	outcomes := make([]regionOutcome, len(frame.Regions))
	var group errgroup.Group
	group.SetLimit(a.threads)
	for i := range frame.Regions {
		group.Go(func() error {
			res, err := resolver.Resolve(frame.Regions[i])
			outcomes[i] = regionOutcome{resolution: res, err: err}
			return nil
		})
	}
	group.Wait()

	result := &FrameResult{
		FrameID:  frame.ID,
		Name:     frame.Name,
		Time:     frame.Time,
		Width:    seg.Width(),
		Height:   seg.Height(),
		Accepted: []scene.AnnotatedRegion{},
		Rejected: []Rejection{},
	}
	for i, outcome := range outcomes {
		region := frame.Regions[i]
		if outcome.err != nil {
			if errors.Is(outcome.err, ErrMalformedInstanceName) {
				a.log.Warnf("Dropping cluster %v: %v", region.ClusterID, outcome.err)
			} else {
				a.log.Infof("Dropping cluster %v: %v", region.ClusterID, outcome.err)
			}
			result.Rejected = append(result.Rejected, Rejection{
				Region: region,
				Reason: RejectReason(outcome.err),
				Detail: outcome.err.Error(),
			})
			continue
		}
		res := outcome.resolution
		result.Accepted = append(result.Accepted, scene.AnnotatedRegion{
			Region:     region,
			Annotation: res.Annotation,
			Instance:   res.Instance,
			Hits:       res.Hits,
		})
	}

	if a.writer != nil {
		if err := a.writer.ReplaceRegions(frame, result.Accepted); err != nil {
			a.log.Errorf("Failed to write %v annotations of frame %v: %v", len(result.Accepted), frame.Name, err)
			return nil, fmt.Errorf("Failed to write annotations: %w", err)
		}
	}

	if a.overlay != nil && frame.Color != nil {
		a.overlay.Render(frame.Color, result.Accepted)
	}

	result.Elapsed = time.Since(start).Seconds()
	a.log.Infof("Frame %v: %v of %v regions have ground truth (%.1f ms)", frame.Name, len(result.Accepted), len(frame.Regions), result.Elapsed*1000)
	return result, nil
}

// MultiWriter sends the accepted regions to several SceneWriters, in order.
// It stops at the first error.
type MultiWriter []SceneWriter

func (m MultiWriter) ReplaceRegions(frame *scene.Frame, accepted []scene.AnnotatedRegion) error {
	for _, w := range m {
		if err := w.ReplaceRegions(frame, accepted); err != nil {
			return err
		}
	}
	return nil
}
