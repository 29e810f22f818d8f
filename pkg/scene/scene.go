package scene

import (
	"sort"
	"sync"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/google/uuid"
)

// InstanceColorMap maps an instance name such as "SM_LinuxCup_21" to the color that the
// instance was rendered with in the segmentation image.
type InstanceColorMap map[string]Color

// Names returns the instance names in sorted order
func (m InstanceColorMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Region is a candidate object, found by cluster detection, that occupies a box in the segmentation image.
// ClusterID refers back to the cluster in the scene that owns this region.
type Region struct {
	ClusterID int64 `json:"clusterID"`
	Box       Rect  `json:"box"`
}

// Frame is everything needed to annotate a single frame.
// Color and Segmentation are spatially aligned, and must have the same dimensions.
type Frame struct {
	ID           uuid.UUID          `json:"id"`
	Name         string             `json:"name"`
	Source       string             `json:"source"` // Directory that the frame was loaded from, if any
	Time         time.Time          `json:"time"`
	Color        *cimg.Image        `json:"-"` // May be nil, in which case no overlay is drawn
	Segmentation *SegmentationImage `json:"-"`
	Objects      InstanceColorMap   `json:"-"`
	Regions      []Region           `json:"regions"`
}

func NewFrame(name string, color *cimg.Image, segmentation *SegmentationImage, objects InstanceColorMap, regions []Region) (*Frame, error) {
	if color != nil && (color.Width != segmentation.Width() || color.Height != segmentation.Height()) {
		return nil, ErrImageSizeMismatch
	}
	return &Frame{
		ID:           uuid.New(),
		Name:         name,
		Time:         time.Now(),
		Color:        color,
		Segmentation: segmentation,
		Objects:      objects,
		Regions:      regions,
	}, nil
}

// Classification is the ground truth classification record
type Classification struct {
	ClassificationType string `json:"classificationType"` // Always "ground_truth"
	Classname          string `json:"classname"`          // eg "LinuxCup"
	Classifier         string `json:"classifier"`         // Always "UnrealEngine"
	Source             string `json:"source"`             // Always "UnrealGTAnnotator"
}

// GroundTruth is the annotation that is attached to an accepted region
type GroundTruth struct {
	Classification Classification `json:"classification"`
}

// AnnotatedRegion is a region that received a ground truth annotation
type AnnotatedRegion struct {
	Region     Region      `json:"region"`
	Annotation GroundTruth `json:"annotation"`
	Instance   string      `json:"instance"` // Instance name that won the pixel vote, eg "SM_LinuxCup_21"
	Hits       int         `json:"hits"`     // Number of pixels that matched the winning instance
}

// Cluster is an object in the scene's object list
type Cluster struct {
	ID          int64         `json:"id"`
	Box         Rect          `json:"box"`
	Annotations []GroundTruth `json:"annotations"`
}

// Scene is an in-memory scene representation. It owns a list of clusters, and after
// annotation, that list is replaced by only the clusters that received ground truth.
type Scene struct {
	lock     sync.Mutex
	clusters []*Cluster
}

func NewScene() *Scene {
	return &Scene{}
}

// SetRegions replaces the scene's clusters with one unannotated cluster per region
func (s *Scene) SetRegions(regions []Region) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.clusters = make([]*Cluster, 0, len(regions))
	for _, r := range regions {
		s.clusters = append(s.clusters, &Cluster{ID: r.ClusterID, Box: r.Box})
	}
}

// Add a cluster, and return the region that refers to it
func (s *Scene) AddCluster(id int64, box Rect) Region {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.clusters = append(s.clusters, &Cluster{ID: id, Box: box})
	return Region{ClusterID: id, Box: box}
}

// Regions returns a region for every cluster in the scene
func (s *Scene) Regions() []Region {
	s.lock.Lock()
	defer s.lock.Unlock()
	regions := make([]Region, 0, len(s.clusters))
	for _, c := range s.clusters {
		regions = append(regions, Region{ClusterID: c.ID, Box: c.Box})
	}
	return regions
}

// Clusters returns a copy of the scene's cluster list
func (s *Scene) Clusters() []Cluster {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make([]Cluster, 0, len(s.clusters))
	for _, c := range s.clusters {
		cp := *c
		cp.Annotations = append([]GroundTruth(nil), c.Annotations...)
		out = append(out, cp)
	}
	return out
}

// ReplaceRegions attaches each annotation to its cluster, and then replaces the cluster list
// with exactly the annotated clusters, in the order given.
// Annotations that refer to unknown clusters are ignored, and a cluster that appears more than once
// keeps only its first annotation.
func (s *Scene) ReplaceRegions(frame *Frame, accepted []AnnotatedRegion) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	byID := map[int64]*Cluster{}
	for _, c := range s.clusters {
		byID[c.ID] = c
	}
	kept := make([]*Cluster, 0, len(accepted))
	seen := map[int64]bool{}
	for _, a := range accepted {
		c, ok := byID[a.Region.ClusterID]
		if !ok || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		c.Annotations = append(c.Annotations, a.Annotation)
		kept = append(kept, c)
	}
	s.clusters = kept
	return nil
}
