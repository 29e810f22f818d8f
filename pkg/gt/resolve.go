package gt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cyclopcam/unrealgt/pkg/scene"
)

const (
	ClassificationTypeGroundTruth = "ground_truth"
	ClassifierUnrealEngine        = "UnrealEngine"
	SourceUnrealGTAnnotator       = "UnrealGTAnnotator"
)

// Instance names look like "SM_LinuxCup_21", and the type name is the token after the first separator
const InstanceNameSeparator = "_"

var (
	ErrNoColorMatch          = errors.New("No pixel in region matches a known instance color")
	ErrEmptyRegion           = fmt.Errorf("%w: region lies outside the image", ErrNoColorMatch)
	ErrCatalogMiss           = errors.New("Object type is not in catalog")
	ErrMalformedInstanceName = errors.New("Malformed instance name")
)

// Resolution is the outcome of resolving one region
type Resolution struct {
	Annotation scene.GroundTruth
	Classname  string // Canonical type name, eg "LinuxCup"
	Instance   string // Instance that won the pixel vote, eg "SM_LinuxCup_21"
	Hits       int    // Pixels that matched Instance
	Total      int    // Pixels that matched any instance
}

// ParseTypeName extracts the canonical type name from an instance name.
// "SM_LinuxCup_21" -> "LinuxCup"
func ParseTypeName(instance string) (string, error) {
	tokens := strings.Split(instance, InstanceNameSeparator)
	if len(tokens) < 2 {
		return "", fmt.Errorf("%w: '%v' has no '%v' separator", ErrMalformedInstanceName, instance, InstanceNameSeparator)
	}
	return tokens[1], nil
}

// NewGroundTruth creates the annotation record for an object type
func NewGroundTruth(classname string) scene.GroundTruth {
	return scene.GroundTruth{
		Classification: scene.Classification{
			ClassificationType: ClassificationTypeGroundTruth,
			Classname:          classname,
			Classifier:         ClassifierUnrealEngine,
			Source:             SourceUnrealGTAnnotator,
		},
	}
}

// Resolver resolves regions of a single frame.
// It holds only read-only state, so one Resolver may be used by many threads at once.
type Resolver struct {
	catalog *Catalog
	seg     *scene.SegmentationImage
	index   *ColorIndex
}

func NewResolver(catalog *Catalog, seg *scene.SegmentationImage, index *ColorIndex) *Resolver {
	return &Resolver{
		catalog: catalog,
		seg:     seg,
		index:   index,
	}
}

// Resolve decides which known object occupies the region.
// If the region is rejected, the error is one of ErrNoColorMatch (or ErrEmptyRegion),
// ErrCatalogMiss, or ErrMalformedInstanceName.
func (r *Resolver) Resolve(region scene.Region) (*Resolution, error) {
	if region.Box.Clip(r.seg.Width(), r.seg.Height()).Empty() {
		return nil, ErrEmptyRegion
	}
	tally := TallyRegion(region.Box, r.seg, r.index)
	instance, hits, ok := tally.Majority()
	if !ok {
		return nil, ErrNoColorMatch
	}
	classname, err := ParseTypeName(instance)
	if err != nil {
		return nil, err
	}
	if !r.catalog.Contains(classname) {
		return nil, fmt.Errorf("%w: '%v' (instance '%v')", ErrCatalogMiss, classname, instance)
	}
	return &Resolution{
		Annotation: NewGroundTruth(classname),
		Classname:  classname,
		Instance:   instance,
		Hits:       hits,
		Total:      tally.Total(),
	}, nil
}

// Resolve a single region, building the color index on the fly.
// When resolving many regions of the same frame, create a Resolver instead, so that
// the color index is only built once.
func Resolve(region scene.Region, seg *scene.SegmentationImage, objects scene.InstanceColorMap, catalog *Catalog) (*Resolution, error) {
	return NewResolver(catalog, seg, NewColorIndex(objects)).Resolve(region)
}

// RejectReason converts a resolution error into a short machine readable string
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyRegion):
		return "empty_region"
	case errors.Is(err, ErrNoColorMatch):
		return "no_color_match"
	case errors.Is(err, ErrMalformedInstanceName):
		return "malformed_instance_name"
	case errors.Is(err, ErrCatalogMiss):
		return "catalog_miss"
	}
	return "error"
}
