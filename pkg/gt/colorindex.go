package gt

import (
	"github.com/cyclopcam/unrealgt/pkg/scene"
)

// ColorIndex maps a color back to the instance(s) that were rendered with it.
// It is built once per frame, so that each pixel costs one map lookup instead of
// a scan over the whole instance map.
type ColorIndex struct {
	byColor    map[scene.Color][]string
	duplicates int // Number of colors shared by more than one instance
}

func NewColorIndex(objects scene.InstanceColorMap) *ColorIndex {
	idx := &ColorIndex{
		byColor: make(map[scene.Color][]string, len(objects)),
	}
	// Names() is sorted, so instances that share a color are listed in name order
	for _, name := range objects.Names() {
		c := objects[name]
		idx.byColor[c] = append(idx.byColor[c], name)
		if len(idx.byColor[c]) == 2 {
			idx.duplicates++
		}
	}
	return idx
}

// Lookup returns the instances that were rendered with color c, or nil.
// Almost always there is exactly one.
func (idx *ColorIndex) Lookup(c scene.Color) []string {
	return idx.byColor[c]
}

// DuplicateColors returns the number of colors that are used by more than one instance
func (idx *ColorIndex) DuplicateColors() int {
	return idx.duplicates
}
