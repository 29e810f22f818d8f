package scene

import (
	flatbush "github.com/bmharper/flatbush-go"
)

// RegionIndex is a spatial index over annotated regions, so that a viewer can ask
// "what is under this pixel?" without scanning every region.
type RegionIndex struct {
	regions []AnnotatedRegion
	fb      *flatbush.Flatbush[int32]
}

func NewRegionIndex(regions []AnnotatedRegion) *RegionIndex {
	idx := &RegionIndex{
		regions: regions,
	}
	if len(regions) == 0 {
		return idx
	}
	idx.fb = flatbush.NewFlatbush[int32]()
	idx.fb.Reserve(len(regions))
	for _, r := range regions {
		b := r.Region.Box
		idx.fb.Add(int32(b.X), int32(b.Y), int32(b.X2()), int32(b.Y2()))
	}
	idx.fb.Finish()
	return idx
}

// Search returns the regions whose boxes overlap the query box
func (idx *RegionIndex) Search(box Rect) []AnnotatedRegion {
	if idx.fb == nil {
		return nil
	}
	result := []AnnotatedRegion{}
	for _, i := range idx.fb.Search(int32(box.X), int32(box.Y), int32(box.X2()), int32(box.Y2())) {
		if idx.regions[i].Region.Box.Intersection(box).Area() != 0 {
			result = append(result, idx.regions[i])
		}
	}
	return result
}

// At returns the region that contains the pixel x,y.
// If several regions contain the pixel, the one whose center is closest wins.
func (idx *RegionIndex) At(x, y int) (AnnotatedRegion, bool) {
	if idx.fb == nil {
		return AnnotatedRegion{}, false
	}
	p := Point{X: x, Y: y}
	best := -1
	bestDistance := float32(9e20)
	for _, i := range idx.fb.Search(int32(x), int32(y), int32(x), int32(y)) {
		box := idx.regions[i].Region.Box
		if !box.Contains(p) {
			continue
		}
		if d := box.Center().Distance(p); d < bestDistance {
			best = i
			bestDistance = d
		}
	}
	if best == -1 {
		return AnnotatedRegion{}, false
	}
	return idx.regions[best], true
}
