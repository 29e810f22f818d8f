package annotationdb

import (
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/unrealgt/pkg/scene"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// A frame that has been annotated
type Frame struct {
	BaseModel
	UUID       string      `json:"uuid"`
	Name       string      `json:"name"`
	Time       dbh.IntTime `json:"time"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	NumRegions int         `json:"numRegions"` // Number of candidate regions, before rejection
}

// The ground truth that was attached to one region of a frame
type Annotation struct {
	BaseModel
	FrameID            int64                      `json:"frameID"`
	ClusterID          int64                      `json:"clusterID"`
	Box                *dbh.JSONField[scene.Rect] `json:"box"`
	ClassificationType string                     `json:"classificationType"`
	Classname          string                     `json:"classname"`
	Classifier         string                     `json:"classifier"`
	Source             string                     `json:"source"`
	Instance           string                     `json:"instance"`
	Hits               int                        `json:"hits"`
}

func (a *Annotation) ToAnnotatedRegion() scene.AnnotatedRegion {
	r := scene.AnnotatedRegion{
		Region: scene.Region{
			ClusterID: a.ClusterID,
		},
		Annotation: scene.GroundTruth{
			Classification: scene.Classification{
				ClassificationType: a.ClassificationType,
				Classname:          a.Classname,
				Classifier:         a.Classifier,
				Source:             a.Source,
			},
		},
		Instance: a.Instance,
		Hits:     a.Hits,
	}
	if a.Box != nil {
		r.Region.Box = a.Box.Data
	}
	return r
}

// Number of annotations of one class
type ClassCount struct {
	Classname string `json:"classname"`
	Count     int64  `json:"count"`
}
