// Package annotationdb stores the ground truth of every annotated frame in a database
package annotationdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/unrealgt/pkg/scene"
	"gorm.io/gorm"
)

var ErrFrameNotFound = errors.New("Frame not found")

// AnnotationDB is a SceneWriter that persists the accepted regions of each frame
type AnnotationDB struct {
	Log logs.Log
	DB  *gorm.DB
}

// Open or create an annotation DB
func Open(logger logs.Log, cfg dbh.DBConfig) (*AnnotationDB, error) {
	logger = logs.NewPrefixLogger(logger, "AnnotationDB:")
	if cfg.Driver == dbh.DriverSqlite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database), 0770); err != nil {
			return nil, fmt.Errorf("Failed to create annotation DB directory: %w", err)
		}
	}
	logger.Infof("Opening %v", cfg.LogSafeDescription())
	db, err := dbh.OpenDB(logger, cfg, Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open annotation database: %w", err)
	}
	return &AnnotationDB{
		Log: logger,
		DB:  db,
	}, nil
}

// Open or create an annotation DB in an SQLite file
func OpenSqlite(logger logs.Log, filename string) (*AnnotationDB, error) {
	return Open(logger, dbh.MakeSqliteConfig(filename))
}

func (a *AnnotationDB) Close() {
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

// ReplaceRegions records the frame, and exactly the accepted regions of that frame.
// If the frame has been written before, its previous annotations are replaced.
func (a *AnnotationDB) ReplaceRegions(frame *scene.Frame, accepted []scene.AnnotatedRegion) error {
	return a.DB.Transaction(func(tx *gorm.DB) error {
		rec := Frame{}
		err := tx.Where("uuid = ?", frame.ID.String()).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			rec = Frame{
				UUID: frame.ID.String(),
			}
		} else if err != nil {
			return err
		} else if err := tx.Where("frame_id = ?", rec.ID).Delete(&Annotation{}).Error; err != nil {
			return err
		}
		rec.Name = frame.Name
		rec.Time = dbh.MakeIntTime(frame.Time)
		rec.Width = frame.Segmentation.Width()
		rec.Height = frame.Segmentation.Height()
		rec.NumRegions = len(frame.Regions)
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		for _, r := range accepted {
			c := r.Annotation.Classification
			ann := &Annotation{
				FrameID:            rec.ID,
				ClusterID:          r.Region.ClusterID,
				Box:                dbh.MakeJSONField(r.Region.Box),
				ClassificationType: c.ClassificationType,
				Classname:          c.Classname,
				Classifier:         c.Classifier,
				Source:             c.Source,
				Instance:           r.Instance,
				Hits:               r.Hits,
			}
			if err := tx.Create(ann).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FrameAnnotations returns the ground truth of one frame, in the order it was written
func (a *AnnotationDB) FrameAnnotations(frameUUID string) ([]scene.AnnotatedRegion, error) {
	rec := Frame{}
	if err := a.DB.Where("uuid = ?", frameUUID).First(&rec).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFrameNotFound
	} else if err != nil {
		return nil, err
	}
	anns := []Annotation{}
	if err := a.DB.Where("frame_id = ?", rec.ID).Order("id").Find(&anns).Error; err != nil {
		return nil, err
	}
	result := make([]scene.AnnotatedRegion, 0, len(anns))
	for i := range anns {
		result = append(result, anns[i].ToAnnotatedRegion())
	}
	return result, nil
}

// Frames returns the most recently annotated frames, newest first
func (a *AnnotationDB) Frames(limit int) ([]Frame, error) {
	frames := []Frame{}
	err := a.DB.Order("id DESC").Limit(limit).Find(&frames).Error
	return frames, err
}

// ClassHistogram counts how many times each class has been annotated, most frequent first
func (a *AnnotationDB) ClassHistogram() ([]ClassCount, error) {
	counts := []ClassCount{}
	err := a.DB.Model(&Annotation{}).
		Select("classname, COUNT(*) AS count").
		Group("classname").
		Order("count DESC, classname").
		Scan(&counts).Error
	return counts, err
}
