package services

import (
	"context"
	"errors"
	"fmt"
	"ideafeed/internal/models"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const clusterTitleRunes = 60

// Classification AI 对一条 Note 的判断结果
type Classification struct {
	Pillar        string  `json:"pillar"`
	ClarifiedText string  `json:"clarified_text"`
	Relevance     float64 `json:"relevance"`
	Refused       bool    `json:"refused"`
}

// Classifier 由 ai.Client 实现
type Classifier interface {
	Classify(ctx context.Context, text string) (*Classification, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Neighbor 向量检索命中的已归类 Note
type Neighbor struct {
	NoteID    uint
	ClusterID uint
	Score     float32
}

// VectorIndex 由 vector.QdrantIndex 实现
type VectorIndex interface {
	Nearest(ctx context.Context, tenantID uint, vec []float32) (*Neighbor, error)
	Upsert(ctx context.Context, noteID, tenantID, clusterID uint, vec []float32) error
}

// ClassifierService 驱动一条 Note 走完分类、聚类、发布
type ClassifierService struct {
	db          *gorm.DB
	classifier  Classifier
	index       VectorIndex
	publication *PublicationService
	now         func() time.Time
}

func NewClassifierService(db *gorm.DB, classifier Classifier, index VectorIndex, publication *PublicationService) *ClassifierService {
	return &ClassifierService{
		db:          db,
		classifier:  classifier,
		index:       index,
		publication: publication,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Process 已处理过的 Note 直接发布；被拒绝的 Note 返回 nil 结果
func (s *ClassifierService) Process(ctx context.Context, noteID uint) (*PublishResult, error) {
	ctx, span := tracer.Start(ctx, "ClassifierService.Process")
	defer span.End()
	span.SetAttributes(attribute.Int64("note.id", int64(noteID)))

	var note models.Note
	err := s.db.WithContext(ctx).First(&note, noteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, transient("load note", err)
	}

	switch note.Status {
	case models.NoteStatusProcessed:
		return s.publication.Publish(ctx, note.ID)
	case models.NoteStatusRefused:
		return nil, nil
	}

	if s.classifier == nil {
		return nil, fmt.Errorf("%w: classifier disabled", ErrNoteNotReady)
	}

	result, err := s.classifier.Classify(ctx, note.RawText)
	if err != nil {
		return nil, transient("classify note", err)
	}
	if result.Refused {
		return nil, s.refuse(ctx, &note)
	}

	text := strings.TrimSpace(result.ClarifiedText)
	if text == "" {
		text = note.RawText
	}

	var vec []float32
	var neighbor *Neighbor
	if s.index != nil {
		vec, err = s.classifier.Embed(ctx, text)
		if err != nil {
			return nil, transient("embed note", err)
		}
		neighbor, err = s.index.Nearest(ctx, note.TenantID, vec)
		if err != nil {
			return nil, transient("search similar notes", err)
		}
	}

	now := s.now()
	relevance := clampRelevance(result.Relevance)
	var clusterID uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pillar, err := ensurePillar(tx, note.TenantID, result.Pillar)
		if err != nil {
			return err
		}
		var pillarID *uint
		if pillar != nil {
			pillarID = &pillar.ID
		}

		cluster, err := s.assignCluster(tx, &note, neighbor, pillarID, text, now)
		if err != nil {
			return err
		}
		clusterID = cluster.ID

		// 只处理仍为 pending 的 Note，并发处理时后到的一方不重复计数
		res := tx.Model(&models.Note{}).
			Where("id = ? AND status = ?", note.ID, models.NoteStatusPending).
			Updates(map[string]interface{}{
				"clarified_text":  text,
				"status":          models.NoteStatusProcessed,
				"cluster_id":      cluster.ID,
				"pillar_id":       pillarID,
				"relevance_score": relevance,
				"processed_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadyProcessed
		}
		return nil
	})
	if errors.Is(err, errAlreadyProcessed) {
		return s.publication.Publish(ctx, note.ID)
	}
	if err != nil {
		return nil, transient("classify note", err)
	}

	if s.index != nil && len(vec) > 0 {
		if err := s.index.Upsert(ctx, note.ID, note.TenantID, clusterID, vec); err != nil {
			zap.L().Warn("Upsert note vector failed", zap.Uint("note_id", note.ID), zap.Error(err))
		}
	}

	zap.L().Info("Note classified",
		zap.Uint("note_id", note.ID),
		zap.Uint("cluster_id", clusterID),
		zap.String("pillar", result.Pillar),
	)
	return s.publication.Publish(ctx, note.ID)
}

var errAlreadyProcessed = errors.New("note already processed")

func (s *ClassifierService) refuse(ctx context.Context, note *models.Note) error {
	err := s.db.WithContext(ctx).Model(&models.Note{}).
		Where("id = ? AND status = ?", note.ID, models.NoteStatusPending).
		Updates(map[string]interface{}{
			"status":       models.NoteStatusRefused,
			"processed_at": s.now(),
		}).Error
	if err != nil {
		return transient("refuse note", err)
	}
	zap.L().Info("Note refused by classifier", zap.Uint("note_id", note.ID))
	return nil
}

// assignCluster 加入相似 Note 所在的聚类，没有则新建
func (s *ClassifierService) assignCluster(tx *gorm.DB, note *models.Note, neighbor *Neighbor, pillarID *uint, text string, now time.Time) (*models.Cluster, error) {
	if neighbor != nil && neighbor.ClusterID != 0 {
		var cluster models.Cluster
		err := tx.Where("id = ? AND tenant_id = ?", neighbor.ClusterID, note.TenantID).First(&cluster).Error
		if err == nil {
			err = tx.Model(&models.Cluster{}).Where("id = ?", cluster.ID).
				UpdateColumns(map[string]interface{}{
					"note_count":      gorm.Expr("note_count + 1"),
					"last_updated_at": now,
				}).Error
			return &cluster, err
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		zap.L().Warn("Neighbor cluster missing, creating a new one",
			zap.Uint("note_id", note.ID), zap.Uint("cluster_id", neighbor.ClusterID))
	}

	cluster := models.Cluster{
		TenantID:      note.TenantID,
		Title:         clusterTitle(text),
		PillarID:      pillarID,
		NoteCount:     1,
		LastUpdatedAt: now,
	}
	if err := tx.Create(&cluster).Error; err != nil {
		return nil, err
	}
	return &cluster, nil
}

// ensurePillar 名称为空时返回 nil
func ensurePillar(tx *gorm.DB, tenantID uint, name string) (*models.Pillar, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	pillar := models.Pillar{TenantID: tenantID, Name: name}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&pillar).Error; err != nil {
		return nil, err
	}
	var stored models.Pillar
	if err := tx.Where("tenant_id = ? AND name = ?", tenantID, name).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func clusterTitle(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= clusterTitleRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:clusterTitleRunes]) + "…"
}

func clampRelevance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
