// Package vector Note 向量索引，用于把新 Note 归入相似的聚类
package vector

import (
	"context"
	"fmt"
	"ideafeed/internal/config"
	"ideafeed/internal/services"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type QdrantIndex struct {
	client    *qdrant.Client
	col       string
	size      uint64
	threshold float32 // 相似度低于该值时视为没有邻居
}

func NewQdrantIndex(cfg *config.Config) (*QdrantIndex, error) {
	qcfg := &qdrant.Config{
		Host: cfg.QdrantHost,
		Port: cfg.QdrantPort,
	}
	if cfg.QdrantAPIKey != "" {
		qcfg.APIKey = cfg.QdrantAPIKey
		qcfg.UseTLS = false // 内网部署
	}
	if !qcfg.UseTLS {
		qcfg.GrpcOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		}
	}

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}

	idx := &QdrantIndex{
		client:    client,
		col:       cfg.QdrantCollection,
		size:      cfg.VectorSize,
		threshold: cfg.ClusterSimilarity,
	}
	if err := idx.ensureCollection(context.Background()); err != nil {
		client.Close()
		return nil, err
	}
	return idx, nil
}

// ensureCollection 不存在就创建
func (s *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.col)
	if err != nil {
		return fmt.Errorf("check qdrant collection: %w", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.col,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.size,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create qdrant collection: %w", err)
	}
	zap.L().Info("Qdrant collection created", zap.String("collection", s.col), zap.Uint64("size", s.size))
	return nil
}

// Upsert 以 Note ID 为点 ID 存入向量，payload 带租户和聚类
func (s *QdrantIndex) Upsert(ctx context.Context, noteID, tenantID, clusterID uint, vec []float32) error {
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.col,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(uint64(noteID)),
				Vectors: qdrant.NewVectors(vec...),
				Payload: notePayload(tenantID, clusterID),
			},
		},
	})
	return err
}

// Nearest 同租户内最相似且超过阈值的一条，没有时返回 nil
func (s *QdrantIndex) Nearest(ctx context.Context, tenantID uint, vec []float32) (*services.Neighbor, error) {
	limit := uint64(1)
	threshold := s.threshold
	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.col,
		Query:          qdrant.NewQuery(vec...),
		Filter:         tenantFilter(tenantID),
		Limit:          &limit,
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	for _, point := range res {
		if n := neighborFrom(point); n != nil {
			return n, nil
		}
	}
	return nil, nil
}

func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

func notePayload(tenantID, clusterID uint) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		"tenant_id":  {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(tenantID)}},
		"cluster_id": {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(clusterID)}},
	}
}

// tenantFilter tenant_id 必须匹配，向量检索不跨租户
func tenantFilter(tenantID uint) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: "tenant_id",
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Integer{Integer: int64(tenantID)},
						},
					},
				},
			},
		},
	}
}

func neighborFrom(point *qdrant.ScoredPoint) *services.Neighbor {
	if point == nil || point.Id == nil {
		return nil
	}
	numID, ok := point.Id.PointIdOptions.(*qdrant.PointId_Num)
	if !ok {
		return nil
	}
	clusterID := point.Payload["cluster_id"].GetIntegerValue()
	if clusterID <= 0 {
		return nil
	}
	return &services.Neighbor{
		NoteID:    uint(numID.Num),
		ClusterID: uint(clusterID),
		Score:     point.Score,
	}
}
