package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskflow-ai/internal/config"
	mcperrors "taskflow-ai/internal/errors"
	"taskflow-ai/internal/logging"

	"github.com/qdrant/go-client/qdrant"
)

const (
	defaultQdrantCollection = "task_embeddings"
	defaultVectorSize       = 1536
	connectionStatusError   = "error"
)

// QdrantStore implements VectorStore on a Qdrant collection. Point ids are the
// task ids; the owner id is an integer payload field used as a search filter.
type QdrantStore struct {
	client         *qdrant.Client
	config         *config.QdrantConfig
	collectionName string
	vectorSize     int
	timeout        time.Duration
	logger         logging.Logger

	mu     sync.RWMutex
	status string
}

// NewQdrantStore creates a store. Initialize must be called before use.
func NewQdrantStore(cfg *config.QdrantConfig, vectorSize int, logger logging.Logger) *QdrantStore {
	collectionName := cfg.Collection
	if collectionName == "" {
		collectionName = defaultQdrantCollection
	}
	if vectorSize <= 0 {
		vectorSize = defaultVectorSize
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	var timeout time.Duration
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &QdrantStore{
		config:         cfg,
		collectionName: collectionName,
		vectorSize:     vectorSize,
		timeout:        timeout,
		logger:         logger.WithComponent("qdrant_store"),
		status:         "unknown",
	}
}

// Initialize connects and creates the collection if it doesn't exist
func (qs *QdrantStore) Initialize(ctx context.Context) error {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   qs.config.Host,
		Port:   qs.config.Port,
		APIKey: qs.config.APIKey,
		UseTLS: qs.config.UseTLS,
	})
	if err != nil {
		qs.setStatus(connectionStatusError)
		return mcperrors.WrapStorageError(fmt.Errorf("failed to create Qdrant client: %w", err), "initialize")
	}
	qs.client = client

	ctx, cancel := qs.withTimeout(ctx)
	defer cancel()

	exists, err := qs.client.CollectionExists(ctx, qs.collectionName)
	if err != nil {
		qs.setStatus(connectionStatusError)
		return mcperrors.WrapStorageError(fmt.Errorf("failed to check collection %s: %w", qs.collectionName, err), "initialize")
	}

	if !exists {
		err = qs.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: qs.collectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(qs.vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			qs.setStatus(connectionStatusError)
			return mcperrors.WrapStorageError(fmt.Errorf("failed to create collection %s: %w", qs.collectionName, err), "initialize")
		}
		qs.logger.Info("Created Qdrant collection", "collection", qs.collectionName, "vector_size", qs.vectorSize)
	}

	qs.setStatus("connected")
	qs.logger.Info("Qdrant collection initialized", "collection", qs.collectionName)
	return nil
}

// Upsert writes one point and waits for it to be indexed
func (qs *QdrantStore) Upsert(ctx context.Context, record Record) error {
	if qs.client == nil {
		return errNotInitialized
	}
	if len(record.Vector) != qs.vectorSize {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(record.Vector), qs.vectorSize)
	}

	ctx, cancel := qs.withTimeout(ctx)
	defer cancel()

	_, err := qs.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: qs.collectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         []*qdrant.PointStruct{recordToPoint(record)},
	})
	if err != nil {
		return mcperrors.WrapStorageError(fmt.Errorf("failed to upsert task %d: %w", record.TaskID, err), "upsert")
	}

	qs.logger.DebugContext(ctx, "Stored task embedding in Qdrant", "task_id", record.TaskID, "owner_id", record.OwnerID)
	return nil
}

// Search runs an owner-filtered query. Qdrant reports cosine similarity, which
// is converted to cosine distance.
func (qs *QdrantStore) Search(ctx context.Context, vector []float32, ownerID int64, k int) ([]SearchHit, error) {
	if k <= 0 {
		return []SearchHit{}, nil
	}
	if qs.client == nil {
		return nil, errNotInitialized
	}

	ctx, cancel := qs.withTimeout(ctx)
	defer cancel()

	points, err := qs.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: qs.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         ownerFilter(ownerID),
	})
	if err != nil {
		return nil, mcperrors.WrapStorageError(fmt.Errorf("failed to search in Qdrant: %w", err), "search")
	}

	hits := make([]SearchHit, 0, len(points))
	for _, point := range points {
		hits = append(hits, scoredPointToHit(point))
	}
	SortHits(hits)
	return hits, nil
}

// Delete removes the point for taskID. Qdrant treats missing ids as a no-op.
func (qs *QdrantStore) Delete(ctx context.Context, taskID int64) error {
	if qs.client == nil {
		return errNotInitialized
	}

	ctx, cancel := qs.withTimeout(ctx)
	defer cancel()

	_, err := qs.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: qs.collectionName,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{pointID(taskID)},
				},
			},
		},
	})
	if err != nil {
		return mcperrors.WrapStorageError(fmt.Errorf("failed to delete task %d: %w", taskID, err), "delete")
	}

	qs.logger.DebugContext(ctx, "Deleted task embedding from Qdrant", "task_id", taskID)
	return nil
}

// HealthCheck verifies the connection to Qdrant
func (qs *QdrantStore) HealthCheck(ctx context.Context) error {
	if qs.client == nil {
		return errNotInitialized
	}

	ctx, cancel := qs.withTimeout(ctx)
	defer cancel()

	if _, err := qs.client.HealthCheck(ctx); err != nil {
		qs.setStatus(connectionStatusError)
		return mcperrors.WrapStorageError(fmt.Errorf("qdrant health check failed: %w", err), "health_check")
	}
	qs.setStatus("healthy")
	return nil
}

// Close releases the gRPC connection
func (qs *QdrantStore) Close() error {
	if qs.client == nil {
		return nil
	}
	err := qs.client.Close()
	qs.setStatus("closed")
	qs.logger.Info("Qdrant connection closed")
	return err
}

// Status reports the last known connection state
func (qs *QdrantStore) Status() string {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	return qs.status
}

func (qs *QdrantStore) setStatus(s string) {
	qs.mu.Lock()
	qs.status = s
	qs.mu.Unlock()
}

func (qs *QdrantStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if qs.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, qs.timeout)
}

var errNotInitialized = errors.New("qdrant store not initialized")

// Helper methods

func pointID(taskID int64) *qdrant.PointId {
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Num{Num: uint64(taskID)}}
}

func ownerFilter(ownerID int64) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: PayloadOwnerID,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Integer{Integer: ownerID},
						},
					},
				},
			},
		},
	}
}

func recordToPoint(record Record) *qdrant.PointStruct {
	payload := make(map[string]*qdrant.Value, len(record.Metadata)+3)
	for k, v := range record.Metadata {
		payload[k] = toValue(v)
	}
	payload[PayloadOwnerID] = toValue(record.OwnerID)
	payload[PayloadTaskID] = toValue(record.TaskID)
	payload[PayloadDocument] = toValue(record.Text)

	return &qdrant.PointStruct{
		Id:      pointID(record.TaskID),
		Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: record.Vector}}},
		Payload: payload,
	}
}

func scoredPointToHit(point *qdrant.ScoredPoint) SearchHit {
	payload := point.GetPayload()
	metadata := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if k == PayloadDocument {
			continue
		}
		metadata[k] = fromValue(v)
	}

	return SearchHit{
		TaskID:   int64(point.GetId().GetNum()),
		Distance: 1 - float64(point.GetScore()),
		Text:     payload[PayloadDocument].GetStringValue(),
		Metadata: metadata,
	}
}

// toValue converts a metadata value into a Qdrant payload value. Unknown types
// are stored as their string form.
func toValue(v interface{}) *qdrant.Value {
	switch t := v.(type) {
	case nil:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{NullValue: qdrant.NullValue_NULL_VALUE}}
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: t}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: t}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(t)}}
	case int32:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(t)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: t}}
	case float32:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(t)}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: t}}
	case *float64:
		if t == nil {
			return toValue(nil)
		}
		return toValue(*t)
	case []string:
		values := make([]*qdrant.Value, len(t))
		for i, s := range t {
			values[i] = toValue(s)
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
	case []interface{}:
		values := make([]*qdrant.Value, len(t))
		for i, item := range t {
			values[i] = toValue(item)
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprintf("%v", t)}}
	}
}

func fromValue(v *qdrant.Value) interface{} {
	if v == nil {
		return nil
	}
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_ListValue:
		items := k.ListValue.GetValues()
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = fromValue(item)
		}
		return out
	case *qdrant.Value_StructValue:
		fields := k.StructValue.GetFields()
		out := make(map[string]interface{}, len(fields))
		for name, item := range fields {
			out[name] = fromValue(item)
		}
		return out
	default:
		return nil
	}
}
