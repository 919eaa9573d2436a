// Package vectorstore keeps embedded file chunks in Qdrant.
package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/devforge-org/devforge-backend/internal/config"
	"github.com/devforge-org/devforge-backend/internal/logger"
)

const (
	ChunkSize    = 1200
	ChunkOverlap = 200
)

type Match struct {
	FileID uuid.UUID `json:"fileId"`
	Chunk  int       `json:"chunk"`
	Text   string    `json:"text"`
	Score  float32   `json:"score"`
}

// Store is what the file and chat services need from the index.
type Store interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, userID, fileID uuid.UUID, chunks []string, vectors [][]float32) error
	Query(ctx context.Context, userID uuid.UUID, fileIDs []uuid.UUID, vector []float32, topK uint64) ([]Match, error)
	DeleteFile(ctx context.Context, fileID uuid.UUID) error
	Close() error
}

type qdrantStore struct {
	client     *qdrant.Client
	collection string
	dimensions uint64
	log        *logger.Logger
}

func NewQdrant(cfg config.VectorConfig, log *logger.Logger) (Store, error) {
	host, port := parseHostPort(cfg.QdrantAddr, "localhost", 6334)
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	return &qdrantStore{
		client:     client,
		collection: cfg.Collection,
		dimensions: uint64(cfg.EmbeddingDimensions),
		log:        log.With("store", "Qdrant"),
	}, nil
}

func parseHostPort(addr string, defaultHost string, defaultPort int) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		if addr != "" {
			return addr, defaultPort
		}
		return defaultHost, defaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, defaultPort
	}
	return host, port
}

func (s *qdrantStore) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, c := range collections {
		if c == s.collection {
			s.log.Debug("Qdrant collection exists", "collection", s.collection)
			return nil
		}
	}
	s.log.Info("Creating Qdrant collection now...", "collection", s.collection, "dimensions", s.dimensions)
	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// PointID is stable per (file, chunk) so re-indexing overwrites.
func PointID(fileID uuid.UUID, chunk int) string {
	return uuid.NewSHA1(fileID, []byte(strconv.Itoa(chunk))).String()
}

func (s *qdrantStore) Upsert(ctx context.Context, userID, fileID uuid.UUID, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, text := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(fileID, i)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"fileId": fileID.String(),
				"userId": userID.String(),
				"chunk":  int64(i),
				"text":   text,
			}),
		})
	}
	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	s.log.Debug("Upserted file chunks", "fileId", fileID, "count", len(points))
	return nil
}

func (s *qdrantStore) Query(ctx context.Context, userID uuid.UUID, fileIDs []uuid.UUID, vector []float32, topK uint64) ([]Match, error) {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch("userId", userID.String())}}
	if len(fileIDs) > 0 {
		ids := make([]string, 0, len(fileIDs))
		for _, id := range fileIDs {
			ids = append(ids, id.String())
		}
		filter.Must = append(filter.Must, qdrant.NewMatchKeywords("fileId", ids...))
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &topK,
		Filter:         filter,
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}
	out := make([]Match, 0, len(points))
	for _, p := range points {
		fid, err := uuid.Parse(p.Payload["fileId"].GetStringValue())
		if err != nil {
			continue
		}
		out = append(out, Match{
			FileID: fid,
			Chunk:  int(p.Payload["chunk"].GetIntegerValue()),
			Text:   p.Payload["text"].GetStringValue(),
			Score:  p.GetScore(),
		})
	}
	return out, nil
}

func (s *qdrantStore) DeleteFile(ctx context.Context, fileID uuid.UUID) error {
	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("fileId", fileID.String())},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

func (s *qdrantStore) Close() error {
	return s.client.Close()
}

// ChunkText splits text into windows of size runes that overlap by overlap
// runes. Whitespace-only input yields no chunks.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = ChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	if len(runes) == 0 || len(strings.TrimSpace(text)) == 0 {
		return nil
	}
	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
