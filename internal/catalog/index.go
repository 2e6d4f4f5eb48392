// Package catalog keeps a Qdrant vector index of the product catalogue so
// products can be found by description rather than exact name.
package catalog

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/ashutoshrp06/parcel-agent/internal/types"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// Embedder turns texts into vectors, one per input in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// vectorStore is the subset of *qdrant.Client the index uses.
type vectorStore interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// Config holds index configuration.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
	Dimension  int
}

// Match is one scored search hit.
type Match struct {
	ProductID   int64   `json:"product_id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Score       float32 `json:"score"`
}

// Index handles product indexing and search against a Qdrant collection.
type Index struct {
	store      vectorStore
	embedder   Embedder
	collection string
	dimension  int
	logger     *zap.Logger
}

// NewIndex connects to Qdrant.
func NewIndex(cfg Config, embedder Embedder, logger *zap.Logger) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return newIndex(client, embedder, cfg, logger), nil
}

func newIndex(store vectorStore, embedder Embedder, cfg Config, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{
		store:      store,
		embedder:   embedder,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		logger:     logger,
	}
}

// Sync creates the collection if needed and upserts one point per product,
// keyed by product ID. Returns the number of points written.
func (ix *Index) Sync(ctx context.Context, products []types.Product) (int, error) {
	if err := ix.ensureCollection(ctx); err != nil {
		return 0, err
	}
	if len(products) == 0 {
		return 0, nil
	}

	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = productText(p)
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed products: %w", err)
	}
	if len(vectors) != len(products) {
		return 0, fmt.Errorf("expected %d embeddings, got %d", len(products), len(vectors))
	}

	points := make([]*qdrant.PointStruct, len(products))
	for i, p := range products {
		if ix.dimension > 0 && len(vectors[i]) != ix.dimension {
			return 0, fmt.Errorf("product %d: embedding has %d dimensions, collection expects %d",
				p.ID, len(vectors[i]), ix.dimension)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(p.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"product_id":  p.ID,
				"name":        p.Name,
				"description": p.Description,
				"price":       float64(p.Price),
			}),
		}
	}

	wait := true
	if _, err := ix.store.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ix.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return 0, fmt.Errorf("Qdrant upsert failed: %w", err)
	}

	ix.logger.Info("Catalog synced",
		zap.String("collection", ix.collection),
		zap.Int("products", len(points)))
	return len(points), nil
}

// Search embeds query and returns up to topK products scoring at least
// minScore.
func (ix *Index) Search(ctx context.Context, query string, topK int, minScore float32) ([]Match, error) {
	if topK <= 0 {
		topK = 5
	}

	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}

	limit := uint64(topK)
	results, err := ix.store.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ix.collection,
		Query:          qdrant.NewQuery(vectors[0]...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: &minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("Qdrant search failed: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		m := Match{Score: r.GetScore()}
		if id := r.GetId(); id != nil {
			m.ProductID = int64(id.GetNum())
		}
		if p := r.GetPayload(); p != nil {
			m.Name = p["name"].GetStringValue()
			m.Description = p["description"].GetStringValue()
			m.Price = p["price"].GetDoubleValue()
		}
		matches = append(matches, m)
	}

	ix.logger.Debug("Catalog search completed",
		zap.Int("results", len(matches)),
		zap.String("query_preview", truncate(query, 50)),
		zap.Float32("min_score", minScore))

	return matches, nil
}

// Close releases the Qdrant connection.
func (ix *Index) Close() error {
	return ix.store.Close()
}

// Collection returns the configured collection name.
func (ix *Index) Collection() string {
	return ix.collection
}

func (ix *Index) ensureCollection(ctx context.Context) error {
	exists, err := ix.store.CollectionExists(ctx, ix.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", ix.collection, err)
	}
	if exists {
		return nil
	}
	if ix.dimension <= 0 {
		return fmt.Errorf("collection %s does not exist and no dimension is configured", ix.collection)
	}

	if err := ix.store.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: ix.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(ix.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("create collection %s: %w", ix.collection, err)
	}

	ix.logger.Info("Created catalog collection",
		zap.String("collection", ix.collection),
		zap.Int("dimension", ix.dimension))
	return nil
}

func productText(p types.Product) string {
	if p.Description == "" {
		return p.Name
	}
	return p.Name + ": " + p.Description
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
