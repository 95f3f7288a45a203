// Package main implements the feature index build tool: it embeds every
// product feature and loads the vectors into both the relational store and
// the Qdrant collection the classifier searches.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vrtlab/revmine/engine/classify"
	"github.com/vrtlab/revmine/engine/config"
	"github.com/vrtlab/revmine/engine/store"
	"github.com/vrtlab/revmine/pkg/embed"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rebuild := flag.Bool("rebuild", false, "re-embed features that already have a stored vector")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		logger.Error("loading configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, *rebuild, logger); err != nil {
		logger.Error("index build failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, rebuild bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.InitDB(store.DBConfig(cfg.Database), logger)
	if err != nil {
		return err
	}
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	st := store.New(db)
	defer st.Close()

	index, err := classify.NewFeatureIndex(cfg.Qdrant.URL, cfg.Qdrant.Collection)
	if err != nil {
		return err
	}
	defer index.Close()

	embedder := embed.New(embed.Opts{BaseURL: cfg.Embed.URL, Model: cfg.Embed.Model})

	features, err := st.Feature().List(ctx)
	if err != nil {
		return err
	}
	if len(features) == 0 {
		return fmt.Errorf("no product features in the store; seed the taxonomy first")
	}

	points := make([]classify.FeaturePoint, 0, len(features))
	embedded := 0
	for _, f := range features {
		vector, fresh, err := featureVector(ctx, embedder, f, rebuild)
		if err != nil {
			return fmt.Errorf("embedding feature %s: %w", f.Code, err)
		}
		if fresh {
			blob, _ := json.Marshal(vector)
			if err := st.Feature().SaveEmbedding(ctx, f.ID, string(blob)); err != nil {
				return err
			}
			embedded++
		}
		points = append(points, classify.FeaturePoint{
			FeatureID: f.ID,
			Code:      f.Code,
			Name:      f.Name,
			Vector:    vector,
		})
	}

	if err := index.EnsureCollection(ctx, len(points[0].Vector)); err != nil {
		return err
	}
	if err := index.UpsertFeatures(ctx, points); err != nil {
		return err
	}

	logger.Info("feature index built",
		"features", len(points),
		"embedded", embedded,
		"reused", len(points)-embedded,
		"collection", cfg.Qdrant.Collection)
	return nil
}

// featureVector returns the feature's vector, reusing the stored one unless
// rebuild is set. fresh reports whether a new embedding was computed.
func featureVector(ctx context.Context, embedder *embed.Client, f store.ProductFeature, rebuild bool) ([]float32, bool, error) {
	if !rebuild && f.Embedding != "" {
		var vector []float32
		if err := json.Unmarshal([]byte(f.Embedding), &vector); err == nil && len(vector) > 0 {
			return vector, false, nil
		}
		// Malformed stored vector: fall through and re-embed.
	}

	vector, err := embedder.Embed(ctx, embedText(f))
	if err != nil {
		return nil, false, err
	}
	return vector, true, nil
}

// embedText builds the embedding prompt from name and description so near
// synonyms in review language land close to the right taxonomy node.
func embedText(f store.ProductFeature) string {
	if f.Description == "" {
		return f.Name
	}
	return strings.Join([]string{f.Name, f.Description}, "\n")
}
