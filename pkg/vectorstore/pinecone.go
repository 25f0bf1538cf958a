// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vectorstore

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeConfig configures the Pinecone-backed Provider.
//
// Adapted from the legacy databases/pinecone.go vector adapter.
type PineconeConfig struct {
	APIKey    string `yaml:"api_key"`
	Host      string `yaml:"host,omitempty"`
	IndexName string `yaml:"index_name"`
}

// PineconeProvider implements Provider against a managed Pinecone index.
// Unlike Qdrant, Pinecone indexes must already exist — EnsureCollection
// only verifies that, it never creates one, since index creation on
// Pinecone is a control-plane operation with its own dimension and metric
// choices that this package shouldn't make silently.
type PineconeProvider struct {
	client    *pinecone.Client
	indexName string
}

// NewPineconeProvider authenticates against the Pinecone control plane.
func NewPineconeProvider(cfg PineconeConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone: api_key is required")
	}
	params := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.Host != "" {
		params.Host = cfg.Host
	}
	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("create pinecone client: %w", err)
	}
	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "ragcore-index"
	}
	return &PineconeProvider{client: client, indexName: indexName}, nil
}

func (p *PineconeProvider) Name() string { return "pinecone" }

func (p *PineconeProvider) resolveIndex(collection string) string {
	if collection != "" {
		return collection
	}
	return p.indexName
}

func (p *PineconeProvider) connect(ctx context.Context, indexName string) (*pinecone.IndexConnection, error) {
	index, err := p.client.DescribeIndex(ctx, indexName)
	if err != nil {
		return nil, fmt.Errorf("describe index %s: %w", indexName, err)
	}
	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: index.Host})
	if err != nil {
		return nil, fmt.Errorf("connect to index %s: %w", indexName, err)
	}
	return conn, nil
}

func (p *PineconeProvider) EnsureCollection(ctx context.Context, collection string, dim int) error {
	indexName := p.resolveIndex(collection)
	indexes, err := p.client.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx.Name == indexName {
			return nil
		}
	}
	return fmt.Errorf("pinecone index %q does not exist; create it via the Pinecone console or API before use", indexName)
}

func (p *PineconeProvider) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	conn, err := p.connect(ctx, p.resolveIndex(collection))
	if err != nil {
		return err
	}
	defer conn.Close()

	vectors := make([]*pinecone.Vector, 0, len(records))
	for _, rec := range records {
		metadata := make(map[string]interface{}, len(rec.Metadata)+1)
		for k, v := range rec.Metadata {
			metadata[k] = v
		}
		metadata["content"] = rec.Content
		meta, err := structpb.NewStruct(metadata)
		if err != nil {
			return fmt.Errorf("convert metadata for %s: %w", rec.ID, err)
		}
		vectors = append(vectors, &pinecone.Vector{Id: rec.ID, Values: rec.Vector, Metadata: meta})
	}

	if _, err := conn.UpsertVectors(ctx, vectors); err != nil {
		return fmt.Errorf("upsert %d vectors into %s: %w", len(vectors), collection, err)
	}
	return nil
}

func (p *PineconeProvider) Search(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Hit, error) {
	conn, err := p.connect(ctx, p.resolveIndex(collection))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var metadataFilter *pinecone.MetadataFilter
	if len(filter) > 0 {
		filterMap := make(map[string]interface{}, len(filter))
		for k, v := range filter {
			filterMap[k] = v
		}
		metadataFilter, err = structpb.NewStruct(filterMap)
		if err != nil {
			return nil, fmt.Errorf("convert filter: %w", err)
		}
	}

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		MetadataFilter:  metadataFilter,
		IncludeMetadata: true,
		IncludeValues:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	hits := convertMatches(resp.Matches)
	SortHits(hits)
	return hits, nil
}

func (p *PineconeProvider) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	conn, err := p.connect(ctx, p.resolveIndex(collection))
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.DeleteVectorsById(ctx, ids); err != nil {
		return fmt.Errorf("delete %d vectors from %s: %w", len(ids), collection, err)
	}
	return nil
}

func convertMatches(matches []*pinecone.ScoredVector) []Hit {
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		if m.Vector == nil {
			continue
		}
		metadata := make(map[string]any)
		content := ""
		if m.Vector.Metadata != nil {
			for k, v := range m.Vector.Metadata.AsMap() {
				if k == "content" {
					if s, ok := v.(string); ok {
						content = s
						continue
					}
				}
				metadata[k] = v
			}
		}
		hits = append(hits, Hit{
			ID:       m.Vector.Id,
			Content:  content,
			Vector:   m.Vector.Values,
			Metadata: metadata,
			Score:    m.Score,
		})
	}
	return hits
}

var _ Provider = (*PineconeProvider)(nil)
