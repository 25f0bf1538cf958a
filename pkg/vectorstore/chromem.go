// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
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
	"log/slog"
	"os"
	"runtime"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemProvider implements Provider with chromem-go's embedded, in-process
// store. It needs no external service, making it the default backend for
// local development and tests; production deployments should point at
// Qdrant or Pinecone instead.
//
// Adapted from the legacy vector/chromem.go provider.
type ChromemProvider struct {
	db          *chromem.DB
	persistPath string

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// ChromemConfig configures the embedded provider.
type ChromemConfig struct {
	// PersistPath, if set, gob-persists the database to this directory
	// after every mutation. Empty means memory-only.
	PersistPath string `yaml:"persist_path,omitempty"`
}

// NewChromemProvider opens (or creates) the embedded database.
func NewChromemProvider(cfg ChromemConfig) (*ChromemProvider, error) {
	var db *chromem.DB

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0o755); err != nil {
			return nil, fmt.Errorf("create persist directory %s: %w", cfg.PersistPath, err)
		}
		dbPath := cfg.PersistPath + "/vectors.gob"
		if _, err := os.Stat(dbPath); err == nil {
			loaded, err := chromem.NewPersistentDB(dbPath, false)
			if err != nil {
				slog.Warn("failed to load persisted vector database, starting fresh", "path", dbPath, "error", err)
				db = chromem.NewDB()
			} else {
				db = loaded
			}
		} else {
			db = chromem.NewDB()
		}
	} else {
		db = chromem.NewDB()
	}

	return &ChromemProvider{db: db, persistPath: cfg.PersistPath, collections: make(map[string]*chromem.Collection)}, nil
}

func (p *ChromemProvider) Name() string { return "chromem" }

// identityEmbed always errors: every vector handed to this provider is
// already computed by the embedding model, so chromem's own embedding hook
// must never be invoked.
func identityEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("chromem: embedding function invoked but vectors are supplied pre-computed")
}

func (p *ChromemProvider) getCollection(name string) (*chromem.Collection, error) {
	p.mu.RLock()
	if col, ok := p.collections[name]; ok {
		p.mu.RUnlock()
		return col, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if col, ok := p.collections[name]; ok {
		return col, nil
	}
	col, err := p.db.GetOrCreateCollection(name, nil, identityEmbed)
	if err != nil {
		return nil, fmt.Errorf("get/create collection %q: %w", name, err)
	}
	p.collections[name] = col
	return col, nil
}

func (p *ChromemProvider) EnsureCollection(ctx context.Context, collection string, dim int) error {
	_, err := p.getCollection(collection)
	return err
}

func (p *ChromemProvider) Upsert(ctx context.Context, collection string, records []Record) error {
	col, err := p.getCollection(collection)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(records))
	for _, rec := range records {
		strMeta := make(map[string]string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			strMeta[k] = fmt.Sprint(v)
		}
		docs = append(docs, chromem.Document{
			ID:        rec.ID,
			Content:   rec.Content,
			Metadata:  strMeta,
			Embedding: rec.Vector,
		})
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("upsert %d documents into %s: %w", len(docs), collection, err)
	}
	if err := p.persist(); err != nil {
		slog.Warn("failed to persist vector database after upsert", "error", err)
	}
	return nil
}

func (p *ChromemProvider) Search(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Hit, error) {
	col, err := p.getCollection(collection)
	if err != nil {
		return nil, err
	}

	var whereFilter map[string]string
	if len(filter) > 0 {
		whereFilter = make(map[string]string, len(filter))
		for k, v := range filter {
			whereFilter[k] = fmt.Sprint(v)
		}
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, whereFilter, nil)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		metadata := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = v
		}
		hits = append(hits, Hit{ID: r.ID, Score: r.Similarity, Content: r.Content, Metadata: metadata})
	}
	SortHits(hits)
	return hits, nil
}

func (p *ChromemProvider) Delete(ctx context.Context, collection string, ids []string) error {
	col, err := p.getCollection(collection)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete %d documents from %s: %w", len(ids), collection, err)
	}
	return p.persist()
}

func (p *ChromemProvider) persist() error {
	if p.persistPath == "" {
		return nil
	}
	//nolint:staticcheck // Export is deprecated upstream but still the only
	// full-database snapshot API chromem-go exposes.
	if err := p.db.Export(p.persistPath+"/vectors.gob", false, ""); err != nil {
		return fmt.Errorf("persist vector database: %w", err)
	}
	return nil
}

var _ Provider = (*ChromemProvider)(nil)
