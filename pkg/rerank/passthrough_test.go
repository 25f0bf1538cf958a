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

package rerank

import (
	"context"
	"testing"

	"github.com/kadirpekel/ragcore/pkg/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassthroughPreservesOrderAndTruncates(t *testing.T) {
	hits := []vectorstore.Hit{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	out, err := Passthrough{}.Rerank(context.Background(), "query", hits, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestPassthroughKeepsAllWhenTopKNotLimiting(t *testing.T) {
	hits := []vectorstore.Hit{{ID: "a"}, {ID: "b"}}
	out, err := Passthrough{}.Rerank(context.Background(), "query", hits, 0)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
