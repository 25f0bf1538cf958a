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

package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInStagedRolloutBoundaries(t *testing.T) {
	assert.False(t, InStagedRollout("user-1", 0))
	assert.True(t, InStagedRollout("user-1", 100))
}

func TestInStagedRolloutStable(t *testing.T) {
	for _, pct := range []int{10, 50, 90} {
		first := InStagedRollout("stable-user", pct)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, InStagedRollout("stable-user", pct))
		}
	}
}

func TestInStagedRolloutApproximatesPercentage(t *testing.T) {
	const pct = 30
	in := 0
	const total = 2000
	for i := 0; i < total; i++ {
		if InStagedRollout(fmt.Sprintf("user-%d", i), pct) {
			in++
		}
	}
	ratio := float64(in) / float64(total)
	assert.InDelta(t, 0.30, ratio, 0.05)
}
