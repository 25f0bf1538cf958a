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

import "hash/fnv"

// InStagedRollout decides whether userID falls inside a percentage-based
// staged-path rollout, via a stable hash of the user id rather than
// randomness — the same user always lands on the same side of the gate for
// a given percentage, so a request doesn't flip paths between retries.
//
// percentage is clamped to [0, 100]. 0 means nobody uses the staged path
// (everyone stays on the legacy monolithic path); 100 means everybody does.
func InStagedRollout(userID string, percentage int) bool {
	if percentage <= 0 {
		return false
	}
	if percentage >= 100 {
		return true
	}
	h := fnv.New32a()
	h.Write([]byte(userID))
	return int(h.Sum32()%100) < percentage
}
