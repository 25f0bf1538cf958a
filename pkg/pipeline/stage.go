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

import "context"

// StageResult reports one stage's outcome. Success is redundant with Err
// being nil, but kept explicit since it crosses into error-taxonomy-mapping
// code at the HTTP boundary where an extra nil check is easy to miss.
type StageResult struct {
	Success bool
	Err     error
}

// Stage is one step of the pipeline. Execute reads and writes pc in place;
// Name identifies the stage for logging, tracing, and per-config skip
// decisions.
type Stage interface {
	Name() string
	Execute(ctx context.Context, pc *Context) StageResult
}

func ok() StageResult   { return StageResult{Success: true} }
func fail(err error) StageResult { return StageResult{Success: false, Err: err} }
