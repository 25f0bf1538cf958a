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
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ragcore/pipeline")

// skippable is implemented by stages that can be disabled per pipeline via
// config_metadata (Reranking and Reasoning; QueryEnhancement/Retrieval/
// Generation/Evaluation always run).
type skippable interface {
	Skip(pc *Context) bool
}

// Executor runs a fixed, ordered list of stages against one Context,
// stopping at the first stage that fails.
type Executor struct {
	stages []Stage
}

// NewExecutor builds an Executor that runs stages in the order given. The
// service facade passes the six-stage pipeline: QueryEnhancement ->
// Retrieval -> Reranking -> Reasoning -> Generation -> Evaluation; tests
// pass shorter stage lists.
func NewExecutor(stages ...Stage) *Executor {
	return &Executor{stages: stages}
}

// Run executes every stage in order against pc, short-circuiting and
// returning the failing stage's error as soon as one reports failure. Each
// stage's wall time is recorded into pc.StageDurations and logged, and each
// stage runs inside its own OpenTelemetry span.
func (e *Executor) Run(ctx context.Context, pc *Context) error {
	total := time.Now()
	for _, stage := range e.stages {
		if sk, ok := stage.(skippable); ok && sk.Skip(pc) {
			slog.Debug("pipeline stage skipped", "stage", stage.Name())
			continue
		}

		ctx, span := tracer.Start(ctx, "pipeline."+stage.Name())
		start := time.Now()
		result := stage.Execute(ctx, pc)
		elapsed := time.Since(start)
		pc.StageDurations[stage.Name()] = elapsed

		if result.Err != nil {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Err.Error())
		}
		span.SetAttributes(attribute.Int64("duration_ms", elapsed.Milliseconds()))
		span.End()

		slog.Info("pipeline stage complete", "stage", stage.Name(), "duration_ms", elapsed.Milliseconds(), "success", result.Success)

		if !result.Success {
			slog.Error("pipeline stage failed", "stage", stage.Name(), "error", result.Err)
			return result.Err
		}
	}
	pc.StageDurations["total"] = time.Since(total)
	return nil
}
