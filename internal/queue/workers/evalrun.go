package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/promptdeck/promptdeck/internal/eval"
	"github.com/promptdeck/promptdeck/internal/queue"
)

// EvalRunWorker consumes eval:run tasks and records the resulting score.
type EvalRunWorker struct {
	runner *eval.Runner
}

func NewEvalRunWorker(runner *eval.Runner) *EvalRunWorker {
	return &EvalRunWorker{runner: runner}
}

func (w *EvalRunWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.EvalRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal eval run payload: %w", err)
	}

	e, err := w.runner.Run(ctx, eval.RunParams{
		PromptID: payload.PromptID,
		Version:  payload.Version,
		Model:    payload.Model,
		RunBy:    payload.RunBy,
	})
	if err != nil {
		return fmt.Errorf("eval run %s v%d: %w", payload.PromptID, payload.Version, err)
	}

	slog.Info("eval recorded",
		"prompt_id", payload.PromptID,
		"version", payload.Version,
		"model", payload.Model,
		"score", e.Score,
	)
	return nil
}
