package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/adcraft/postpilot/internal/service"
)

// Worker consumes dispatch jobs and hands each post to the publish
// orchestrator. Jobs for different posts may run concurrently; the
// claim inside the orchestrator serializes work on any single post.
type Worker struct {
	pub service.PublisherService
}

func NewWorker(pub service.PublisherService) *Worker {
	return &Worker{pub: pub}
}

func (w *Worker) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	// Attempt failures are absorbed by the orchestrator's state
	// machine; an error here means the outcome could not be recorded.
	if err := w.pub.PublishPost(ctx, payload.PostID); err != nil {
		slog.Error("dispatch job failed to record outcome", "post_id", payload.PostID, "err", err.Error())
	}

	return nil
}
