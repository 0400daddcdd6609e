package queue

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Client is the durable job store behind the delayed-job trigger. It
// implements service.DispatchScheduler.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewClient(redisConn asynq.RedisClientOpt) *Client {
	return &Client{
		client:    asynq.NewClient(redisConn),
		inspector: asynq.NewInspector(redisConn),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Schedule enqueues the post's dispatch job to fire after delay. Any
// previous job for the same post is replaced, which makes rescheduling
// a plain Schedule call. MaxRetry is zero on purpose: retry bookkeeping
// belongs to the publish orchestrator, not the queue runtime.
func (c *Client) Schedule(postID int64, delay time.Duration) error {
	taskPayload, err := json.Marshal(PublishPostPayload{PostID: postID})
	if err != nil {
		return err
	}

	if err := c.Cancel(postID); err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)

	_, err = c.client.Enqueue(task,
		asynq.ProcessIn(delay),
		asynq.TaskID(taskID(postID)),
		asynq.Queue(publishQueue),
		asynq.MaxRetry(0),
	)
	if err != nil {
		return err
	}

	slog.Info("dispatch job scheduled", "post_id", postID, "delay", delay.String())
	return nil
}

// Cancel removes the post's pending job. A job that already fired or
// never existed is not an error.
func (c *Client) Cancel(postID int64) error {
	err := c.inspector.DeleteTask(publishQueue, taskID(postID))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil
		}
		return err
	}

	slog.Info("dispatch job removed", "post_id", postID)
	return nil
}
