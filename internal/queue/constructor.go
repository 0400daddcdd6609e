package queue

import "fmt"

const TaskTypePublishPost = "publish:post"

// publishQueue is the asynq queue all dispatch jobs live on.
const publishQueue = "default"

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}

// taskID keys the durable job by post id, so a post has at most one
// pending job and cancellation can address it without a lookup table.
func taskID(postID int64) string {
	return fmt.Sprintf("%s:%d", TaskTypePublishPost, postID)
}
