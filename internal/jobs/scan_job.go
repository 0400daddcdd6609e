package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/adcraft/postpilot/internal/repository"
	"github.com/adcraft/postpilot/internal/service"
)

const (
	// scanBatchSize caps how many due posts one sweep processes.
	scanBatchSize = 5
	// interPostDelay spaces publishes out against the platform's
	// per-minute rate limits.
	interPostDelay = 2 * time.Second
)

// ScanJob is the coarse dispatch trigger: a fixed-interval sweep over
// every due post still in scheduled state. It needs nothing beyond the
// database, which makes it the safety net when job enqueueing fails.
type ScanJob struct {
	pr    repository.PostRepository
	pub   service.PublisherService
	batch int
	pause time.Duration
}

func NewScanJob(pr repository.PostRepository, pub service.PublisherService) *ScanJob {
	return &ScanJob{
		pr:    pr,
		pub:   pub,
		batch: scanBatchSize,
		pause: interPostDelay,
	}
}

// Run is the cron entry point.
func (j *ScanJob) Run() {
	if err := j.Scan(context.Background()); err != nil {
		slog.Info("due-post scan failed", "err", err.Error())
	}
}

// Scan publishes due posts sequentially. Sequential on purpose: the
// batch shares the platform's rate limits, so a slow post delaying the
// rest is the accepted trade. Stragglers are picked up on the next
// tick.
func (j *ScanJob) Scan(ctx context.Context) error {
	due, err := j.pr.ListDue(ctx, time.Now().UnixMilli(), j.batch)
	if err != nil {
		return err
	}

	if len(due) == 0 {
		return nil
	}

	slog.Info("due-post scan", "count", len(due))

	for i, post := range due {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(j.pause):
			}
		}

		// PublishPost absorbs attempt failures into the post's state;
		// an error here is an infrastructure failure, and the next
		// sweep retries anyway.
		if err := j.pub.PublishPost(ctx, post.ID); err != nil {
			slog.Info("scan failed to process post", "post_id", post.ID, "err", err.Error())
		}
	}

	return nil
}
