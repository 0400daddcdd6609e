package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/adcraft/postpilot/internal/models"
)

// Stateful in-memory PostRepository. The claim honors the same
// conditional-update contract as the SQL implementation: it only
// succeeds from scheduled state and increments the attempt counter in
// the same step.
type fakePostRepo struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]*models.Post
	due    []*models.Post

	claimCalls int
	published  map[int64]string
	failed     map[int64]string
	reverted   map[int64]string
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{
		nextID:    1,
		posts:     make(map[int64]*models.Post),
		published: make(map[int64]string),
		failed:    make(map[int64]string),
		reverted:  make(map[int64]string),
	}
}

func (f *fakePostRepo) add(post *models.Post) *models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	if post.ID == 0 {
		post.ID = f.nextID
		f.nextID++
	}
	f.posts[post.ID] = post
	return post
}

func (f *fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	return f.add(post).ID, nil
}

func (f *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return nil, nil
	}
	copied := *post
	return &copied, nil
}

func (f *fakePostRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var posts []*models.Post
	for _, post := range f.posts {
		if post.UserID == userID {
			copied := *post
			posts = append(posts, &copied)
		}
	}
	return posts, nil
}

func (f *fakePostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[postID]
	return ok && post.UserID == userID, nil
}

func (f *fakePostRepo) ListDue(ctx context.Context, nowMillis int64, limit int) ([]*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	due := f.due
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *fakePostRepo) ClaimForPublish(ctx context.Context, id int64) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimCalls++
	post, ok := f.posts[id]
	if !ok || post.Status != models.PostStatusScheduled {
		return nil, nil
	}
	post.Status = models.PostStatusPublishing
	post.PublishAttempts++
	post.LastAttemptAt = sql.NullTime{Time: time.Now(), Valid: true}
	copied := *post
	return &copied, nil
}

func (f *fakePostRepo) MarkPublished(ctx context.Context, id int64, mediaID string, publishedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if post, ok := f.posts[id]; ok && post.Status == models.PostStatusPublishing {
		post.Status = models.PostStatusPublished
		post.PlatformMediaID = sql.NullString{String: mediaID, Valid: true}
		post.PublishedAt = sql.NullTime{Time: publishedAt, Valid: true}
		f.published[id] = mediaID
	}
	return nil
}

func (f *fakePostRepo) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if post, ok := f.posts[id]; ok && post.Status == models.PostStatusPublishing {
		post.Status = models.PostStatusFailed
		post.ErrorMessage = sql.NullString{String: errMsg, Valid: true}
		f.failed[id] = errMsg
	}
	return nil
}

func (f *fakePostRepo) RevertToScheduled(ctx context.Context, id int64, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if post, ok := f.posts[id]; ok && post.Status == models.PostStatusPublishing {
		post.Status = models.PostStatusScheduled
		post.ErrorMessage = sql.NullString{String: errMsg, Valid: true}
		f.reverted[id] = errMsg
	}
	return nil
}

func (f *fakePostRepo) CancelIfScheduled(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if post, ok := f.posts[id]; ok && post.Status == models.PostStatusScheduled {
		post.Status = models.PostStatusCanceled
		return true, nil
	}
	return false, nil
}

func (f *fakePostRepo) Reschedule(ctx context.Context, id int64, scheduledAt int64, displayTime, timezone string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if post, ok := f.posts[id]; ok && post.Status == models.PostStatusScheduled {
		post.ScheduledAt = scheduledAt
		return true, nil
	}
	return false, nil
}

func (f *fakePostRepo) Remove(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.posts, id)
	return nil
}

func (f *fakePostRepo) status(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts[id].Status
}

func (f *fakePostRepo) attempts(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts[id].PublishAttempts
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]*models.SocialAccount
	touched  []int64
}

func newFakeAccountRepo(accounts ...*models.SocialAccount) *fakeAccountRepo {
	f := &fakeAccountRepo{accounts: make(map[int64]*models.SocialAccount)}
	for _, acc := range accounts {
		f.accounts[acc.ID] = acc
	}
	return f
}

func (f *fakeAccountRepo) Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sa.ID == 0 {
		sa.ID = int64(len(f.accounts) + 1)
	}
	f.accounts[sa.ID] = sa
	return sa.ID, nil
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *acc
	return &copied, nil
}

func (f *fakeAccountRepo) FindActiveForScope(ctx context.Context, userID int64, orgID sql.NullInt64) (*models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.SocialAccount
	for _, acc := range f.accounts {
		if acc.AccountStatus != models.AccountStatusActive {
			continue
		}
		if orgID.Valid {
			if !acc.OrgID.Valid || acc.OrgID.Int64 != orgID.Int64 {
				continue
			}
		} else if acc.OrgID.Valid || acc.UserID != userID {
			continue
		}
		if best == nil || acc.LastUsedAt.Time.After(best.LastUsedAt.Time) {
			best = acc
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

func (f *fakeAccountRepo) ListInfoByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (f *fakeAccountRepo) ListByTokenExpiry(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (f *fakeAccountRepo) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[accountID]
	return ok && acc.UserID == userID, nil
}

func (f *fakeAccountRepo) SetToken(ctx context.Context, accountID int64, oldAccessToken string, sa *models.SocialAccount) error {
	return nil
}

func (f *fakeAccountRepo) TouchLastUsed(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeAccountRepo) Deactivate(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if acc, ok := f.accounts[id]; ok {
		acc.AccountStatus = models.AccountStatusDisconnected
	}
	return nil
}

type fakePublishLogRepo struct {
	mu      sync.Mutex
	entries []*models.PublishLog
}

func (f *fakePublishLogRepo) Create(ctx context.Context, pl *models.PublishLog) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, pl)
	return int64(len(f.entries)), nil
}

func (f *fakePublishLogRepo) GetByPostID(ctx context.Context, postID int64) ([]*models.PublishLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, nil
}

type fakeAssetService struct {
	url string
	err error
}

func (f *fakeAssetService) Resolve(ctx context.Context, ref string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.url != "" {
		return f.url, nil
	}
	return ref, nil
}

type fakeAccountService struct {
	acc *models.SocialAccount
	err error
}

func (f *fakeAccountService) Resolve(ctx context.Context, post *models.Post) (*models.SocialAccount, error) {
	return f.acc, f.err
}

type fakeInstagramService struct {
	mu       sync.Mutex
	calls    int
	assetURL string
	caption  string
	mediaID  string
	err      error
}

func (f *fakeInstagramService) PublishMedia(ctx context.Context, assetURL, caption, subtype string, acc *models.SocialAccount) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.assetURL = assetURL
	f.caption = caption
	return f.mediaID, f.err
}

func (f *fakeInstagramService) InstagramCallback(ctx context.Context, code string, userID, orgID int64) error {
	return nil
}

func (f *fakeInstagramService) RefreshInstagramToken(ctx context.Context, accountID int64, refreshToken string) error {
	return nil
}

func (f *fakeInstagramService) publishCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled map[int64]time.Duration
	canceled  []int64
	schedErr  error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(map[int64]time.Duration)}
}

func (f *fakeScheduler) Schedule(postID int64, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.schedErr != nil {
		return f.schedErr
	}
	f.scheduled[postID] = delay
	return nil
}

func (f *fakeScheduler) Cancel(postID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, postID)
	delete(f.scheduled, postID)
	return nil
}
