package thread

import (
	"context"
	"time"

	"messenger/internal/errs"

	"go.uber.org/zap"
)

// Tracker answers per-user read-state questions for a thread.
type Tracker interface {
	IsUnread(ctx context.Context, thread *Thread, userID uint64) (bool, error)
	UnreadMessages(ctx context.Context, thread *Thread, userID uint64) ([]*Message, error)
	UnreadCount(ctx context.Context, thread *Thread, userID uint64) (int, error)
	MarkRead(ctx context.Context, thread *Thread, userID uint64, now time.Time) error
	MarkReadQuietly(ctx context.Context, thread *Thread, userID uint64, now time.Time) (bool, error)
	UnreadThreadIDs(ctx context.Context, userID uint64) ([]uint64, error)
}

type tracker struct {
	repo   Repository
	logger *zap.SugaredLogger
}

func NewTracker(repo Repository, logger *zap.Logger) Tracker {
	return &tracker{repo: repo, logger: logger.Sugar()}
}

// unreadSince reports activity after the read cursor; a nil cursor has read nothing.
func unreadSince(updatedAt time.Time, lastRead *time.Time) bool {
	return lastRead == nil || updatedAt.After(*lastRead)
}

// cursorFor returns the user's last_read. A user without a row in a broadcast thread
// is an implicit member who has not read anything yet.
func (t *tracker) cursorFor(ctx context.Context, thread *Thread, userID uint64) (*time.Time, error) {
	participant, err := t.repo.FindParticipant(ctx, thread.ID, userID)
	if errs.IsNotFound(err) && thread.ToAll {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return participant.LastRead, nil
}

func (t *tracker) IsUnread(ctx context.Context, thread *Thread, userID uint64) (bool, error) {
	lastRead, err := t.cursorFor(ctx, thread, userID)
	if err != nil {
		return false, err
	}
	return unreadSince(thread.UpdatedAt, lastRead), nil
}

// UnreadMessages walks the thread from the newest message backwards and stops at the
// first one at or before the cursor. Messages are ordered by updated_at, the same
// timestamp the cursor is compared against, so the early stop never skips an unread one.
func (t *tracker) UnreadMessages(ctx context.Context, thread *Thread, userID uint64) ([]*Message, error) {
	lastRead, err := t.cursorFor(ctx, thread, userID)
	if err != nil {
		return nil, err
	}
	messages, err := t.repo.ListMessages(ctx, thread.ID, ByUpdated)
	if err != nil {
		return nil, err
	}
	if lastRead == nil {
		return messages, nil
	}

	start := len(messages)
	for start > 0 && messages[start-1].UpdatedAt.After(*lastRead) {
		start--
	}
	return messages[start:], nil
}

func (t *tracker) UnreadCount(ctx context.Context, thread *Thread, userID uint64) (int, error) {
	unread, err := t.UnreadMessages(ctx, thread, userID)
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

func (t *tracker) MarkRead(ctx context.Context, thread *Thread, userID uint64, now time.Time) error {
	participant, err := t.repo.FindParticipant(ctx, thread.ID, userID)
	if err != nil {
		return err
	}
	return t.repo.UpdateLastRead(ctx, participant.ID, now)
}

// MarkReadQuietly is MarkRead for best-effort callers: a missing participant is logged
// and reported as false. Any other failure is returned.
func (t *tracker) MarkReadQuietly(ctx context.Context, thread *Thread, userID uint64, now time.Time) (bool, error) {
	err := t.MarkRead(ctx, thread, userID, now)
	if err == nil {
		return true, nil
	}
	if errs.IsNotFound(err) {
		t.logger.Warnw("Mark thread as read skipped", "thread_id", thread.ID, "user_id", userID, "error", err)
		return false, nil
	}
	t.logger.Errorw("Mark thread as read failed", "thread_id", thread.ID, "user_id", userID, "error", err)
	return false, err
}

func (t *tracker) UnreadThreadIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	summaries, err := t.repo.ListThreadsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(summaries))
	for _, s := range summaries {
		if unreadSince(s.UpdatedAt, s.LastRead) {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}
