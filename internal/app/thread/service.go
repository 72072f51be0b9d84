package thread

import (
	"context"
	"fmt"
	"strings"
	"time"

	"messenger/internal/errs"
	"messenger/internal/metrics"

	"go.uber.org/zap"
)

// Service manages thread lifecycle and membership.
//
// Broadcast threads are created without participant rows. Each user's rows are
// materialized on their next SyncBroadcastMembership call, so a broadcast becomes
// visible to a user at most one call boundary after it is created.
type Service interface {
	CreateThread(ctx context.Context, in NewThread) (*Created, error)
	GetThread(ctx context.Context, threadID uint64) (*Thread, error)
	DeleteThread(ctx context.Context, threadID uint64) error
	Reply(ctx context.Context, threadID, senderID uint64, body string) (*Message, error)
	Messages(ctx context.Context, threadID uint64) ([]*Message, error)
	LatestMessage(ctx context.Context, threadID uint64) (*Message, error)
	Creator(ctx context.Context, threadID uint64) (uint64, error)

	AddParticipants(ctx context.Context, threadID uint64, userIDs []uint64) error
	RemoveParticipant(ctx context.Context, threadID, userID uint64) error
	HasParticipant(ctx context.Context, thread *Thread, userID uint64) (bool, error)
	ParticipantUserIDs(ctx context.Context, threadID uint64, includeRemoved bool) ([]uint64, error)
	SyncBroadcastMembership(ctx context.Context, userID uint64) (int, error)

	Inbox(ctx context.Context, userID uint64) ([]*Summary, error)
	Between(ctx context.Context, userID uint64, others []uint64) ([]*Thread, error)
	FindBySubject(ctx context.Context, userID uint64, query string) ([]*Thread, error)
}

type service struct {
	repo            Repository
	cursor          BroadcastCursor
	logger          *zap.SugaredLogger
	defaultCategory string
	now             func() time.Time
}

func NewService(repo Repository, cursor BroadcastCursor, logger *zap.Logger, defaultCategory string) Service {
	if defaultCategory == "" {
		defaultCategory = "Msg"
	}
	return &service{
		repo:            repo,
		cursor:          cursor,
		logger:          logger.Sugar(),
		defaultCategory: defaultCategory,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) CreateThread(ctx context.Context, in NewThread) (*Created, error) {
	if strings.TrimSpace(in.Subject) == "" {
		return nil, &errs.ValidationError{Field: "subject"}
	}
	category := in.Category
	if category == "" {
		category = s.defaultCategory
	}

	var recipients []uint64
	if !in.Broadcast {
		recipients = UniqueIDs(in.Recipients)
	}

	created := &Created{}
	err := s.repo.Transaction(ctx, func(repo Repository) error {
		thread := &Thread{
			Subject:  in.Subject,
			Category: category,
			ToAll:    in.Broadcast,
		}
		if err := repo.CreateThread(ctx, thread); err != nil {
			return fmt.Errorf("create thread: %w", err)
		}

		message := &Message{
			ThreadID: thread.ID,
			UserID:   in.SenderID,
			Body:     in.Body,
		}
		if err := repo.CreateMessage(ctx, message); err != nil {
			return fmt.Errorf("create message: %w", err)
		}

		if len(recipients) > 0 {
			if err := repo.AddParticipants(ctx, thread.ID, recipients, nil); err != nil {
				return fmt.Errorf("add participants: %w", err)
			}
		}

		created.Thread = thread
		created.Message = message
		created.Participants = recipients
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Thread created",
		"thread_id", created.Thread.ID,
		"message_id", created.Message.ID,
		"broadcast", in.Broadcast,
		"participants", len(recipients),
	)
	return created, nil
}

func (s *service) GetThread(ctx context.Context, threadID uint64) (*Thread, error) {
	return s.repo.GetThreadByID(ctx, threadID)
}

func (s *service) DeleteThread(ctx context.Context, threadID uint64) error {
	if err := s.repo.DeleteThread(ctx, threadID); err != nil {
		return err
	}
	s.logger.Infow("Thread deleted", "thread_id", threadID)
	return nil
}

// Reply appends a message to an existing thread, restores every removed participant so
// they see the new activity, and moves the sender's own read cursor past the reply.
func (s *service) Reply(ctx context.Context, threadID, senderID uint64, body string) (*Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, &errs.ValidationError{Field: "body"}
	}
	thread, err := s.repo.GetThreadByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	ok, err := s.HasParticipant(ctx, thread, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &errs.NotFoundError{Resource: "participant", ThreadID: threadID, UserID: senderID}
	}

	message := &Message{ThreadID: threadID, UserID: senderID, Body: body}
	err = s.repo.Transaction(ctx, func(repo Repository) error {
		if err := repo.CreateMessage(ctx, message); err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		if !thread.ToAll {
			if err := repo.ActivateAllParticipants(ctx, threadID); err != nil {
				return fmt.Errorf("activate participants: %w", err)
			}
		}
		participant, err := repo.FindParticipant(ctx, threadID, senderID)
		if errs.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		return repo.UpdateLastRead(ctx, participant.ID, message.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Reply added", "thread_id", threadID, "message_id", message.ID, "user_id", senderID)
	return message, nil
}

func (s *service) Messages(ctx context.Context, threadID uint64) ([]*Message, error) {
	return s.repo.ListMessages(ctx, threadID, ByCreated)
}

func (s *service) LatestMessage(ctx context.Context, threadID uint64) (*Message, error) {
	return s.repo.LatestMessage(ctx, threadID)
}

// Creator is the sender of the thread's opening message.
func (s *service) Creator(ctx context.Context, threadID uint64) (uint64, error) {
	first, err := s.repo.FirstMessage(ctx, threadID)
	if err != nil {
		return 0, err
	}
	return first.UserID, nil
}

func (s *service) AddParticipants(ctx context.Context, threadID uint64, userIDs []uint64) error {
	thread, err := s.repo.GetThreadByID(ctx, threadID)
	if err != nil {
		return err
	}
	if thread.ToAll {
		return &errs.ValidationError{Field: "thread", Reason: "is a broadcast thread, membership is implicit"}
	}

	ids := UniqueIDs(userIDs)
	if len(ids) == 0 {
		return &errs.ValidationError{Field: "user_ids"}
	}
	if err := s.repo.AddParticipants(ctx, threadID, ids, nil); err != nil {
		return fmt.Errorf("add participants: %w", err)
	}
	s.logger.Infow("Participants added", "thread_id", threadID, "user_ids", ids)
	return nil
}

// RemoveParticipant refuses broadcast threads: a removed row there is never restored by
// the membership sync.
func (s *service) RemoveParticipant(ctx context.Context, threadID, userID uint64) error {
	thread, err := s.repo.GetThreadByID(ctx, threadID)
	if err != nil {
		return err
	}
	if thread.ToAll {
		return &errs.ValidationError{Field: "thread", Reason: "is a broadcast thread, membership is implicit"}
	}
	if err := s.repo.RemoveParticipant(ctx, threadID, userID, s.now()); err != nil {
		return err
	}
	s.logger.Infow("Participant removed", "thread_id", threadID, "user_id", userID)
	return nil
}

func (s *service) HasParticipant(ctx context.Context, thread *Thread, userID uint64) (bool, error) {
	if thread.ToAll {
		return true, nil
	}
	_, err := s.repo.FindParticipant(ctx, thread.ID, userID)
	if errs.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) ParticipantUserIDs(ctx context.Context, threadID uint64, includeRemoved bool) ([]uint64, error) {
	participants, err := s.repo.ListParticipants(ctx, threadID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(participants))
	for _, p := range participants {
		if p.Active() || includeRemoved {
			ids = append(ids, p.UserID)
		}
	}
	return ids, nil
}

func (s *service) SyncBroadcastMembership(ctx context.Context, userID uint64) (int, error) {
	latestID, found, err := s.cursor.Get(ctx, userID)
	if err != nil {
		s.logger.Warnw("Broadcast cursor unavailable, recomputing", "user_id", userID, "error", err)
		found = false
	}
	if !found {
		latestID, err = s.initialCursor(ctx, userID)
		if err != nil {
			return 0, fmt.Errorf("compute broadcast cursor: %w", err)
		}
	}

	threads, err := s.repo.ListBroadcastThreads(ctx, latestID)
	if err != nil {
		return 0, fmt.Errorf("list broadcast threads: %w", err)
	}
	if len(threads) == 0 {
		if !found {
			s.storeCursor(ctx, userID, latestID)
		}
		return 0, nil
	}

	rows := make([]*Participant, 0, len(threads))
	for _, t := range threads {
		rows = append(rows, &Participant{
			ThreadID:  t.ID,
			UserID:    userID,
			State:     StateActive,
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.CreatedAt,
		})
		if t.ID > latestID {
			latestID = t.ID
		}
	}

	inserted, err := s.repo.InsertParticipantsIfAbsent(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("materialize broadcast participants: %w", err)
	}
	s.storeCursor(ctx, userID, latestID)

	metrics.BroadcastMaterialized.Add(float64(inserted))
	s.logger.Debugw("Broadcast membership synced",
		"user_id", userID,
		"materialized", inserted,
		"latest_thread_id", latestID,
	)
	return int(inserted), nil
}

// initialCursor starts from the newest broadcast the user already holds a row for,
// otherwise from the newest broadcast that predates the user's account.
func (s *service) initialCursor(ctx context.Context, userID uint64) (uint64, error) {
	latest, err := s.repo.LatestBroadcastThreadForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if latest > 0 {
		return latest, nil
	}

	createdAt, err := s.repo.UserCreatedAt(ctx, userID)
	if err != nil {
		s.logger.Errorw("User lookup failed, starting broadcast cursor from zero", "user_id", userID, "error", err)
		return 0, nil
	}
	if createdAt == nil {
		return 0, nil
	}
	return s.repo.LatestBroadcastThreadBefore(ctx, *createdAt)
}

// storeCursor failures are not fatal: the next sync recomputes the cursor and
// insert-if-absent keeps the rows unique.
func (s *service) storeCursor(ctx context.Context, userID, threadID uint64) {
	if err := s.cursor.Set(ctx, userID, threadID); err != nil {
		s.logger.Warnw("Failed to store broadcast cursor", "user_id", userID, "thread_id", threadID, "error", err)
	}
}

func (s *service) Inbox(ctx context.Context, userID uint64) ([]*Summary, error) {
	if _, err := s.SyncBroadcastMembership(ctx, userID); err != nil {
		s.logger.Warnw("Inbox: broadcast sync failed", "user_id", userID, "error", err)
	}

	summaries, err := s.repo.ListThreadsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	for _, summary := range summaries {
		summary.Unread = unreadSince(summary.UpdatedAt, summary.LastRead)
		latest, err := s.LatestMessage(ctx, summary.ID)
		if errs.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("latest message of thread %d: %w", summary.ID, err)
		}
		summary.Latest = latest
	}
	return summaries, nil
}

// Between lists the threads the user shares with every one of others.
func (s *service) Between(ctx context.Context, userID uint64, others []uint64) ([]*Thread, error) {
	if len(UniqueIDs(others)) == 0 {
		return nil, &errs.ValidationError{Field: "user_ids"}
	}
	return s.repo.ThreadsBetween(ctx, UniqueIDs(append([]uint64{userID}, others...)))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *service) FindBySubject(ctx context.Context, userID uint64, query string) ([]*Thread, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &errs.ValidationError{Field: "subject"}
	}
	if _, err := s.SyncBroadcastMembership(ctx, userID); err != nil {
		s.logger.Warnw("Search: broadcast sync failed", "user_id", userID, "error", err)
	}
	return s.repo.FindBySubject(ctx, userID, "%"+likeEscaper.Replace(query)+"%")
}
