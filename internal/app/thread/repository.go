package thread

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"messenger/internal/errs"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Transaction(ctx context.Context, fn func(repo Repository) error) error

	CreateThread(ctx context.Context, thread *Thread) error
	GetThreadByID(ctx context.Context, id uint64) (*Thread, error)
	DeleteThread(ctx context.Context, id uint64) error
	PurgeDeletedThreads(ctx context.Context, before time.Time) (int64, error)
	FindBySubject(ctx context.Context, userID uint64, pattern string) ([]*Thread, error)
	ThreadsBetween(ctx context.Context, userIDs []uint64) ([]*Thread, error)
	ListThreadsForUser(ctx context.Context, userID uint64) ([]*Summary, error)

	CreateMessage(ctx context.Context, message *Message) error
	ListMessages(ctx context.Context, threadID uint64, order MessageOrder) ([]*Message, error)
	LatestMessage(ctx context.Context, threadID uint64) (*Message, error)
	FirstMessage(ctx context.Context, threadID uint64) (*Message, error)

	AddParticipants(ctx context.Context, threadID uint64, userIDs []uint64, lastRead *time.Time) error
	InsertParticipantsIfAbsent(ctx context.Context, rows []*Participant) (int64, error)
	FindParticipant(ctx context.Context, threadID, userID uint64) (*Participant, error)
	ListParticipants(ctx context.Context, threadID uint64) ([]*Participant, error)
	RemoveParticipant(ctx context.Context, threadID, userID uint64, at time.Time) error
	ActivateAllParticipants(ctx context.Context, threadID uint64) error
	UpdateLastRead(ctx context.Context, participantID uint64, at time.Time) error

	ListBroadcastThreads(ctx context.Context, afterID uint64) ([]*Thread, error)
	LatestBroadcastThreadForUser(ctx context.Context, userID uint64) (uint64, error)
	LatestBroadcastThreadBefore(ctx context.Context, before time.Time) (uint64, error)
	UserCreatedAt(ctx context.Context, userID uint64) (*time.Time, error)
}

type repository struct {
	db        *gorm.DB
	userTable string
}

func NewRepository(db *gorm.DB, userTable string) Repository {
	return &repository{db: db, userTable: userTable}
}

func (r *repository) Transaction(ctx context.Context, fn func(repo Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx, userTable: r.userTable})
	})
}

func (r *repository) CreateThread(ctx context.Context, thread *Thread) error {
	return r.db.WithContext(ctx).Create(thread).Error
}

func (r *repository) GetThreadByID(ctx context.Context, id uint64) (*Thread, error) {
	var thread Thread
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.NotFoundError{Resource: "thread", ThreadID: id}
	}
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *repository) DeleteThread(ctx context.Context, id uint64) error {
	result := r.db.WithContext(ctx).Delete(&Thread{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &errs.NotFoundError{Resource: "thread", ThreadID: id}
	}
	return nil
}

func (r *repository) PurgeDeletedThreads(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint64
		if err := tx.Unscoped().Model(&Thread{}).
			Where("deleted_at IS NOT NULL AND deleted_at < ?", before).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("thread_id IN ?", ids).Delete(&Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("thread_id IN ?", ids).Delete(&Participant{}).Error; err != nil {
			return err
		}
		result := tx.Unscoped().Where("id IN ?", ids).Delete(&Thread{})
		if result.Error != nil {
			return result.Error
		}
		purged = result.RowsAffected
		return nil
	})
	return purged, err
}

// FindBySubject matches only threads the user is an active participant of.
func (r *repository) FindBySubject(ctx context.Context, userID uint64, pattern string) ([]*Thread, error) {
	var threads []*Thread
	err := r.db.WithContext(ctx).
		Joins("JOIN participants ON participants.thread_id = threads.id").
		Where("participants.user_id = ? AND participants.state = ?", userID, StateActive).
		Where("threads.subject LIKE ?", pattern).
		Order("threads.updated_at DESC").
		Find(&threads).Error
	return threads, err
}

func (r *repository) ThreadsBetween(ctx context.Context, userIDs []uint64) ([]*Thread, error) {
	var threads []*Thread
	members := r.db.Model(&Participant{}).
		Select("thread_id").
		Where("user_id IN ? AND state = ?", userIDs, StateActive).
		Group("thread_id").
		Having("COUNT(DISTINCT user_id) = ?", len(userIDs))

	err := r.db.WithContext(ctx).
		Where("id IN (?)", members).
		Order("updated_at DESC").
		Find(&threads).Error
	return threads, err
}

func (r *repository) ListThreadsForUser(ctx context.Context, userID uint64) ([]*Summary, error) {
	var rows []*Summary
	err := r.db.WithContext(ctx).Model(&Thread{}).
		Select("threads.*, participants.last_read AS last_read").
		Joins("JOIN participants ON participants.thread_id = threads.id").
		Where("participants.user_id = ? AND participants.state = ?", userID, StateActive).
		Order("threads.updated_at DESC").
		Scan(&rows).Error
	return rows, err
}

// CreateMessage inserts the message and bumps the owning thread's updated_at to the
// message time, so unread checks against the thread see the new activity.
func (r *repository) CreateMessage(ctx context.Context, message *Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&Thread{}).
			Where("id = ?", message.ThreadID).
			UpdateColumn("updated_at", message.UpdatedAt).Error
	})
}

func (r *repository) ListMessages(ctx context.Context, threadID uint64, order MessageOrder) ([]*Message, error) {
	var messages []*Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order(order.column() + " ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

func (r *repository) LatestMessage(ctx context.Context, threadID uint64) (*Message, error) {
	return r.edgeMessage(ctx, threadID, "created_at DESC, id DESC")
}

// FirstMessage returns the opening message; its sender is the thread's creator.
func (r *repository) FirstMessage(ctx context.Context, threadID uint64) (*Message, error) {
	return r.edgeMessage(ctx, threadID, "created_at ASC, id ASC")
}

func (r *repository) edgeMessage(ctx context.Context, threadID uint64, order string) (*Message, error) {
	var message Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order(order).
		First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.NotFoundError{Resource: "message", ThreadID: threadID}
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// AddParticipants inserts missing memberships and restores removed ones in one statement.
// Existing read cursors are left untouched.
func (r *repository) AddParticipants(ctx context.Context, threadID uint64, userIDs []uint64, lastRead *time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]*Participant, 0, len(userIDs))
	for _, userID := range userIDs {
		rows = append(rows, &Participant{
			ThreadID: threadID,
			UserID:   userID,
			LastRead: lastRead,
			State:    StateActive,
		})
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "thread_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"state":      StateActive,
			"deleted_at": nil,
			"updated_at": now,
		}),
	}).Create(&rows).Error
}

func (r *repository) InsertParticipantsIfAbsent(ctx context.Context, rows []*Participant) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "thread_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&rows)
	return result.RowsAffected, result.Error
}

func (r *repository) FindParticipant(ctx context.Context, threadID, userID uint64) (*Participant, error) {
	var participant Participant
	err := r.db.WithContext(ctx).
		Where("thread_id = ? AND user_id = ? AND state = ?", threadID, userID, StateActive).
		First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.NotFoundError{Resource: "participant", ThreadID: threadID, UserID: userID}
	}
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *repository) ListParticipants(ctx context.Context, threadID uint64) ([]*Participant, error) {
	var participants []*Participant
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id ASC").
		Find(&participants).Error
	return participants, err
}

func (r *repository) RemoveParticipant(ctx context.Context, threadID, userID uint64, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&Participant{}).
		Where("thread_id = ? AND user_id = ? AND state = ?", threadID, userID, StateActive).
		Updates(map[string]interface{}{
			"state":      StateRemoved,
			"deleted_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &errs.NotFoundError{Resource: "participant", ThreadID: threadID, UserID: userID}
	}
	return nil
}

func (r *repository) ActivateAllParticipants(ctx context.Context, threadID uint64) error {
	return r.db.WithContext(ctx).Model(&Participant{}).
		Where("thread_id = ? AND state = ?", threadID, StateRemoved).
		Updates(map[string]interface{}{
			"state":      StateActive,
			"deleted_at": nil,
		}).Error
}

func (r *repository) UpdateLastRead(ctx context.Context, participantID uint64, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&Participant{}).
		Where("id = ?", participantID).
		Update("last_read", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &errs.NotFoundError{Resource: "participant"}
	}
	return nil
}

func (r *repository) ListBroadcastThreads(ctx context.Context, afterID uint64) ([]*Thread, error) {
	var threads []*Thread
	err := r.db.WithContext(ctx).
		Where("to_all = ? AND id > ?", true, afterID).
		Order("id ASC").
		Find(&threads).Error
	return threads, err
}

func (r *repository) LatestBroadcastThreadForUser(ctx context.Context, userID uint64) (uint64, error) {
	var latest sql.NullInt64
	err := r.db.WithContext(ctx).Model(&Thread{}).
		Select("MAX(threads.id)").
		Joins("JOIN participants ON participants.thread_id = threads.id").
		Where("threads.to_all = ? AND participants.user_id = ?", true, userID).
		Scan(&latest).Error
	if err != nil || !latest.Valid {
		return 0, err
	}
	return uint64(latest.Int64), nil
}

func (r *repository) LatestBroadcastThreadBefore(ctx context.Context, before time.Time) (uint64, error) {
	var latest sql.NullInt64
	err := r.db.WithContext(ctx).Model(&Thread{}).
		Select("MAX(id)").
		Where("to_all = ? AND created_at < ?", true, before).
		Scan(&latest).Error
	if err != nil || !latest.Valid {
		return 0, err
	}
	return uint64(latest.Int64), nil
}

func (r *repository) UserCreatedAt(ctx context.Context, userID uint64) (*time.Time, error) {
	var createdAt sql.NullTime
	err := r.db.WithContext(ctx).Table(r.userTable).
		Select("created_at").
		Where("id = ?", userID).
		Scan(&createdAt).Error
	if err != nil {
		return nil, err
	}
	if !createdAt.Valid {
		return nil, nil
	}
	return &createdAt.Time, nil
}
