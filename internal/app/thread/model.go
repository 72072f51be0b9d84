package thread

import (
	"time"

	"gorm.io/gorm"
)

type Thread struct {
	ID        uint64         `json:"id" gorm:"primaryKey"`
	Subject   string         `json:"subject" gorm:"not null"`
	Category  string         `json:"category" gorm:"column:cate;not null;default:'Msg'"`
	ToAll     bool           `json:"to_all" gorm:"column:to_all;not null;default:false;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Thread) TableName() string {
	return "threads"
}

type Message struct {
	ID        uint64    `json:"id" gorm:"primaryKey"`
	ThreadID  uint64    `json:"thread_id" gorm:"not null;index"`
	UserID    uint64    `json:"user_id" gorm:"not null;index"`
	Body      string    `json:"body" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

type MembershipState string

const (
	StateActive  MembershipState = "active"
	StateRemoved MembershipState = "removed"
)

// Participant is one user's membership and read cursor in one thread. A row is never
// duplicated for a (thread, user) pair; removal and restore only change State.
type Participant struct {
	ID        uint64          `json:"id" gorm:"primaryKey"`
	ThreadID  uint64          `json:"thread_id" gorm:"not null;uniqueIndex:idx_participants_thread_user"`
	UserID    uint64          `json:"user_id" gorm:"not null;uniqueIndex:idx_participants_thread_user;index"`
	LastRead  *time.Time      `json:"last_read"`
	State     MembershipState `json:"state" gorm:"type:varchar(16);not null;default:'active'"`
	RemovedAt *time.Time      `json:"removed_at,omitempty" gorm:"column:deleted_at"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Participant) TableName() string {
	return "participants"
}

func (p *Participant) Active() bool {
	return p.State == StateActive
}

// Summary is a thread as seen from one user's inbox.
type Summary struct {
	Thread
	LastRead *time.Time `json:"last_read"`
	Unread   bool       `json:"unread" gorm:"-"`
	Latest   *Message   `json:"latest_message,omitempty" gorm:"-"`
}

// NewThread describes a thread together with its opening message.
type NewThread struct {
	Subject    string
	Category   string
	SenderID   uint64
	Body       string
	Recipients []uint64
	Broadcast  bool
}

type Created struct {
	Thread       *Thread
	Message      *Message
	Participants []uint64
}

// MessageOrder selects the timestamp messages are sorted by, oldest first.
type MessageOrder int

const (
	ByCreated MessageOrder = iota
	ByUpdated
)

func (o MessageOrder) column() string {
	if o == ByUpdated {
		return "updated_at"
	}
	return "created_at"
}

// UniqueIDs drops zero and repeated ids, keeping first-seen order.
func UniqueIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
