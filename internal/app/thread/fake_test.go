package thread

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"messenger/internal/errs"
)

// memRepository is an in-memory Repository. Every write advances a fake clock by one
// second so timestamps are strictly ordered.
type memRepository struct {
	mu           sync.Mutex
	clock        time.Time
	nextID       uint64
	threads      map[uint64]*Thread
	messages     []*Message
	participants []*Participant
	users        map[uint64]time.Time
	lastPattern  string
	updateErr    error
	userErr      error
}

func newMemRepository() *memRepository {
	return &memRepository{
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		threads: make(map[uint64]*Thread),
		users:   make(map[uint64]time.Time),
	}
}

func (r *memRepository) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memRepository) id() uint64 {
	r.nextID++
	return r.nextID
}

// registerUser records a host user created at the current fake time.
func (r *memRepository) registerUser(userID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = r.tick()
}

func (r *memRepository) rowsFor(threadID uint64) []*Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Participant
	for _, p := range r.participants {
		if p.ThreadID == threadID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}

func (r *memRepository) Transaction(ctx context.Context, fn func(repo Repository) error) error {
	return fn(r)
}

func (r *memRepository) CreateThread(ctx context.Context, thread *Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.tick()
	thread.ID = r.id()
	thread.CreatedAt = now
	thread.UpdatedAt = now
	cp := *thread
	r.threads[thread.ID] = &cp
	return nil
}

func (r *memRepository) GetThreadByID(ctx context.Context, id uint64) (*Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok || t.DeletedAt.Valid {
		return nil, &errs.NotFoundError{Resource: "thread", ThreadID: id}
	}
	cp := *t
	return &cp, nil
}

func (r *memRepository) DeleteThread(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok || t.DeletedAt.Valid {
		return &errs.NotFoundError{Resource: "thread", ThreadID: id}
	}
	t.DeletedAt.Time = r.tick()
	t.DeletedAt.Valid = true
	return nil
}

func (r *memRepository) PurgeDeletedThreads(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purged int64
	for id, t := range r.threads {
		if t.DeletedAt.Valid && t.DeletedAt.Time.Before(before) {
			delete(r.threads, id)
			purged++
		}
	}
	return purged, nil
}

var likeUnescaper = strings.NewReplacer(`\\`, `\`, `\%`, `%`, `\_`, `_`)

func (r *memRepository) FindBySubject(ctx context.Context, userID uint64, pattern string) ([]*Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastPattern = pattern
	needle := likeUnescaper.Replace(strings.TrimSuffix(strings.TrimPrefix(pattern, "%"), "%"))
	var out []*Thread
	for _, t := range r.threads {
		if t.DeletedAt.Valid || r.findLocked(t.ID, userID) == nil {
			continue
		}
		if strings.Contains(t.Subject, needle) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepository) ThreadsBetween(ctx context.Context, userIDs []uint64) ([]*Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Thread
	for _, t := range r.threads {
		if t.DeletedAt.Valid {
			continue
		}
		all := true
		for _, userID := range userIDs {
			if r.findLocked(t.ID, userID) == nil {
				all = false
				break
			}
		}
		if all {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepository) ListThreadsForUser(ctx context.Context, userID uint64) ([]*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Summary
	for _, p := range r.participants {
		if p.UserID != userID || !p.Active() {
			continue
		}
		t, ok := r.threads[p.ThreadID]
		if !ok || t.DeletedAt.Valid {
			continue
		}
		out = append(out, &Summary{Thread: *t, LastRead: p.LastRead})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *memRepository) CreateMessage(ctx context.Context, message *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.tick()
	message.ID = r.id()
	message.CreatedAt = now
	message.UpdatedAt = now
	cp := *message
	r.messages = append(r.messages, &cp)
	if t, ok := r.threads[message.ThreadID]; ok {
		t.UpdatedAt = now
	}
	return nil
}

func (r *memRepository) ListMessages(ctx context.Context, threadID uint64, order MessageOrder) ([]*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Message
	for _, m := range r.messages {
		if m.ThreadID == threadID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if order == ByUpdated {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memRepository) LatestMessage(ctx context.Context, threadID uint64) (*Message, error) {
	messages, _ := r.ListMessages(ctx, threadID, ByCreated)
	if len(messages) == 0 {
		return nil, &errs.NotFoundError{Resource: "message", ThreadID: threadID}
	}
	return messages[len(messages)-1], nil
}

func (r *memRepository) FirstMessage(ctx context.Context, threadID uint64) (*Message, error) {
	messages, _ := r.ListMessages(ctx, threadID, ByCreated)
	if len(messages) == 0 {
		return nil, &errs.NotFoundError{Resource: "message", ThreadID: threadID}
	}
	return messages[0], nil
}

func (r *memRepository) AddParticipants(ctx context.Context, threadID uint64, userIDs []uint64, lastRead *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.tick()
	for _, userID := range userIDs {
		if p := r.rowLocked(threadID, userID); p != nil {
			p.State = StateActive
			p.RemovedAt = nil
			p.UpdatedAt = now
			continue
		}
		r.participants = append(r.participants, &Participant{
			ID:        r.id(),
			ThreadID:  threadID,
			UserID:    userID,
			LastRead:  lastRead,
			State:     StateActive,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return nil
}

func (r *memRepository) InsertParticipantsIfAbsent(ctx context.Context, rows []*Participant) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var inserted int64
	for _, row := range rows {
		if r.rowLocked(row.ThreadID, row.UserID) != nil {
			continue
		}
		cp := *row
		cp.ID = r.id()
		r.participants = append(r.participants, &cp)
		inserted++
	}
	return inserted, nil
}

func (r *memRepository) rowLocked(threadID, userID uint64) *Participant {
	for _, p := range r.participants {
		if p.ThreadID == threadID && p.UserID == userID {
			return p
		}
	}
	return nil
}

func (r *memRepository) findLocked(threadID, userID uint64) *Participant {
	if p := r.rowLocked(threadID, userID); p != nil && p.Active() {
		return p
	}
	return nil
}

func (r *memRepository) FindParticipant(ctx context.Context, threadID, userID uint64) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.findLocked(threadID, userID)
	if p == nil {
		return nil, &errs.NotFoundError{Resource: "participant", ThreadID: threadID, UserID: userID}
	}
	cp := *p
	return &cp, nil
}

func (r *memRepository) ListParticipants(ctx context.Context, threadID uint64) ([]*Participant, error) {
	return r.rowsFor(threadID), nil
}

func (r *memRepository) RemoveParticipant(ctx context.Context, threadID, userID uint64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.findLocked(threadID, userID)
	if p == nil {
		return &errs.NotFoundError{Resource: "participant", ThreadID: threadID, UserID: userID}
	}
	p.State = StateRemoved
	p.RemovedAt = &at
	return nil
}

func (r *memRepository) ActivateAllParticipants(ctx context.Context, threadID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if p.ThreadID == threadID && p.State == StateRemoved {
			p.State = StateActive
			p.RemovedAt = nil
		}
	}
	return nil
}

func (r *memRepository) UpdateLastRead(ctx context.Context, participantID uint64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	for _, p := range r.participants {
		if p.ID == participantID {
			p.LastRead = &at
			return nil
		}
	}
	return &errs.NotFoundError{Resource: "participant"}
}

func (r *memRepository) ListBroadcastThreads(ctx context.Context, afterID uint64) ([]*Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Thread
	for _, t := range r.threads {
		if t.ToAll && t.ID > afterID && !t.DeletedAt.Valid {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepository) LatestBroadcastThreadForUser(ctx context.Context, userID uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest uint64
	for _, p := range r.participants {
		if t, ok := r.threads[p.ThreadID]; ok && t.ToAll && p.UserID == userID && t.ID > latest {
			latest = t.ID
		}
	}
	return latest, nil
}

func (r *memRepository) LatestBroadcastThreadBefore(ctx context.Context, before time.Time) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest uint64
	for _, t := range r.threads {
		if t.ToAll && t.CreatedAt.Before(before) && t.ID > latest {
			latest = t.ID
		}
	}
	return latest, nil
}

func (r *memRepository) UserCreatedAt(ctx context.Context, userID uint64) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.userErr != nil {
		return nil, r.userErr
	}
	createdAt, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	return &createdAt, nil
}

type memCursor struct {
	mu     sync.Mutex
	values map[uint64]uint64
	getErr error
}

func newMemCursor() *memCursor {
	return &memCursor{values: make(map[uint64]uint64)}
}

func (c *memCursor) Get(ctx context.Context, userID uint64) (uint64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return 0, false, c.getErr
	}
	v, ok := c.values[userID]
	return v, ok, nil
}

func (c *memCursor) Set(ctx context.Context, userID uint64, threadID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[userID] = threadID
	return nil
}

func (c *memCursor) forget(userID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, userID)
}
