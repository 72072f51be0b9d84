package thread

import (
	"context"
	"errors"
	"sync"
	"testing"

	"messenger/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService() (*memRepository, *memCursor, Service, Tracker) {
	repo := newMemRepository()
	cursor := newMemCursor()
	return repo, cursor, NewService(repo, cursor, zap.NewNop(), ""), NewTracker(repo, zap.NewNop())
}

func directed(subject string, sender uint64, recipients ...uint64) NewThread {
	return NewThread{Subject: subject, SenderID: sender, Body: subject + " body", Recipients: recipients}
}

func broadcast(subject string) NewThread {
	return NewThread{Subject: subject, SenderID: 1, Body: subject + " body", Broadcast: true}
}

func activeUserIDs(rows []*Participant) []uint64 {
	var ids []uint64
	for _, p := range rows {
		if p.Active() {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

func TestCreateThread_CollapsesDuplicateRecipients(t *testing.T) {
	repo, _, svc, _ := newTestService()

	created, err := svc.CreateThread(context.Background(), directed("hello", 1, 5, 5, 7))
	require.NoError(t, err)

	assert.Equal(t, []uint64{5, 7}, created.Participants)
	assert.Equal(t, "Msg", created.Thread.Category)
	assert.Equal(t, created.Thread.ID, created.Message.ThreadID)
	assert.ElementsMatch(t, []uint64{5, 7}, activeUserIDs(repo.rowsFor(created.Thread.ID)))
}

func TestCreateThread_BroadcastHasNoParticipantRows(t *testing.T) {
	repo, _, svc, _ := newTestService()

	created, err := svc.CreateThread(context.Background(), broadcast("news"))
	require.NoError(t, err)

	assert.True(t, created.Thread.ToAll)
	assert.Empty(t, repo.rowsFor(created.Thread.ID))
}

func TestCreateThread_RequiresSubject(t *testing.T) {
	_, _, svc, _ := newTestService()

	_, err := svc.CreateThread(context.Background(), directed("  ", 1, 2))
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestSyncBroadcastMembership_IsIdempotent(t *testing.T) {
	repo, cursor, svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.CreateThread(ctx, broadcast("one"))
	require.NoError(t, err)
	second, err := svc.CreateThread(ctx, broadcast("two"))
	require.NoError(t, err)

	n, err := svc.SyncBroadcastMembership(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, second.Thread.ID, cursor.values[9])

	n, err = svc.SyncBroadcastMembership(ctx, 9)
	require.NoError(t, err)
	assert.Zero(t, n)

	rows := repo.rowsFor(first.Thread.ID)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].LastRead)
	assert.Len(t, repo.rowsFor(second.Thread.ID), 1)

	third, err := svc.CreateThread(ctx, broadcast("three"))
	require.NoError(t, err)
	n, err = svc.SyncBroadcastMembership(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, third.Thread.ID, cursor.values[9])
}

func TestSyncBroadcastMembership_SkipsBroadcastsBeforeSignup(t *testing.T) {
	repo, cursor, svc, _ := newTestService()
	ctx := context.Background()

	before, err := svc.CreateThread(ctx, broadcast("before"))
	require.NoError(t, err)
	repo.registerUser(9)
	after, err := svc.CreateThread(ctx, broadcast("after"))
	require.NoError(t, err)

	n, err := svc.SyncBroadcastMembership(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, repo.rowsFor(before.Thread.ID))
	assert.Len(t, repo.rowsFor(after.Thread.ID), 1)
	assert.Equal(t, after.Thread.ID, cursor.values[9])
}

func TestSyncBroadcastMembership_RecomputesLostCursorFromRows(t *testing.T) {
	repo, cursor, svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateThread(ctx, broadcast("one"))
	require.NoError(t, err)
	_, err = svc.SyncBroadcastMembership(ctx, 9)
	require.NoError(t, err)

	cursor.forget(9)
	latest, err := svc.CreateThread(ctx, broadcast("two"))
	require.NoError(t, err)

	n, err := svc.SyncBroadcastMembership(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, repo.rowsFor(latest.Thread.ID), 1)
	assert.Equal(t, latest.Thread.ID, cursor.values[9])
}

func TestSyncBroadcastMembership_CursorErrorFallsBackToDatabase(t *testing.T) {
	repo, cursor, svc, _ := newTestService()
	ctx := context.Background()
	cursor.getErr = errors.New("redis unavailable")

	created, err := svc.CreateThread(ctx, broadcast("one"))
	require.NoError(t, err)

	n, err := svc.SyncBroadcastMembership(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.SyncBroadcastMembership(ctx, 9)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, repo.rowsFor(created.Thread.ID), 1)
}

func TestSyncBroadcastMembership_ConcurrentCallsMaterializeOnce(t *testing.T) {
	repo, _, svc, _ := newTestService()
	ctx := context.Background()

	var ids []uint64
	for _, subject := range []string{"one", "two", "three"} {
		created, err := svc.CreateThread(ctx, broadcast(subject))
		require.NoError(t, err)
		ids = append(ids, created.Thread.ID)
	}

	const callers = 16
	var wg sync.WaitGroup
	counts := make([]int, callers)
	failures := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			counts[i], failures[i] = svc.SyncBroadcastMembership(ctx, 9)
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, failures[i])
		total += counts[i]
	}
	assert.Equal(t, len(ids), total)
	for _, id := range ids {
		assert.Len(t, repo.rowsFor(id), 1, "thread %d", id)
	}
}

func TestSyncBroadcastMembership_UserLookupFailureStoresZeroCursor(t *testing.T) {
	repo, cursor, svc, _ := newTestService()
	ctx := context.Background()
	repo.userErr = errors.New(`relation "users" does not exist`)

	created, err := svc.CreateThread(ctx, broadcast("one"))
	require.NoError(t, err)

	n, err := svc.SyncBroadcastMembership(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, repo.rowsFor(created.Thread.ID), 1)
	assert.Equal(t, created.Thread.ID, cursor.values[9])
}

func TestSyncBroadcastMembership_UserLookupFailureWithoutBroadcasts(t *testing.T) {
	repo, cursor, svc, _ := newTestService()
	repo.userErr = errors.New(`relation "users" does not exist`)

	n, err := svc.SyncBroadcastMembership(context.Background(), 9)
	require.NoError(t, err)
	assert.Zero(t, n)
	v, ok := cursor.values[9]
	assert.True(t, ok)
	assert.Zero(t, v)
}

func TestAddParticipants_ReactivatesRemovedMember(t *testing.T) {
	repo, _, svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateThread(ctx, directed("hi", 1, 1, 3))
	require.NoError(t, err)
	id := created.Thread.ID

	require.NoError(t, svc.RemoveParticipant(ctx, id, 3))
	assert.Equal(t, []uint64{1}, activeUserIDs(repo.rowsFor(id)))

	ids, err := svc.ParticipantUserIDs(ctx, id, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 3}, ids)

	require.NoError(t, svc.AddParticipants(ctx, id, []uint64{3, 3, 4}))
	rows := repo.rowsFor(id)
	assert.Len(t, rows, 3)
	assert.ElementsMatch(t, []uint64{1, 3, 4}, activeUserIDs(rows))

	require.NoError(t, svc.AddParticipants(ctx, id, []uint64{4}))
	assert.Len(t, repo.rowsFor(id), 3)
}

func TestAddParticipants_RejectsBroadcastThread(t *testing.T) {
	_, _, svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateThread(ctx, broadcast("news"))
	require.NoError(t, err)

	err = svc.AddParticipants(ctx, created.Thread.ID, []uint64{2})
	assert.True(t, errs.IsValidation(err))
}

func TestRemoveParticipant_UnknownMember(t *testing.T) {
	_, _, svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateThread(ctx, directed("hi", 1, 1))
	require.NoError(t, err)

	err = svc.RemoveParticipant(ctx, created.Thread.ID, 99)
	assert.True(t, errs.IsNotFound(err))
}

func TestRemoveParticipant_RejectsBroadcastThread(t *testing.T) {
	repo, _, svc, tracker := newTestService()
	ctx := context.Background()

	created, err := svc.CreateThread(ctx, broadcast("news"))
	require.NoError(t, err)
	_, err = svc.SyncBroadcastMembership(ctx, 4)
	require.NoError(t, err)

	err = svc.RemoveParticipant(ctx, created.Thread.ID, 4)
	assert.True(t, errs.IsValidation(err))
	assert.Equal(t, []uint64{4}, activeUserIDs(repo.rowsFor(created.Thread.ID)))

	require.NoError(t, tracker.MarkRead(ctx, created.Thread, 4, repo.clock))
}

func TestCreator(t *testing.T) {
	_, _, svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateThread(ctx, directed("hi", 7, 7, 8))
	require.NoError(t, err)
	_, err = svc.Reply(ctx, created.Thread.ID, 8, "hello back")
	require.NoError(t, err)

	creator, err := svc.Creator(ctx, created.Thread.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), creator)

	_, err = svc.Creator(ctx, 999)
	assert.True(t, errs.IsNotFound(err))
}

func TestHasParticipant(t *testing.T) {
	_, _, svc, _ := newTestService()
	ctx := context.Background()

	direct, err := svc.CreateThread(ctx, directed("hi", 1, 1, 2))
	require.NoError(t, err)
	all, err := svc.CreateThread(ctx, broadcast("news"))
	require.NoError(t, err)

	ok, err := svc.HasParticipant(ctx, direct.Thread, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasParticipant(ctx, direct.Thread, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.HasParticipant(ctx, all.Thread, 12345)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReply_RestoresMembersAndMarksSenderRead(t *testing.T) {
	repo, _, svc, tracker := newTestService()
	ctx := context.Background()

	created, err := svc.CreateThread(ctx, directed("hi", 1, 1, 2))
	require.NoError(t, err)
	id := created.Thread.ID
	require.NoError(t, svc.RemoveParticipant(ctx, id, 2))

	reply, err := svc.Reply(ctx, id, 1, "again")
	require.NoError(t, err)
	assert.Equal(t, id, reply.ThreadID)

	rows := repo.rowsFor(id)
	assert.Len(t, rows, 2)
	assert.ElementsMatch(t, []uint64{1, 2}, activeUserIDs(rows))

	thread, err := svc.GetThread(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, reply.UpdatedAt, thread.UpdatedAt)

	unread, err := tracker.IsUnread(ctx, thread, 1)
	require.NoError(t, err)
	assert.False(t, unread)

	unread, err = tracker.IsUnread(ctx, thread, 2)
	require.NoError(t, err)
	assert.True(t, unread)

	latest, err := svc.LatestMessage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "again", latest.Body)
}

func TestReply_Errors(t *testing.T) {
	_, _, svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateThread(ctx, directed("hi", 1, 1, 2))
	require.NoError(t, err)

	_, err = svc.Reply(ctx, created.Thread.ID, 3, "let me in")
	assert.True(t, errs.IsNotFound(err))

	_, err = svc.Reply(ctx, created.Thread.ID, 1, "")
	assert.True(t, errs.IsValidation(err))

	_, err = svc.Reply(ctx, 999, 1, "nobody home")
	assert.True(t, errs.IsNotFound(err))
}

func TestInbox_IncludesBroadcastsNewestFirst(t *testing.T) {
	_, _, svc, _ := newTestService()
	ctx := context.Background()

	direct, err := svc.CreateThread(ctx, directed("direct", 1, 5))
	require.NoError(t, err)
	all, err := svc.CreateThread(ctx, broadcast("news"))
	require.NoError(t, err)

	inbox, err := svc.Inbox(ctx, 5)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, all.Thread.ID, inbox[0].ID)
	assert.Equal(t, direct.Thread.ID, inbox[1].ID)
	for _, s := range inbox {
		assert.True(t, s.Unread)
	}
	require.NotNil(t, inbox[0].Latest)
	assert.Equal(t, "news body", inbox[0].Latest.Body)

	_, err = svc.Reply(ctx, direct.Thread.ID, 5, "follow up")
	require.NoError(t, err)
	inbox, err = svc.Inbox(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, direct.Thread.ID, inbox[0].ID)
	assert.Equal(t, "follow up", inbox[0].Latest.Body)
}

func TestBetween(t *testing.T) {
	_, _, svc, _ := newTestService()
	ctx := context.Background()

	shared, err := svc.CreateThread(ctx, directed("shared", 1, 1, 2))
	require.NoError(t, err)
	_, err = svc.CreateThread(ctx, directed("other", 1, 1, 3))
	require.NoError(t, err)

	threads, err := svc.Between(ctx, 1, []uint64{2, 1, 2})
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, shared.Thread.ID, threads[0].ID)

	threads, err = svc.Between(ctx, 4, []uint64{1, 2})
	require.NoError(t, err)
	assert.Empty(t, threads)

	_, err = svc.Between(ctx, 1, nil)
	assert.True(t, errs.IsValidation(err))
}

func TestFindBySubject_EscapesWildcards(t *testing.T) {
	repo, _, svc, _ := newTestService()

	_, err := svc.FindBySubject(context.Background(), 1, " 50%_off ")
	require.NoError(t, err)
	assert.Equal(t, `%50\%\_off%`, repo.lastPattern)

	_, err = svc.FindBySubject(context.Background(), 1, "")
	assert.True(t, errs.IsValidation(err))
}

func TestFindBySubject_OnlyCallersThreads(t *testing.T) {
	_, _, svc, _ := newTestService()
	ctx := context.Background()

	mine, err := svc.CreateThread(ctx, directed("salary review", 1, 1, 2))
	require.NoError(t, err)
	_, err = svc.CreateThread(ctx, directed("salary secrets", 3, 3, 4))
	require.NoError(t, err)
	news, err := svc.CreateThread(ctx, broadcast("salary day"))
	require.NoError(t, err)

	threads, err := svc.FindBySubject(ctx, 2, "salary")
	require.NoError(t, err)
	var ids []uint64
	for _, th := range threads {
		ids = append(ids, th.ID)
	}
	assert.ElementsMatch(t, []uint64{mine.Thread.ID, news.Thread.ID}, ids)

	threads, err = svc.FindBySubject(ctx, 5, "secrets")
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestDeleteThread(t *testing.T) {
	_, _, svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateThread(ctx, directed("bye", 1, 2))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteThread(ctx, created.Thread.ID))
	_, err = svc.GetThread(ctx, created.Thread.ID)
	assert.True(t, errs.IsNotFound(err))
	assert.True(t, errs.IsNotFound(svc.DeleteThread(ctx, created.Thread.ID)))
}
