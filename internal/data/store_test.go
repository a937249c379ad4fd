package data

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khmercoders/kcbot/internal/biz/domain"
)

func openTestRepos(t *testing.T) *Repositories {
	t.Helper()
	repos, err := NewRepositories(filepath.Join(t.TempDir(), "nested", "kcbot.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

var t0 = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func stored(id, chatID, text string, at time.Time) *domain.StoredMessage {
	return &domain.StoredMessage{
		Platform:    domain.PlatformTelegram,
		MessageID:   id,
		ChatID:      chatID,
		ChatType:    domain.ChatTypeSupergroup,
		ChatTitle:   "KhmerCoders",
		SenderID:    domain.Optional("7"),
		SenderName:  "Dara",
		Text:        text,
		MessageDate: at,
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kcbot.db")

	db, err := OpenDB(path, 1000)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenDB(path, 1000)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestAppendMessageRoundTrip(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()

	photo := domain.MediaPhoto
	msg := stored("1", "-1001", "look at this", t0.In(time.FixedZone("ICT", 7*3600)))
	msg.MediaType = &photo
	msg.ForwardedFrom = domain.Optional("Sok")
	msg.ReplyToMessageID = domain.Optional("0")
	msg.ThreadID = domain.Optional("12")

	inserted, err := repos.Message.AppendMessage(ctx, msg)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, msg.ID)

	got, err := repos.Message.FetchRecent(ctx, "-1001", 10, "")
	require.NoError(t, err)
	require.Len(t, got, 1)

	m := got[0]
	assert.Equal(t, msg.ID, m.ID)
	assert.Equal(t, domain.ChatTypeSupergroup, m.ChatType)
	assert.True(t, m.MessageDate.Equal(t0))
	assert.Equal(t, time.UTC, m.MessageDate.Location())
	require.NotNil(t, m.MediaType)
	assert.Equal(t, domain.MediaPhoto, *m.MediaType)
	assert.Equal(t, "Sok", *m.ForwardedFrom)
	assert.Equal(t, "0", *m.ReplyToMessageID)
	assert.Equal(t, "12", *m.ThreadID)
	assert.Equal(t, "7", *m.SenderID)
}

func TestAppendMessageIsIdempotent(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()

	inserted, err := repos.Message.AppendMessage(ctx, stored("1", "-1001", "first", t0))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repos.Message.AppendMessage(ctx, stored("1", "-1001", "edited", t0))
	require.NoError(t, err)
	assert.False(t, inserted)

	// Same message id in another chat is a different message
	inserted, err = repos.Message.AppendMessage(ctx, stored("1", "-1002", "other chat", t0))
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := repos.Message.FetchRecent(ctx, "-1001", 0, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Text)
}

func TestFetchRecentWindow(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()

	for i := 1; i <= 500; i++ {
		_, err := repos.Message.AppendMessage(ctx, stored(fmt.Sprint(i), "-1001", fmt.Sprintf("m%d", i), t0.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	got, err := repos.Message.FetchRecent(ctx, "-1001", 200, "")
	require.NoError(t, err)
	require.Len(t, got, 200)
	assert.Equal(t, "m500", got[0].Text)
	assert.Equal(t, "m301", got[199].Text)

	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].MessageDate.After(got[i-1].MessageDate))
	}
}

func TestFetchRecentFilters(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()

	inThread := stored("1", "-1001", "in thread", t0)
	inThread.ThreadID = domain.Optional("5")
	otherThread := stored("2", "-1001", "other thread", t0.Add(time.Second))
	otherThread.ThreadID = domain.Optional("6")
	empty := stored("3", "-1001", "", t0.Add(2*time.Second))
	otherChat := stored("4", "-2002", "other chat", t0.Add(3*time.Second))

	// Equal timestamps fall back to insertion order
	sameTimeA := stored("5", "-1001", "same a", t0.Add(4*time.Second))
	sameTimeB := stored("6", "-1001", "same b", t0.Add(4*time.Second))

	for _, m := range []*domain.StoredMessage{inThread, otherThread, empty, otherChat, sameTimeA, sameTimeB} {
		_, err := repos.Message.AppendMessage(ctx, m)
		require.NoError(t, err)
	}

	all, err := repos.Message.FetchRecent(ctx, "-1001", 10, "")
	require.NoError(t, err)
	var texts []string
	for _, m := range all {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"same b", "same a", "other thread", "in thread"}, texts)

	thread, err := repos.Message.FetchRecent(ctx, "-1001", 10, "5")
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, "in thread", thread[0].Text)

	none, err := repos.Message.FetchRecent(ctx, "-404", 10, "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpsertUserActivity(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.User.UpsertUserActivity(ctx, domain.PlatformTelegram, "7", "Dara", 5))
	require.NoError(t, repos.User.UpsertUserActivity(ctx, domain.PlatformTelegram, "7", "Dara Sok", 3))

	a, err := repos.User.GetUserActivity(ctx, domain.PlatformTelegram, "7")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, int64(2), a.MessageCount)
	assert.Equal(t, int64(8), a.TotalCharacters)
	assert.Equal(t, "Dara Sok", a.DisplayName)
	assert.Nil(t, a.LinkedUserID)
	assert.False(t, a.UpdatedAt.IsZero())

	missing, err := repos.User.GetUserActivity(ctx, domain.PlatformTelegram, "8")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsertUserActivityConcurrent(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repos.User.UpsertUserActivity(ctx, domain.PlatformTelegram, "7", "Dara", 1))
		}()
	}
	wg.Wait()

	a, err := repos.User.GetUserActivity(ctx, domain.PlatformTelegram, "7")
	require.NoError(t, err)
	assert.Equal(t, int64(20), a.MessageCount)
	assert.Equal(t, int64(20), a.TotalCharacters)
}

func TestUpsertAccountLink(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.User.UpsertUserActivity(ctx, domain.PlatformTelegram, "7", "Dara", 4))
	require.NoError(t, repos.User.UpsertAccountLink(ctx, &domain.AccountLink{
		Platform: domain.PlatformTelegram, UserID: "7", DisplayName: "Dara S", LinkedUserID: "kc-1",
	}))
	require.NoError(t, repos.User.UpsertAccountLink(ctx, &domain.AccountLink{
		Platform: domain.PlatformTelegram, UserID: "7", DisplayName: "Dara Sok", LinkedUserID: "kc-2",
	}))

	a, err := repos.User.GetUserActivity(ctx, domain.PlatformTelegram, "7")
	require.NoError(t, err)
	require.NotNil(t, a.LinkedUserID)
	assert.Equal(t, "kc-2", *a.LinkedUserID)
	assert.Equal(t, "Dara Sok", a.DisplayName)
	assert.Equal(t, int64(1), a.MessageCount)

	// Linking a user that never wrote creates the row with zero counters
	require.NoError(t, repos.User.UpsertAccountLink(ctx, &domain.AccountLink{
		Platform: domain.PlatformTelegram, UserID: "9", DisplayName: "New", LinkedUserID: "kc-9",
	}))
	fresh, err := repos.User.GetUserActivity(ctx, domain.PlatformTelegram, "9")
	require.NoError(t, err)
	assert.Zero(t, fresh.MessageCount)
}

func TestThreadBlacklist(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()

	blocked, err := repos.Thread.IsThreadBlacklisted(ctx, "5")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, repos.Thread.AddToBlacklist(ctx, &domain.ThreadBlacklistEntry{ThreadID: "5", Reason: "memes", CreatedAt: t0}))
	require.NoError(t, repos.Thread.AddToBlacklist(ctx, &domain.ThreadBlacklistEntry{ThreadID: "6", CreatedAt: t0.Add(time.Minute)}))
	require.NoError(t, repos.Thread.AddToBlacklist(ctx, &domain.ThreadBlacklistEntry{ThreadID: "5", Reason: "off topic"}))

	blocked, err = repos.Thread.IsThreadBlacklisted(ctx, "5")
	require.NoError(t, err)
	assert.True(t, blocked)

	entries, err := repos.Thread.ListBlacklist(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "5", entries[0].ThreadID)
	assert.Equal(t, "off topic", entries[0].Reason)
	assert.True(t, entries[0].CreatedAt.Equal(t0))

	require.NoError(t, repos.Thread.RemoveFromBlacklist(ctx, "5"))
	require.NoError(t, repos.Thread.RemoveFromBlacklist(ctx, "missing"))
	blocked, err = repos.Thread.IsThreadBlacklisted(ctx, "5")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestStoreErrorsAreTyped(t *testing.T) {
	repos := openTestRepos(t)
	require.NoError(t, repos.Close())

	_, err := repos.Message.AppendMessage(context.Background(), stored("1", "-1001", "x", t0))
	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "append message", storeErr.Op)

	_, err = repos.Thread.IsThreadBlacklisted(context.Background(), "5")
	assert.ErrorAs(t, err, &storeErr)
}
