package repository

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"match_chat/internal/apperr"
	"match_chat/internal/models"
	"match_chat/internal/storage"
)

func newSQLiteRepository(t *testing.T) MessageRepository {
	t.Helper()
	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Message{}))
	t.Cleanup(func() { _ = db.Close() })
	return NewMessageRepository(db)
}

func newBadgerRepository(t *testing.T) MessageRepository {
	t.Helper()
	db, err := storage.OpenBadger(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	repo, err := NewBadgerMessageRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.Close()
		_ = db.Close()
	})
	return repo
}

// 兩種後端必須提供相同的行為
var backends = map[string]func(t *testing.T) MessageRepository{
	"sqlite": newSQLiteRepository,
	"badger": newBadgerRepository,
}

func TestMessageRepository_AppendThenRead(t *testing.T) {
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			repo := newRepo(t)

			msg := models.NewMessage("u1", "u2", "hi", map[string]any{"client": "web"})
			req.NoError(repo.Append(ctx, msg))

			req.NotZero(msg.ID)
			req.False(msg.CreatedAt.IsZero())

			history, err := repo.FindByConversation(ctx, msg.ConversationID)
			req.NoError(err)
			req.Len(history, 1)
			req.Equal(msg.ID, history[0].ID)
			req.Equal("u1_u2", history[0].ConversationID)
			req.Equal("u1", history[0].SenderID)
			req.Equal("u2", history[0].ReceiverID)
			req.Equal("hi", history[0].Body)
			req.False(history[0].Read)
			req.Equal("web", history[0].Metadata["client"])
			// 時間精度與 Postgres 一致，讀回的值與寫入時回傳的完全相同
			req.Equal(msg.CreatedAt.Truncate(time.Microsecond), msg.CreatedAt)
			req.True(msg.CreatedAt.Equal(history[0].CreatedAt))
		})
	}
}

func TestMessageRepository_AppendIsIdempotent(t *testing.T) {
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			repo := newRepo(t)

			// Given a message that was already committed
			msg := models.NewMessage("u1", "u2", "once", nil)
			req.NoError(repo.Append(ctx, msg))

			// When the same message is appended again with the same key
			retry := *msg
			retry.ID = 0
			retry.CreatedAt = time.Time{}
			req.NoError(repo.Append(ctx, &retry))

			// Then the stored row is returned and nothing new is written
			req.Equal(msg.ID, retry.ID)
			req.True(msg.CreatedAt.Equal(retry.CreatedAt))
			history, err := repo.FindByConversation(ctx, msg.ConversationID)
			req.NoError(err)
			req.Len(history, 1)

			// A different key is a different message
			req.NoError(repo.Append(ctx, models.NewMessage("u1", "u2", "once", nil)))
			history, err = repo.FindByConversation(ctx, msg.ConversationID)
			req.NoError(err)
			req.Len(history, 2)
		})
	}
}

func TestMessageRepository_HistoryOrder(t *testing.T) {
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			repo := newRepo(t)

			t0 := time.Now().UTC().Truncate(time.Millisecond)
			bodies := []string{"first", "second", "third"}
			for i, body := range bodies {
				msg := models.NewMessage("u1", "u2", body, nil)
				msg.CreatedAt = t0.Add(time.Duration(i) * time.Second)
				req.NoError(repo.Append(ctx, msg))
			}
			// 其他對話不應混入
			req.NoError(repo.Append(ctx, models.NewMessage("u1", "u3", "elsewhere", nil)))

			history, err := repo.FindByConversation(ctx, models.ConversationID("u2", "u1"))
			req.NoError(err)
			req.Len(history, len(bodies))
			for i, body := range bodies {
				req.Equal(body, history[i].Body)
			}
			req.Less(history[0].ID, history[1].ID)
			req.Less(history[1].ID, history[2].ID)
		})
	}
}

func TestMessageRepository_UnknownConversationIsEmpty(t *testing.T) {
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			repo := newRepo(t)

			history, err := repo.FindByConversation(context.Background(), "nobody_someone")

			req.NoError(err)
			req.NotNil(history)
			req.Empty(history)
		})
	}
}

func TestMessageRepository_MarkRead(t *testing.T) {
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			repo := newRepo(t)

			req.NoError(repo.Append(ctx, models.NewMessage("u1", "u2", "a", nil)))
			req.NoError(repo.Append(ctx, models.NewMessage("u1", "u2", "b", nil)))
			req.NoError(repo.Append(ctx, models.NewMessage("u2", "u1", "c", nil)))

			// u2 讀取：只更新寄給 u2 的兩則
			updated, err := repo.MarkRead(ctx, "u1_u2", "u2")
			req.NoError(err)
			req.EqualValues(2, updated)

			// 再次標記不會有變化
			updated, err = repo.MarkRead(ctx, "u1_u2", "u2")
			req.NoError(err)
			req.EqualValues(0, updated)

			history, err := repo.FindByConversation(ctx, "u1_u2")
			req.NoError(err)
			req.Len(history, 3)
			req.True(history[0].Read)
			req.True(history[1].Read)
			req.False(history[2].Read)
		})
	}
}

func TestMessageRepository_CanceledContextIsStorageError(t *testing.T) {
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			repo := newRepo(t)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := repo.Append(ctx, models.NewMessage("u1", "u2", "late", nil))

			req.ErrorIs(err, apperr.ErrStorage)
		})
	}
}

func TestRepositories_Badger(t *testing.T) {
	req := require.New(t)
	db, err := storage.OpenBadger("", zerolog.Nop())
	req.NoError(err)
	defer db.Close()

	repos, err := NewBadgerRepositories(db)
	req.NoError(err)
	req.NotNil(repos.Message)
	req.NoError(repos.Close())
}
