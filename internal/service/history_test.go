package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"match_chat/internal/apperr"
	"match_chat/internal/mocks"
	"match_chat/internal/models"
	"match_chat/internal/repository"
	"match_chat/internal/storage"
)

type chatFixture struct {
	repo     repository.MessageRepository
	sessions *SessionManager
	relay    *RelayService
	history  *HistoryService
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Message{}))
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewMessageRepository(db)
	sessions, registry := newTestSessions(8)
	return &chatFixture{
		repo:     repo,
		sessions: sessions,
		relay:    NewRelayService(repo, registry, testRelayOptions(), zerolog.Nop()),
		history:  NewHistoryService(repo, time.Second),
	}
}

func TestHistoryService_ReadAfterWrite(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	// Given u1 sends "hi" to u2 while u2 is offline
	msg, err := f.relay.Send(ctx, SendInput{SenderID: "u1", ReceiverID: "u2", Body: "hi"}, nil)
	req.NoError(err)
	req.NotZero(msg.ID)
	req.False(msg.Read)
	req.Equal("u1_u2", msg.ConversationID)

	// When u2 connects, joins and reads the history
	s2 := f.sessions.Connect("u2")
	_, err = f.sessions.JoinConversation(s2, msg.ConversationID)
	req.NoError(err)
	history, err := f.history.GetHistory(ctx, msg.ConversationID)

	// Then exactly that message is returned
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(msg.ID, history[0].ID)
	req.Equal("hi", history[0].Body)
	req.Equal("u1", history[0].SenderID)
	req.Empty(drain(s2))
}

func TestHistoryService_Ordering(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	bodies := []string{"first", "second", "third"}
	for i, body := range bodies {
		sender, receiver := "u1", "u2"
		if i%2 == 1 {
			sender, receiver = receiver, sender
		}
		_, err := f.relay.Send(ctx, SendInput{SenderID: sender, ReceiverID: receiver, Body: body}, nil)
		req.NoError(err)
	}

	history, err := f.history.Between(ctx, "u2", "u1")

	req.NoError(err)
	req.Len(history, 3)
	for i, body := range bodies {
		req.Equal(body, history[i].Body)
	}
	req.False(history[1].CreatedAt.Before(history[0].CreatedAt))
	req.False(history[2].CreatedAt.Before(history[1].CreatedAt))
}

func TestHistoryService_EmptyConversation(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	history, err := f.history.GetHistory(context.Background(), "u1_u9")

	req.NoError(err)
	req.NotNil(history)
	req.Empty(history)
}

func TestHistoryService_MalformedConversation(t *testing.T) {
	f := newChatFixture(t)

	for _, id := range []string{"", "u1", "u2_u1", "u1_u1", "u1_u2_u3"} {
		t.Run(id, func(t *testing.T) {
			_, err := f.history.GetHistory(context.Background(), id)
			require.ErrorIs(t, err, apperr.ErrNotFound)
		})
	}

	_, err := f.history.Between(context.Background(), "u1", "u1")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHistoryService_MarkReadIsVisible(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.relay.Send(ctx, SendInput{SenderID: "u1", ReceiverID: "u2", Body: "ping"}, nil)
	req.NoError(err)

	updated, err := f.relay.MarkRead(ctx, "u1_u2", "u2", nil)
	req.NoError(err)
	req.EqualValues(1, updated)

	history, err := f.history.GetHistory(ctx, "u1_u2")
	req.NoError(err)
	req.Len(history, 1)
	req.True(history[0].Read)
}

func TestRelayService_RetryAfterCommitPersistsOnce(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	ctx := context.Background()

	// Given a store whose first write commits but reports a failure
	ctrl := gomock.NewController(t)
	flaky := mocks.NewMockMessageRepository(ctrl)
	gomock.InOrder(
		flaky.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, m *models.Message) error {
			if err := f.repo.Append(ctx, m); err != nil {
				return err
			}
			return errors.New("connection reset after commit")
		}),
		flaky.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(f.repo.Append),
	)
	opts := testRelayOptions()
	opts.StorageRetries = 1
	relay := NewRelayService(flaky, NewRoomRegistry(), opts, zerolog.Nop())

	// When the send is retried
	msg, err := relay.Send(ctx, SendInput{SenderID: "u1", ReceiverID: "u2", Body: "once"}, nil)
	req.NoError(err)

	// Then exactly one row exists and it is the returned message
	history, err := f.history.GetHistory(ctx, msg.ConversationID)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(msg.ID, history[0].ID)
	req.True(msg.CreatedAt.Equal(history[0].CreatedAt))
}
