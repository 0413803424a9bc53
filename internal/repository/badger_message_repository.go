package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"match_chat/internal/apperr"
	"match_chat/internal/models"
)

const (
	messageSequenceKey = "seq:messages"
	sequenceBandwidth  = 100
)

// BadgerMessageRepository 以 Badger 儲存訊息日誌
//
// 鍵的格式為 "msg:{conversation_id}:{id 補零至 20 位}"：
// 對話 ID 不含冒號，因此前綴掃描不會跨到其他對話；
// ID 來自 Badger Sequence 且補零，字典序即為追加順序。
// "idem:{idempotency_key}" 指向訊息的鍵，重試的寫入不會重複。
type BadgerMessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	// 讓 ID 與 CreatedAt 以相同順序配發
	mu sync.Mutex
}

func NewBadgerMessageRepository(db *badger.DB) (*BadgerMessageRepository, error) {
	seq, err := db.GetSequence([]byte(messageSequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire message sequence: %w", err)
	}
	return &BadgerMessageRepository{db: db, seq: seq}, nil
}

// Close 歸還尚未使用的序號區段
func (r *BadgerMessageRepository) Close() error {
	return r.seq.Release()
}

func messagePrefix(conversationID string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", conversationID))
}

func idempotencyKey(key string) []byte {
	return []byte("idem:" + key)
}

func messageKey(conversationID string, id uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%020d", conversationID, id))
}

func (r *BadgerMessageRepository) Append(ctx context.Context, message *models.Message) error {
	if err := ctx.Err(); err != nil {
		return apperr.Storage(err, "append message")
	}

	if message.IdempotencyKey == "" {
		message.IdempotencyKey = uuid.NewString()
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		// 先前的嘗試已提交時，回傳既有的那一筆
		item, err := txn.Get(idempotencyKey(message.IdempotencyKey))
		switch {
		case err == nil:
			return loadExisting(txn, item, message)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := r.assign(message); err != nil {
			return err
		}
		value, err := json.Marshal(message)
		if err != nil {
			return err
		}
		key := messageKey(message.ConversationID, message.ID)
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(idempotencyKey(message.IdempotencyKey), key)
	})
	if err != nil {
		return apperr.Storage(err, "append message")
	}
	return nil
}

// assign 以相同順序配發 ID 與 CreatedAt
func (r *BadgerMessageRepository) assign(message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := r.seq.Next()
	if err != nil {
		return fmt.Errorf("allocate message id: %w", err)
	}
	// Sequence 從 0 開始，ID 0 保留給尚未持久化的訊息
	message.ID = next + 1
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now()
	}
	return nil
}

func loadExisting(txn *badger.Txn, index *badger.Item, message *models.Message) error {
	key, err := index.ValueCopy(nil)
	if err != nil {
		return err
	}
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(value []byte) error {
		return json.Unmarshal(value, message)
	})
}

func (r *BadgerMessageRepository) FindByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	messages := []models.Message{}
	err := r.db.View(func(txn *badger.Txn) error {
		return scanConversation(ctx, txn, conversationID, func(_ []byte, m models.Message) error {
			messages = append(messages, m)
			return nil
		})
	})
	if err != nil {
		return nil, apperr.Storage(err, "read history")
	}
	return messages, nil
}

func (r *BadgerMessageRepository) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	var updated int64
	err := r.db.Update(func(txn *badger.Txn) error {
		pending := map[string][]byte{}
		err := scanConversation(ctx, txn, conversationID, func(key []byte, m models.Message) error {
			if m.ReceiverID != readerID || m.Read {
				return nil
			}
			m.Read = true
			value, err := json.Marshal(m)
			if err != nil {
				return err
			}
			pending[string(key)] = value
			return nil
		})
		if err != nil {
			return err
		}
		for key, value := range pending {
			if err := txn.Set([]byte(key), value); err != nil {
				return err
			}
		}
		updated = int64(len(pending))
		return nil
	})
	if err != nil {
		return 0, apperr.Storage(err, "mark messages read")
	}
	return updated, nil
}

func scanConversation(ctx context.Context, txn *badger.Txn, conversationID string, fn func(key []byte, m models.Message) error) error {
	prefix := messagePrefix(conversationID)
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := it.Item()
		var m models.Message
		err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, &m)
		})
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), m); err != nil {
			return err
		}
	}
	return nil
}
