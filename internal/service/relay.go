package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"match_chat/internal/apperr"
	"match_chat/internal/metrics"
	"match_chat/internal/models"
	"match_chat/internal/repository"
)

const maxMetadataKeys = 32

// SendInput 是送出訊息的輸入，REST 與 WebSocket 共用
type SendInput struct {
	SenderID       string         `json:"senderId" validate:"required,userid"`
	ReceiverID     string         `json:"receiverId" validate:"required,userid,nefield=SenderID"`
	Body           string         `json:"body" validate:"required,notblank"`
	ConversationID string         `json:"conversationId,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type RelayOptions struct {
	MaxBodyLength  int
	StorageTimeout time.Duration
	StorageRetries int
	RetryBackoff   time.Duration
	// EchoToSender 為 true 時發送連線也會收到自己的 delivered 事件
	EchoToSender bool
}

// RelayService 驗證、持久化，然後廣播訊息給對話中目前的連線
type RelayService struct {
	repo     repository.MessageRepository
	registry *RoomRegistry
	validate *validator.Validate
	opts     RelayOptions
	log      zerolog.Logger
}

func NewRelayService(repo repository.MessageRepository, registry *RoomRegistry, opts RelayOptions, log zerolog.Logger) *RelayService {
	return &RelayService{
		repo:     repo,
		registry: registry,
		validate: newValidator(),
		opts:     opts,
		log:      log,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 錯誤訊息使用 JSON 欄位名稱
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("userid", func(fl validator.FieldLevel) bool {
		return models.ValidUserID(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Send 驗證輸入、持久化訊息，成功後才廣播給對話中的連線
// origin 為發起的連線（REST 呼叫時為 nil），預設不會收到自己的 delivered 事件
func (s *RelayService) Send(ctx context.Context, in SendInput, origin *Session) (*models.Message, error) {
	metadata, err := s.check(in)
	if err != nil {
		metrics.MessagesSent.WithLabelValues("validation").Inc()
		return nil, err
	}

	msg := models.NewMessage(in.SenderID, in.ReceiverID, in.Body, metadata)
	if err := s.persist(ctx, msg); err != nil {
		metrics.MessagesSent.WithLabelValues("storage").Inc()
		s.log.Error().Err(err).
			Str("conversation_id", msg.ConversationID).
			Str("sender_id", msg.SenderID).
			Msg("message not persisted, nothing broadcast")
		return nil, err
	}
	metrics.MessagesSent.WithLabelValues("ok").Inc()

	s.broadcast(msg.ConversationID, models.NewDeliveredEvent(msg), origin, s.opts.EchoToSender)
	return msg, nil
}

// MarkRead 將 readerID 收到的訊息標為已讀，並通知對話中其他連線
func (s *RelayService) MarkRead(ctx context.Context, conversationID, readerID string, origin *Session) (int64, error) {
	if _, _, err := models.ParseConversationID(conversationID); err != nil {
		return 0, apperr.NotFound("conversation %q is not a valid identifier", conversationID)
	}
	if !models.IsParticipant(conversationID, readerID) {
		return 0, apperr.Forbidden("user %s is not a participant of %s", readerID, conversationID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()
	updated, err := s.repo.MarkRead(ctx, conversationID, readerID)
	if err != nil {
		return 0, apperr.Storage(err, "mark messages read")
	}
	if updated > 0 {
		s.broadcast(conversationID, models.NewReadEvent(conversationID, readerID, updated), origin, false)
	}
	return updated, nil
}

// check 驗證輸入並正規化 metadata，失敗時回傳 ValidationError
func (s *RelayService) check(in SendInput) (map[string]any, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if err := s.validate.Var(in.Body, fmt.Sprintf("max=%d", s.opts.MaxBodyLength)); err != nil {
		return nil, apperr.Validation("body exceeds %d characters", s.opts.MaxBodyLength)
	}
	if in.ConversationID != "" && in.ConversationID != models.ConversationID(in.SenderID, in.ReceiverID) {
		return nil, apperr.Validation("conversationId %q does not match the sender and receiver", in.ConversationID)
	}
	return normalizeMetadata(in.Metadata)
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Validation("invalid input")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return apperr.Validation("%s is required", fe.Field())
	case "userid":
		return apperr.Validation("%s must be 1-64 letters, digits or '-'", fe.Field())
	case "nefield":
		return apperr.Validation("senderId and receiverId must differ")
	}
	return apperr.Validation("%s is invalid", fe.Field())
}

// normalizeMetadata 將字串形式的布林值轉為布林，其餘值原樣保留
func normalizeMetadata(in map[string]any) (map[string]any, error) {
	if len(in) > maxMetadataKeys {
		return nil, apperr.Validation("metadata has more than %d keys", maxMetadataKeys)
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		if strings.TrimSpace(key) == "" {
			return nil, apperr.Validation("metadata keys must not be empty")
		}
		switch value {
		case "true":
			out[key] = true
		case "false":
			out[key] = false
		default:
			out[key] = value
		}
	}
	return out, nil
}

// persist 在逾時限制內寫入訊息；重試次數由設定決定，預設不重試
func (s *RelayService) persist(ctx context.Context, msg *models.Message) error {
	for attempt := 0; ; attempt++ {
		err := s.appendOnce(ctx, msg)
		if err == nil {
			return nil
		}
		if attempt >= s.opts.StorageRetries || ctx.Err() != nil {
			return apperr.Storage(err, "append message")
		}

		s.log.Warn().Err(err).
			Int("attempt", attempt+1).
			Str("conversation_id", msg.ConversationID).
			Msg("append failed, retrying")

		select {
		case <-ctx.Done():
			return apperr.Storage(ctx.Err(), "append message")
		case <-time.After(s.opts.RetryBackoff):
		}
	}
}

func (s *RelayService) appendOnce(ctx context.Context, msg *models.Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	start := time.Now()
	// 失敗的寫入不應留下部分欄位
	msg.ID = 0
	msg.CreatedAt = time.Time{}
	err := s.repo.Append(ctx, msg)
	metrics.StorageLatency.Observe(time.Since(start).Seconds())
	return err
}

// broadcast 對當下的成員快照投遞事件，個別連線失敗只記錄不回報
func (s *RelayService) broadcast(conversationID string, event models.Event, origin *Session, includeOrigin bool) {
	members := s.registry.MembersOf(conversationID)
	delivered := 0
	for _, member := range members {
		if member == origin && !includeOrigin {
			continue
		}
		if err := member.Deliver(event); err != nil {
			outcome := "closed"
			if errors.Is(err, ErrBufferFull) {
				outcome = "buffer_full"
			}
			metrics.Deliveries.WithLabelValues(outcome).Inc()
			s.log.Debug().Err(err).
				Str("session_id", member.ID).
				Str("conversation_id", conversationID).
				Msg("delivery skipped")
			continue
		}
		metrics.Deliveries.WithLabelValues("ok").Inc()
		delivered++
	}
	s.log.Debug().
		Str("conversation_id", conversationID).
		Str("event", string(event.Type)).
		Int("members", len(members)).
		Int("delivered", delivered).
		Msg("broadcast")
}
