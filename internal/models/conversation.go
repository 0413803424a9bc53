package models

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

// conversationSeparator 不屬於合法使用者 ID 的字元集合，因此可以無歧義地拆回兩個參與者
const conversationSeparator = "_"

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

var (
	ErrInvalidUserID         = errors.New("invalid user id")
	ErrInvalidConversationID = errors.New("invalid conversation id")
)

// ValidUserID 檢查使用者 ID 是否符合格式
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

// ConversationID 由兩位參與者推導出對話 ID，與參數順序無關
func ConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, conversationSeparator)
}

// ParseConversationID 驗證對話 ID 的結構並回傳兩位參與者（已排序）
func ParseConversationID(id string) (string, string, error) {
	a, b, ok := strings.Cut(id, conversationSeparator)
	if !ok || !ValidUserID(a) || !ValidUserID(b) {
		return "", "", ErrInvalidConversationID
	}
	// 只接受正規形式，避免同一對話出現兩個 ID
	if a >= b {
		return "", "", ErrInvalidConversationID
	}
	return a, b, nil
}

// IsParticipant 回傳 userID 是否為對話的一方
func IsParticipant(conversationID, userID string) bool {
	a, b, err := ParseConversationID(conversationID)
	if err != nil {
		return false
	}
	return userID == a || userID == b
}
