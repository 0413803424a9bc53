// Package api 處理 HTTP 請求路由和處理。
//
// REST 端點與 WebSocket 連接點都掛在 /api 之下，handlers 只負責
// 身分判斷與請求轉換，訊息的驗證、儲存與廣播交由 service 套件處理。
package api
