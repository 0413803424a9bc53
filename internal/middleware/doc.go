// Package middleware 提供了 HTTP 請求處理的中間件。
//
// 包含 JWT 身分驗證、zerolog 請求日誌與 Prometheus 請求指標。
package middleware
