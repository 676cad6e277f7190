// Package http provides the outbound HTTP client and the health endpoints.
package http

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient は外部サービス（S3互換ストレージなど）呼び出し用のHTTPクライアントを作成します。
//
// http.DefaultClient にはタイムアウトがないため使用しないこと。
// timeout はリクエスト全体（アップロード本体の送信を含む）の上限です。
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}
