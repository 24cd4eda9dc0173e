package convai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketDialer opens the vendor socket. *websocket.Dialer satisfies it;
// tests inject their own.
type WebsocketDialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// ConnectionOptions 连接配置选项
type ConnectionOptions struct {
	HandshakeTimeout time.Duration // 握手超时时间
	WriteTimeout     time.Duration // 写入超时时间
	PingInterval     time.Duration // Ping间隔
}

// DefaultConnectionOptions 默认连接选项
func DefaultConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		HandshakeTimeout: 15 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

func newDialer(opts ConnectionOptions) *websocket.Dialer {
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
	}
}

// pingLoop keeps idle connections alive through proxies until done closes.
func pingLoop(conv *conversation, interval, writeTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-conv.done:
			return
		case <-ticker.C:
			if err := conv.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// isCleanClose reports whether err is the vendor ending the conversation
// normally rather than a dropped connection.
func isCleanClose(err error) bool {
	if err == nil {
		return false
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway
	}
	return false
}
