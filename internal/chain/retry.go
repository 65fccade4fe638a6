package chain

import (
	"fmt"
	"time"

	"github.com/xanderslabs/Fundit/internal/logger"
)

const (
	// DefaultRetryAttempts 默认重试次数
	DefaultRetryAttempts = 3
	// DefaultRetryDelay 默认重试间隔，固定间隔不做指数退避
	DefaultRetryDelay = 2 * time.Second
)

// WithRetry 包装链调用，固定次数加固定间隔重试
// 重试耗尽后返回最后一次错误并标记为RPC失败
func WithRetry[T any](op string, attempts int, delay time.Duration, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}

	for i := 0; i < attempts; i++ {
		result, lastErr = fn()
		if lastErr == nil {
			if i > 0 {
				logger.Warn("RPC call %s succeeded after %d attempts", op, i+1)
			}
			return result, nil
		}

		if i < attempts-1 {
			logger.Debug("RPC call %s failed (attempt %d/%d): %v", op, i+1, attempts, lastErr)
			time.Sleep(delay)
		}
	}

	return result, fmt.Errorf("rpc failure: %s after %d attempts: %w", op, attempts, lastErr)
}
