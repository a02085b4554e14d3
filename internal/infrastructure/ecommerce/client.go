package ecommerce

import (
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const userAgent = "connhub/1.0"

// newHTTPClient creates the resty client shared by one adapter
func newHTTPClient(timeoutSeconds int, logger *zap.Logger) *resty.Client {
	client := resty.New().
		SetTimeout(time.Duration(timeoutSeconds)*time.Second).
		SetHeader("User-Agent", userAgent)

	if logger != nil {
		client.SetLogger(&restyLogger{logger: logger.Sugar()})
		client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			logger.Debug("provider response",
				zap.String("method", resp.Request.Method),
				zap.String("url", resp.Request.URL),
				zap.Int("status", resp.StatusCode()),
				zap.Duration("latency", resp.Time()),
			)
			return nil
		})
	}
	return client
}

// restyLogger adapts zap to resty's logger interface
type restyLogger struct {
	logger *zap.SugaredLogger
}

func (l *restyLogger) Errorf(format string, v ...any) { l.logger.Errorf(format, v...) }
func (l *restyLogger) Warnf(format string, v ...any)  { l.logger.Warnf(format, v...) }
func (l *restyLogger) Debugf(format string, v ...any) { l.logger.Debugf(format, v...) }
