package chromedriver

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumenforge/aria/internal/logutil"
)

// bridgeLogger adapts a logutil.LoggerInterface into a *zap.Logger via
// a zapcore.Core shim, so chromedp's own trace logging joins the
// pipeline's structured log stream instead of going to a second sink.
func bridgeLogger(pipelineLogger logutil.LoggerInterface) *zap.Logger {
	if pipelineLogger == nil {
		return zap.NewNop()
	}
	core := &pipelineCore{logger: pipelineLogger}
	return zap.New(core)
}

type pipelineCore struct {
	logger logutil.LoggerInterface
	fields []zapcore.Field
}

func (c *pipelineCore) Enabled(zapcore.Level) bool { return true }

func (c *pipelineCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &pipelineCore{logger: c.logger, fields: merged}
}

func (c *pipelineCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return checked.AddCore(entry, c)
}

func (c *pipelineCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	ctx := context.Background()
	switch {
	case entry.Level >= zapcore.ErrorLevel:
		c.logger.ErrorContext(ctx, entry.Message)
	case entry.Level >= zapcore.WarnLevel:
		c.logger.WarnContext(ctx, entry.Message)
	case entry.Level >= zapcore.InfoLevel:
		c.logger.InfoContext(ctx, entry.Message)
	default:
		c.logger.DebugContext(ctx, entry.Message)
	}
	return nil
}

func (c *pipelineCore) Sync() error { return nil }

// writeFile writes data to path, creating any missing parent directory.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
