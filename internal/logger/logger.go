package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New はGO_ENVに応じたzapロガーを作る。
// dev はコンソール形式、それ以外はJSON。
func New(env string) (*zap.Logger, error) {
	if env == "dev" || env == "test" {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Redact はヘッダ値などの秘密情報を伏せる
func Redact(v string) string {
	if len(v) <= 4 {
		return "***"
	}
	return v[:4] + "***"
}
