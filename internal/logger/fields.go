package logger

import (
	"time"

	"go.uber.org/zap"
)

func RequestID(v string) zap.Field       { return zap.String("request_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

func Component(v string) zap.Field  { return zap.String("component", v) }
func Op(v string) zap.Field         { return zap.String("op", v) }
func Collection(v string) zap.Field { return zap.String("collection", v) }
func UserID(v int64) zap.Field      { return zap.Int64("user_id", v) }
func PostID(v int64) zap.Field      { return zap.Int64("post_id", v) }
func Count(v int) zap.Field         { return zap.Int("count", v) }
func Err(err error) zap.Field       { return zap.Error(err) }

// Reason records why an auth check failed. Never echoed to clients.
func Reason(v string) zap.Field { return zap.String("reason", v) }
