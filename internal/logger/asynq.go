package logger

import (
	"fmt"

	"github.com/rs/zerolog"
)

// AsynqLogger adapts a zerolog.Logger to the asynq.Logger interface so the
// worker server writes through the same structured output as the rest of the app.
type AsynqLogger struct {
	log zerolog.Logger
}

func NewAsynqLogger(l zerolog.Logger) *AsynqLogger {
	return &AsynqLogger{log: l.With().Str("component", "asynq").Logger()}
}

func (l *AsynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l *AsynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l *AsynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l *AsynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l *AsynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
