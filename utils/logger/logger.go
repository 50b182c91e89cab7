package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger zerolog.Logger

func init() {
	logger = zerolog.New(consoleWriter(os.Stderr)).With().Timestamp().Logger()
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("%s", i))
		},
	}
}

// Init sets up the global logger. Logs go to stderr, keeping stdout for query
// output, and to a rotated file inside CONFIG_FOLDER/logs unless NO_SAVE is set.
func Init() {
	level, err := zerolog.ParseLevel(strings.ToLower(viper.GetString(constants.LogLevel)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	writers := []io.Writer{consoleWriter(os.Stderr)}
	if !viper.GetBool(constants.NoSave) {
		if fileWriter := FileLoggerWithPath(viper.GetString(constants.ConfigFolder)); fileWriter != nil {
			writers = append(writers, fileWriter)
		}
	}

	logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
}

// FileLoggerWithPath returns a rotating file writer under folder/logs, or nil
// when the folder is not usable
func FileLoggerWithPath(folder string) io.Writer {
	if folder == "" {
		return nil
	}
	logDir := filepath.Join(folder, "logs")
	if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
		logger.Warn().Msgf("failed to create log directory[%s]: %s", logDir, err)
		return nil
	}

	return &lumberjack.Logger{
		Filename:   filepath.Join(logDir, fmt.Sprintf("kvrdd_%s.log", time.Now().UTC().Format("2006-01-02_15-04-05"))),
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
}

// SetOutput redirects all log output; used by tests
func SetOutput(out io.Writer) {
	logger = zerolog.New(out).With().Timestamp().Logger()
}

func Info(v ...interface{}) {
	logger.Info().Msg(fmt.Sprint(v...))
}

func Infof(format string, v ...interface{}) {
	logger.Info().Msgf(format, v...)
}

func Debug(v ...interface{}) {
	logger.Debug().Msg(fmt.Sprint(v...))
}

func Debugf(format string, v ...interface{}) {
	logger.Debug().Msgf(format, v...)
}

func Warn(v ...interface{}) {
	logger.Warn().Msg(fmt.Sprint(v...))
}

func Warnf(format string, v ...interface{}) {
	logger.Warn().Msgf(format, v...)
}

func Error(v ...interface{}) {
	logger.Error().Msg(fmt.Sprint(v...))
}

func Errorf(format string, v ...interface{}) {
	logger.Error().Msgf(format, v...)
}

func Fatal(v ...interface{}) {
	logger.Fatal().Msg(fmt.Sprint(v...))
}

func Fatalf(format string, v ...interface{}) {
	logger.Fatal().Msgf(format, v...)
}
