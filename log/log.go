package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/sirupsen/logrus"
)

// Verbose controls whether debug messages are being printed.
var Verbose bool

// IndentationLevel controls the amount of indentation of log messages.
var IndentationLevel = 0

// Spinner is shown while long-running work produces no output of its own.
// It stays silent when stderr is not a terminal.
var Spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))

const (
	indentField  = "indent"
	successField = "success"
)

var logger = newLogger(os.Stderr)

var errorOccured = false

type formatter struct{}

func (formatter) Format(entry *logrus.Entry) ([]byte, error) {
	indent, _ := entry.Data[indentField].(int)
	prefix := ""
	switch entry.Level {
	case logrus.DebugLevel, logrus.TraceLevel:
		prefix = "\033[36mDebug: \033[0m"
	case logrus.WarnLevel:
		prefix = "\033[33mWarning: \033[0m"
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		prefix = "\033[31mError: \033[0m"
	default:
		if success, _ := entry.Data[successField].(bool); success {
			prefix = "\033[32mSuccess: \033[0m"
		}
	}
	return []byte(strings.Repeat("  ", indent) + prefix + entry.Message), nil
}

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(formatter{})
	l.SetLevel(logrus.DebugLevel)
	return l
}

// SetOutput redirects all log messages to `w`.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func entry() *logrus.Entry {
	return logger.WithField(indentField, IndentationLevel)
}

// ErrorOccured reports whether any errors have occured.
func ErrorOccured() bool {
	return errorOccured
}

// ResetErrors clears the error flag reported by ErrorOccured.
func ResetErrors() {
	errorOccured = false
}

// Log prints an indented and formatted message to os.Stderr.
func Log(format string, a ...interface{}) {
	entry().Infof(format, a...)
}

// Debug prints an indented and formatted debug message to os.Stderr if verbose output is selected.
func Debug(format string, a ...interface{}) {
	if Verbose {
		entry().Debugf(format, a...)
	}
}

// Success prints an indented and formatted success message to os.Stderr.
func Success(format string, a ...interface{}) {
	entry().WithField(successField, true).Infof(format, a...)
}

// Warning prints an indented and formatted warning to os.Stderr.
func Warning(format string, a ...interface{}) {
	entry().Warnf(format, a...)
}

// Error prints an indented and formatted error message to os.Stderr.
func Error(format string, a ...interface{}) {
	errorOccured = true
	entry().Errorf(format, a...)
}

// Fatal prints an indented and formatted error message to os.Stderr and terminates the program.
func Fatal(format string, a ...interface{}) {
	Error(format, a...)
	fmt.Fprintf(logger.Out, "\033[31mA fatal error occured. Exiting...\033[0m\n")
	logger.Exit(1)
}
