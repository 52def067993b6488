package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

var (
	customLog = newLogger(os.Stdout, os.Stderr, 0)
	mu        sync.RWMutex
)

type logger struct {
	debug   *log.Logger
	info    *log.Logger
	err     *log.Logger
	verbose bool
	file    *os.File
}

func newLogger(out, errOut io.Writer, flags int) logger {
	return logger{
		debug:   log.New(out, "[DEBUG] ", flags),
		info:    log.New(out, "[INFOM] ", flags),
		err:     log.New(errOut, "[ERROR] ", flags),
		verbose: true,
	}
}

// InitLogger resets logging to the console.
func InitLogger() {
	mu.Lock()
	defer mu.Unlock()

	closeFile()
	customLog = newLogger(os.Stdout, os.Stderr, 0)
}

// ResetLogger moves all output to <home>/logs/<binary>.<pid>.log so the
// console stays free for operator prompts.
func ResetLogger(home string) {
	if home == "" {
		osHome, err := os.UserHomeDir()
		if err != nil {
			Fatalf("Failed to get user home directory: %v", err)
		}
		home = filepath.Join(osHome, ".rngoracled")
	}

	dir := filepath.Join(home, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		Fatalf("Failed to create log directory %s: %v", dir, err)
	}

	name := fmt.Sprintf("%s.%d.log", filepath.Base(os.Args[0]), os.Getpid())
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		Fatalf("Failed to create log file: %v", err)
	}

	Infof("From now on, all logs will be written to %s", path)

	mu.Lock()
	defer mu.Unlock()

	closeFile()
	verbose := customLog.verbose
	customLog = newLogger(file, file, log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	customLog.verbose = verbose
	customLog.file = file
}

// SetOutput redirects every level to w. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	closeFile()
	verbose := customLog.verbose
	customLog = newLogger(w, w, 0)
	customLog.verbose = verbose
}

// SetVerbose toggles debug output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()

	customLog.verbose = v
}

func closeFile() {
	if customLog.file != nil {
		_ = customLog.file.Close()
		customLog.file = nil
	}
}

func current() logger {
	mu.RLock()
	defer mu.RUnlock()

	return customLog
}

func Debug(v ...any) {
	if l := current(); l.verbose {
		_ = l.debug.Output(2, fmt.Sprint(v...))
	}
}

func Debugf(format string, v ...any) {
	if l := current(); l.verbose {
		_ = l.debug.Output(2, fmt.Sprintf(format, v...))
	}
}

func Info(v ...any) {
	_ = current().info.Output(2, fmt.Sprint(v...))
}

func Infof(format string, v ...any) {
	_ = current().info.Output(2, fmt.Sprintf(format, v...))
}

func Error(v ...any) {
	_ = current().err.Output(2, fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	_ = current().err.Output(2, fmt.Sprintf(format, v...))
}

func Fatal(v ...any) {
	_ = current().err.Output(2, fmt.Sprint(v...))
	log.Fatal(v...)
}

func Fatalf(format string, v ...any) {
	_ = current().err.Output(2, fmt.Sprintf(format, v...))
	log.Fatalf(format, v...)
}
