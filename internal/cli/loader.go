package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/simphotonics/lockattr/internal/policy"
)

// Error code constants, unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	// Policy errors
	ErrCodeNoRules      = "E101" // No guard block or empty guard block
	ErrCodeInvalidList  = "E102" // Bad protect list
	ErrCodeInvalidScope = "E103" // Unknown scope
	ErrCodeUnknownField = "E104" // Field other than protect/scope

	// Write errors
	ErrCodeProtected   = "E201" // Write to a locked attribute
	ErrCodeWriteFailed = "E202" // Underlying write failed
)

// LoadError is a policy loading failure with a CLI error code.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadPolicy loads a policy file or directory and maps failures to a
// LoadError.
func LoadPolicy(path string) (*policy.Set, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("policy path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing policy path: %v", err)}
	}

	if info.IsDir() {
		files, err := policy.FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	}

	set, err := policy.Load(path)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return set, nil
}

// convertCompileError converts a policy error to a LoadError with position
// info.
func convertCompileError(err error) *LoadError {
	var compileErr *policy.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeBuildFailed, Message: err.Error()}
}

// MapFieldToErrorCode maps a policy error field to an error code. Fields are
// either "guard", "cue", or "<Kind>.<field>".
func MapFieldToErrorCode(field string) string {
	if field == "guard" {
		return ErrCodeNoRules
	}
	if field == "cue" {
		return ErrCodeBuildFailed
	}
	_, sub, ok := strings.Cut(field, ".")
	if !ok {
		return ErrCodeGeneric
	}
	switch sub {
	case "protect":
		return ErrCodeInvalidList
	case "scope":
		return ErrCodeInvalidScope
	default:
		return ErrCodeUnknownField
	}
}

// configureLogging installs the process-wide slog handler. Debug level when
// verbose, info otherwise.
func configureLogging(opts *RootOptions, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
