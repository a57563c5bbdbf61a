package monitoring

import (
	"errors"
	"fmt"
)

// Per-step failures are recorded as strings that start with the sentinel's
// text, so they can be classified with HasPrefix or errors.Is on Err.
var (
	ErrNotFound          = errors.New("website not found")
	ErrUnreachableURL    = errors.New("url is not accessible")
	ErrFetchFailure      = errors.New("failed to scrape website")
	ErrGenerationFailure = errors.New("no questions generated")
	ErrAnswerFailure     = errors.New("llm query failed")
	ErrJudgementFailure  = errors.New("analysis failed")
	ErrNoActiveSites     = errors.New("no active websites found")
)

func stepError(sentinel error, format string, args ...interface{}) string {
	if format == "" {
		return sentinel.Error()
	}
	return fmt.Sprintf("%s %s", sentinel, fmt.Sprintf(format, args...))
}
