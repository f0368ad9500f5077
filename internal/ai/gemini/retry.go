package gemini

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/candidate-matcher/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 30 * time.Second
	// Quota errors asking to wait longer than this are returned immediately.
	maxQuotaDelay = 30 * time.Second
)

var (
	sleep = utils.WaitFor

	retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?)\s*s`)
)

// withRetries runs call up to attempts times while it fails with a transient API error.
func withRetries(ctx context.Context, logger *zap.Logger, attempts int, op string, call func() error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = call(); err == nil {
			return nil
		}

		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == attempts-1 {
			return err
		}

		logger.Warn("gemini request failed, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if werr := sleep(ctx, delay); werr != nil {
			return werr
		}
	}

	return err
}

// retryDelay reports whether err is transient and how long to wait before the next attempt.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	status := strings.ToUpper(apiErr.Status)
	switch {
	case apiErr.Code == http.StatusTooManyRequests || strings.Contains(status, "RESOURCE_EXHAUSTED"):
		if d, ok := announcedDelay(apiErr); ok {
			if d > maxQuotaDelay {
				return 0, false
			}
			return d, true
		}
	case apiErr.Code == http.StatusInternalServerError,
		apiErr.Code == http.StatusServiceUnavailable,
		strings.Contains(status, "UNAVAILABLE"):
	default:
		return 0, false
	}

	return utils.Backoff(attempt, baseRetryDelay, maxRetryDelay), true
}

func announcedDelay(apiErr genai.APIError) (time.Duration, bool) {
	for _, detail := range apiErr.Details {
		raw, ok := detail["retryDelay"].(string)
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(raw); err == nil {
			return d, true
		}
	}

	if m := retryAfterPattern.FindStringSubmatch(apiErr.Message); m != nil {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil {
			return time.Duration(secs * float64(time.Second)), true
		}
	}

	return 0, false
}
