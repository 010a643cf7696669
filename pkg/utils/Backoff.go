package utils

import "errors"
import "math"
import "math/rand"
import "time"


//=========================================== Exponential Backoff


type ExpBackoffOpts struct {
	MaxRetries *int
	TimeoutInMilliseconds int
	ShouldRetry func(error) bool
}

type ExponentialBackoffStrat [T any] struct {
	depth int
	maxRetries *int
	timeout int
	shouldRetry func(error) bool
}

const DefaultMaxRetries = 5
const MaxBackoffInMilliseconds = 2000


func NewExponentialBackoffStrat [T any](opts ExpBackoffOpts) *ExponentialBackoffStrat[T] {
	timeout := opts.TimeoutInMilliseconds
	if timeout <= 0 { timeout = 1 }

	return &ExponentialBackoffStrat[T]{
		depth: 0,
		maxRetries: opts.MaxRetries,
		timeout: timeout,
		shouldRetry: opts.ShouldRetry,
	}
}

/*
	Perform Backoff:
		1.) attempt the operation, returning immediately on success
		2.) on failure, sleep for timeout * 2^depth plus up to 50% jitter, capped at MaxBackoffInMilliseconds
		3.) give up once max retries is reached and return the last error seen

	a nil MaxRetries retries DefaultMaxRetries times, a ShouldRetry returning false stops early
*/

func (expStrat *ExponentialBackoffStrat[T]) PerformBackoff(operation func() (T, error)) (T, error) {
	maxRetries := DefaultMaxRetries
	if expStrat.maxRetries != nil { maxRetries = *expStrat.maxRetries }

	var lastErr error

	for expStrat.depth = 0; expStrat.depth < maxRetries; expStrat.depth++ {
		res, err := operation()
		if err == nil { return res, nil }

		lastErr = err
		if expStrat.shouldRetry != nil && ! expStrat.shouldRetry(err) { break }
		if expStrat.depth == maxRetries - 1 { break }

		time.Sleep(expStrat.nextDelay())
	}

	if lastErr == nil { lastErr = errors.New("backoff exhausted without attempts") }
	return GetZero[T](), lastErr
}

func (expStrat *ExponentialBackoffStrat[T]) nextDelay() time.Duration {
	base := float64(expStrat.timeout) * math.Pow(2, float64(expStrat.depth))
	if base > MaxBackoffInMilliseconds { base = MaxBackoffInMilliseconds }

	jitter := rand.Float64() * base / 2
	return time.Duration(base + jitter) * time.Millisecond
}
