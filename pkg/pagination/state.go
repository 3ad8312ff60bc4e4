package pagination

import (
	"fmt"
	"time"

	"github.com/Sternrassler/rest-harvester/pkg/client"
	"github.com/Sternrassler/rest-harvester/pkg/ratelimit"
)

// pageState is the state of one page's request loop.
type pageState int

const (
	stateAttempting pageState = iota
	stateRateLimited
	stateSuccess
	stateFatal
)

func (s pageState) String() string {
	switch s {
	case stateAttempting:
		return "attempting"
	case stateRateLimited:
		return "rate_limited"
	case stateSuccess:
		return "success"
	case stateFatal:
		return "fatal"
	default:
		return fmt.Sprintf("pageState(%d)", int(s))
	}
}

// attemptResult is what one request produced: a response or a transport error.
type attemptResult struct {
	resp *client.Response
	err  error
}

// transition is the decision taken after one attempt.
type transition struct {
	state pageState

	// attempt is the attempt number of the next request (unchanged for rate-limit waits).
	attempt int

	// wait precedes the next request. Zero for terminal states.
	wait time.Duration

	class client.ErrorClass
	body  *Body
	err   error
}

// step decides what follows an attempt. It performs no I/O and reads no clock.
//
// attempt is the 1-based number of the attempt that produced res and
// rateLimitWaits counts the quota waits already taken for this page.
func step(res attemptResult, attempt int, req Request, rateLimitWaits int, now time.Time) transition {
	class := client.Classify(res.resp, res.err)

	if class == "" {
		body, err := ParseBody(res.resp.Body)
		if err != nil {
			return transition{
				state: stateFatal,
				class: client.ErrorClassMalformed,
				err: &client.APIError{
					StatusCode: res.resp.StatusCode,
					ErrorClass: client.ErrorClassMalformed,
					Message:    "invalid page body",
					Err:        err,
				},
			}
		}
		return transition{state: stateSuccess, attempt: attempt, body: body}
	}

	failure := res.err
	if failure == nil && res.resp != nil {
		failure = res.resp.Err()
	}
	if failure == nil {
		failure = &client.APIError{ErrorClass: class, Message: "no response"}
	}
	if !client.ShouldRetry(class) {
		// Authentication, cancellation and any other status.
		return transition{state: stateFatal, class: class, err: failure}
	}

	if class == client.ErrorClassRateLimit {
		if req.MaxRateLimitWaits > 0 && rateLimitWaits >= req.MaxRateLimitWaits {
			return transition{
				state: stateFatal,
				class: class,
				err: fmt.Errorf("%w after %d rate limit waits: %w",
					client.ErrRetryExhausted, rateLimitWaits, failure),
			}
		}
		wait := ratelimit.MinWait
		if res.resp != nil {
			if reset, ok := res.resp.Reset(now); ok {
				wait = client.RateLimitWait(reset, now)
			}
		}
		return transition{state: stateRateLimited, attempt: attempt, wait: wait, class: class}
	}

	if attempt >= req.MaxRetries {
		return transition{
			state: stateFatal,
			class: class,
			err: fmt.Errorf("%w after %d attempts: %w",
				client.ErrRetryExhausted, req.MaxRetries, failure),
		}
	}
	return transition{
		state:   stateAttempting,
		attempt: attempt + 1,
		wait:    client.Backoff(req.BackoffFactor, attempt),
		class:   class,
		err:     failure,
	}
}
