// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// RetryConfig configures exponential backoff for [Retry].
type RetryConfig struct {
	InitialInterval     time.Duration // first retry delay
	MaxInterval         time.Duration // cap on a single delay
	MaxElapsedTime      time.Duration // total retry budget; 0 retries forever
	Multiplier          float64       // delay growth factor
	RandomizationFactor float64       // jitter in [0, 1]
}

// DefaultRetryConfig returns the default retry configuration:
// 100ms initial, 10s cap, 2min budget, 2x growth, 0.5 jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// Retry runs tasks produced by attempt until one succeeds, sleeping
// with exponential backoff between failures. When the backoff budget is
// exhausted, the last error is reported. attempt is called once per
// try, so each try is a fresh task.
//
// The backoff state is created per execution, keeping the returned
// task reusable like any other.
func Retry[E, V any](cfg RetryConfig, attempt func() Task[E, V]) Task[E, V] {
	return AndThen(Succeed[E](struct{}{}), func(struct{}) Task[E, V] {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = cfg.InitialInterval
		bo.MaxInterval = cfg.MaxInterval
		bo.MaxElapsedTime = cfg.MaxElapsedTime
		bo.Multiplier = cfg.Multiplier
		bo.RandomizationFactor = cfg.RandomizationFactor
		bo.Reset()

		var run func() Task[E, V]
		run = func() Task[E, V] {
			return OnError(attempt(), func(e E) Task[E, V] {
				d := bo.NextBackOff()
				if d == backoff.Stop {
					return Fail[E, V](e)
				}
				return AndThen(Sleep[E](d), func(struct{}) Task[E, V] {
					return run()
				})
			})
		}
		return run()
	})
}

// Protect gates t behind a circuit breaker. When the breaker is open,
// the task fails fast with the breaker's error
// ([gobreaker.ErrOpenState] or [gobreaker.ErrTooManyRequests]) without
// running t. Otherwise t runs and its outcome is reported to the
// breaker.
//
// The two-step breaker is used because its Allow/done protocol fits an
// asynchronous completion; the one-shot Execute wrapper only covers
// synchronous calls.
func Protect[V any](cb *gobreaker.TwoStepCircuitBreaker, t Task[error, V]) Task[error, V] {
	return AndThen(Succeed[error](struct{}{}), func(struct{}) Task[error, V] {
		done, err := cb.Allow()
		if err != nil {
			return Fail[error, V](err)
		}
		return OnError(
			AndThen(t, func(v V) Task[error, V] {
				done(true)
				return Succeed[error](v)
			}),
			func(e error) Task[error, V] {
				done(false)
				return Fail[error, V](e)
			},
		)
	})
}
