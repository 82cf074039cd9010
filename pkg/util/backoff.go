package util

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const (
	// ParamRetryPolicy is the name of parameter with the retry policy, one of disabled, constant or exponential.
	ParamRetryPolicy = "retry-policy"
	// ParamRetryInterval is the name of parameter with the interval between attempts, constant policy only.
	ParamRetryInterval = "retry-interval"
	// ParamRetryMaxCount is the name of parameter with the maximum number of retries, 0 for no limit.
	ParamRetryMaxCount = "retry-max-count"
	// ParamRetryMaxTime is the name of parameter with the maximum time spent retrying.
	ParamRetryMaxTime = "retry-max-time"

	defaultRetryInterval = 1 * time.Second  // constant
	defaultRetryMaxCount = 0                // constant + exponential
	defaultRetryMaxTime  = 15 * time.Second // constant + exponential
	defaultRetryPolicy   = policyExponential

	policyConstant    = "constant"
	policyDisabled    = "disabled"
	policyExponential = "exponential"
)

// BackoffFactory creates a fresh backoff for every sequence of attempts.
type BackoffFactory func() backoff.BackOff

// NewBackoffFactory creates a new BackoffFactory based on a backoff.ExponentialBackoff
//
// backoff.ConstantBackoff lacks randomization of the interval and a maximum duration, so a
// backoff.ExponentialBackOff with a Multiplier of 1.0 is used for the constant policy.
func NewBackoffFactory(multiplier float64, maxElapsedTime, interval time.Duration, maxRetries uint64) BackoffFactory {
	return func() backoff.BackOff {
		bo := backoff.NewExponentialBackOff()
		bo.Multiplier = multiplier
		bo.MaxElapsedTime = maxElapsedTime
		bo.InitialInterval = interval
		bo.Reset() // Reset is required to make the InitialInterval change take effect.
		if maxRetries == 0 {
			return bo
		}
		return backoff.WithMaxRetries(bo, maxRetries)
	}
}

// AddRetryFlags adds the retry parameters to the specified FlagSet.
func AddRetryFlags(fs *pflag.FlagSet) {
	fs.String(ParamRetryPolicy, defaultRetryPolicy, "Retry policy: disabled, constant, or exponential")
	fs.Duration(ParamRetryInterval, defaultRetryInterval, "Interval between retries, constant policy only")
	fs.Int64(ParamRetryMaxCount, defaultRetryMaxCount, "Maximum number of retries, 0 for no limit")
	fs.Duration(ParamRetryMaxTime, defaultRetryMaxTime, "Maximum time spent retrying")
}

// GetRetryFromViper builds a BackoffFactory from the retry parameters.  Every
// invalid parameter is reported.
func GetRetryFromViper(v *viper.Viper) (BackoffFactory, error) {
	v.SetDefault(ParamRetryInterval, defaultRetryInterval)
	v.SetDefault(ParamRetryMaxCount, defaultRetryMaxCount)
	v.SetDefault(ParamRetryMaxTime, defaultRetryMaxTime)
	v.SetDefault(ParamRetryPolicy, defaultRetryPolicy)

	retryInterval := v.GetDuration(ParamRetryInterval)
	retryMaxCount := v.GetInt64(ParamRetryMaxCount)
	retryMaxTime := v.GetDuration(ParamRetryMaxTime)
	retryPolicy := v.GetString(ParamRetryPolicy)

	var err error
	if retryInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", ParamRetryInterval))
	}
	if retryMaxCount < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be zero or positive", ParamRetryMaxCount))
	}
	if retryMaxTime <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", ParamRetryMaxTime))
	}
	if err != nil {
		return nil, err
	}

	switch retryPolicy {
	case policyDisabled:
		return func() backoff.BackOff { return &backoff.StopBackOff{} }, nil
	case policyExponential:
		return NewBackoffFactory(backoff.DefaultMultiplier, retryMaxTime, backoff.DefaultInitialInterval, uint64(retryMaxCount)), nil
	case policyConstant:
		return NewBackoffFactory(1.0, retryMaxTime, retryInterval, uint64(retryMaxCount)), nil
	default:
		return nil, fmt.Errorf("%s (%s) not one of %s, %s, or %s", ParamRetryPolicy, retryPolicy, policyDisabled, policyConstant, policyExponential)
	}
}

// Retry calls op until it succeeds, the backoff gives up, or ctx is done.
// notify, if not nil, is called after every failed attempt with the delay
// before the next one.
func Retry(ctx context.Context, factory BackoffFactory, op func() error, notify func(err error, next time.Duration)) error {
	bo := backoff.WithContext(factory(), ctx)
	return backoff.RetryNotify(op, bo, notify)
}
