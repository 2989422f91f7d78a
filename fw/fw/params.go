/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package fw

import (
	"strconv"
	"strings"
	"time"

	enc "github.com/named-data/yanfd/std/encoding"
	"github.com/named-data/yanfd/std/ndn"
)

// strategyParams are the per-instance tunables carried as extra Name
// components after the strategy version, each of the form "<key>~<value>".
type strategyParams map[string]string

// parseStrategyParams splits parameter components, rejecting any key not
// in allowed so a typo in a management command surfaces as
// invalid-argument instead of being silently ignored.
func parseStrategyParams(components enc.Name, allowed ...string) (strategyParams, error) {
	params := make(strategyParams, len(components))
	for _, c := range components {
		key, value, found := strings.Cut(string(c.Val), "~")
		if !found {
			return nil, ndn.ErrInvalidValue{Item: "strategy parameter", Value: string(c.Val)}
		}
		ok := false
		for _, a := range allowed {
			if key == a {
				ok = true
				break
			}
		}
		if !ok {
			return nil, ndn.ErrInvalidValue{Item: "strategy parameter", Value: key}
		}
		params[key] = value
	}
	return params, nil
}

func (p strategyParams) duration(key string, def time.Duration) (time.Duration, error) {
	s, ok := p[key]
	if !ok {
		return def, nil
	}
	ms, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, ndn.ErrInvalidValue{Item: key, Value: s}
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (p strategyParams) float(key string, def float64) (float64, error) {
	s, ok := p[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, ndn.ErrInvalidValue{Item: key, Value: s}
	}
	return v, nil
}

// parseRetxSuppressionParams decodes the three retx-suppression tunables.
func parseRetxSuppressionParams(components enc.Name) (RetxSuppressionExponentialOptions, error) {
	params, err := parseStrategyParams(components,
		"retx-suppression-initial", "retx-suppression-max", "retx-suppression-multiplier")
	if err != nil {
		return RetxSuppressionExponentialOptions{}, err
	}
	opts := DefaultRetxSuppressionExponentialOptions()
	if opts.InitialInterval, err = params.duration("retx-suppression-initial", opts.InitialInterval); err != nil {
		return RetxSuppressionExponentialOptions{}, err
	}
	if opts.MaxInterval, err = params.duration("retx-suppression-max", opts.MaxInterval); err != nil {
		return RetxSuppressionExponentialOptions{}, err
	}
	if opts.Multiplier, err = params.float("retx-suppression-multiplier", opts.Multiplier); err != nil {
		return RetxSuppressionExponentialOptions{}, err
	}
	return opts, nil
}
