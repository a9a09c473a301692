// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/rinklab/rinkrelay/internal/logging"
)

// zerologAdapter routes Watermill's internal logging through the
// application logger so stream plumbing shows up in the same output.
type zerologAdapter struct {
	fields watermill.LogFields
}

// NewLoggerAdapter returns a watermill.LoggerAdapter backed by the
// global zerolog logger.
func NewLoggerAdapter() watermill.LoggerAdapter {
	return &zerologAdapter{}
}

func (a *zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	ev := logging.Error().Err(err)
	addFields(ev, a.fields, fields)
	ev.Msg(msg)
}

func (a *zerologAdapter) Info(msg string, fields watermill.LogFields) {
	ev := logging.Info()
	addFields(ev, a.fields, fields)
	ev.Msg(msg)
}

func (a *zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	ev := logging.Debug()
	addFields(ev, a.fields, fields)
	ev.Msg(msg)
}

func (a *zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	ev := logging.Trace()
	addFields(ev, a.fields, fields)
	ev.Msg(msg)
}

func (a *zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(a.fields)+len(fields))
	for k, v := range a.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &zerologAdapter{fields: merged}
}

func addFields(ev *zerolog.Event, sets ...watermill.LogFields) {
	for _, fields := range sets {
		for k, v := range fields {
			ev.Interface(k, v)
		}
	}
}
