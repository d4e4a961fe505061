// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package drivers

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InputFeed subscribes to a redis channel and forwards every decoded
// command into the active input driver, so remote producers can feed
// players without speaking the wire protocol.
type InputFeed struct {
	client  redis.UniversalClient
	channel string
	input   InputDriver
	retry   time.Duration
	logger  *zap.SugaredLogger
}

// NewInputFeed returns a feed reading from channel into input.
func NewInputFeed(client redis.UniversalClient, channel string, input InputDriver, retry time.Duration, logger *zap.SugaredLogger) *InputFeed {
	return &InputFeed{
		client:  client,
		channel: channel,
		input:   input,
		retry:   retry,
		logger:  logger,
	}
}

// Run consumes the subscription until ctx is cancelled, resubscribing
// after the retry interval when the connection drops. Malformed payloads
// are logged and skipped.
func (f *InputFeed) Run(ctx context.Context) {
	for {
		if err := f.consume(ctx); err != nil {
			f.logger.Errorf("Redis input feed failed, retrying in %v: %v", f.retry, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.retry):
		}
	}
}

func (f *InputFeed) consume(ctx context.Context) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return ctx.Err()
			}
			var cmd InboundCommand
			if err := json.Unmarshal([]byte(msg.Payload), &cmd); err != nil {
				f.logger.Errorf("Dropping malformed input feed payload: %v", err)
				continue
			}
			if err := f.input.Set(cmd.GameID, cmd.Entity, cmd.Command); err != nil {
				f.logger.Errorf("Writing fed command for game %d player %q failed: %v", cmd.GameID, cmd.Entity, err)
			}
		}
	}
}
