// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package drivers

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	mb "github.com/vardius/message-bus"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const publishTopic = "redis.publish"

// OutboundMessage is the JSON payload published for every output push.
type OutboundMessage struct {
	GameID  uint    `json:"game_id"`
	Entity  string  `json:"entity"`
	Channel string  `json:"channel"`
	Message Message `json:"message"`
}

// InboundCommand is the JSON payload expected on the redis input channel.
type InboundCommand struct {
	GameID  uint   `json:"game_id"`
	Entity  string `json:"entity"`
	Command string `json:"command"`
}

// RedisOutput publishes every pushed message to a redis channel. It is a
// pub/sub driver: Size and Pop are unsupported. Pushes are queued on an
// internal bus and published by a background worker so the push path never
// blocks on the network.
type RedisOutput struct {
	client  redis.UniversalClient
	channel string
	bus     mb.MessageBus
	logger  *zap.SugaredLogger
}

// NewRedisOutput returns a redis output driver publishing to channel.
func NewRedisOutput(client redis.UniversalClient, channel string, logger *zap.SugaredLogger) *RedisOutput {
	d := &RedisOutput{
		client:  client,
		channel: channel,
		bus:     mb.New(1024),
		logger:  logger,
	}
	d.bus.Subscribe(publishTopic, func(payload []byte) {
		if err := d.client.Publish(context.Background(), d.channel, payload).Err(); err != nil {
			d.logger.Errorf("Publishing output message to redis failed: %v", err)
		}
	})
	return d
}

// Size is unsupported on a pub/sub output driver.
func (d *RedisOutput) Size(game uint, entity, channel string) (int, error) {
	return 0, ErrUnsupported
}

// Push encodes the message with its buffer coordinates and queues it for
// publication.
func (d *RedisOutput) Push(game uint, entity, channel string, m Message) error {
	payload, err := json.Marshal(OutboundMessage{
		GameID:  game,
		Entity:  entity,
		Channel: channel,
		Message: m,
	})
	if err != nil {
		return err
	}
	d.bus.Publish(publishTopic, payload)
	return nil
}

// Pop is unsupported on a pub/sub output driver.
func (d *RedisOutput) Pop(game uint, entity, channel string) (*Message, error) {
	return nil, ErrUnsupported
}

// Drop is a no-op; there is no local state to discard.
func (d *RedisOutput) Drop(game uint) error {
	return nil
}

// Close drains the publish queue.
func (d *RedisOutput) Close() {
	d.bus.Close(publishTopic)
}

// RedisInput stores pending commands in redis lists so that producers on
// other processes can feed players directly.
type RedisInput struct {
	client redis.UniversalClient
}

// NewRedisInput returns a redis input driver.
func NewRedisInput(client redis.UniversalClient) *RedisInput {
	return &RedisInput{client: client}
}

func inputListKey(game uint, entity string) string {
	return fmt.Sprintf("fabled:input:%d:%s", game, entity)
}

// IsSet reports whether a command is pending for the entity.
func (d *RedisInput) IsSet(game uint, entity string) (bool, error) {
	n, err := d.client.Exists(context.Background(), inputListKey(game, entity)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Set overwrites the pending command for the entity.
func (d *RedisInput) Set(game uint, entity, command string) error {
	ctx := context.Background()
	key := inputListKey(game, entity)
	pipe := d.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.RPush(ctx, key, command)
	_, err := pipe.Exec(ctx)
	return err
}

// Consume drains and returns the pending command.
func (d *RedisInput) Consume(game uint, entity string) (string, bool, error) {
	command, err := d.client.LPop(context.Background(), inputListKey(game, entity)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return command, true, nil
}

// Drop discards every input list belonging to the game.
func (d *RedisInput) Drop(game uint) error {
	ctx := context.Background()
	keys, err := d.client.Keys(ctx, fmt.Sprintf("fabled:input:%d:*", game)).Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return d.client.Del(ctx, keys...).Err()
}
