// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package drivers

import "sync"

type outputKey struct {
	game    uint
	entity  string
	channel string
}

type inputKey struct {
	game   uint
	entity string
}

type outputBuffer struct {
	messages []Message
	next     uint64
}

// LocalOutput is the in-process output driver. Buffers are created lazily
// on first push and dropped with their game.
type LocalOutput struct {
	mx      sync.Mutex
	buffers map[outputKey]*outputBuffer
}

// NewLocalOutput returns an empty local output driver.
func NewLocalOutput() *LocalOutput {
	return &LocalOutput{buffers: map[outputKey]*outputBuffer{}}
}

// Size returns the number of pending messages on the buffer.
func (d *LocalOutput) Size(game uint, entity, channel string) (int, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	b, ok := d.buffers[outputKey{game, entity, channel}]
	if !ok {
		return 0, nil
	}
	return len(b.messages), nil
}

// Push appends the message, assigning its per-buffer order.
func (d *LocalOutput) Push(game uint, entity, channel string, m Message) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	key := outputKey{game, entity, channel}
	b, ok := d.buffers[key]
	if !ok {
		b = &outputBuffer{}
		d.buffers[key] = b
	}
	m.Order = b.next
	b.next++
	b.messages = append(b.messages, m)
	return nil
}

// Pop removes and returns the oldest message, or nil on an empty buffer.
func (d *LocalOutput) Pop(game uint, entity, channel string) (*Message, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	b, ok := d.buffers[outputKey{game, entity, channel}]
	if !ok || len(b.messages) == 0 {
		return nil, nil
	}
	m := b.messages[0]
	b.messages = b.messages[1:]
	return &m, nil
}

// Drop discards every buffer belonging to the game.
func (d *LocalOutput) Drop(game uint) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	for key := range d.buffers {
		if key.game == game {
			delete(d.buffers, key)
		}
	}
	return nil
}

// LocalInput is the in-process input driver. Each slot holds at most one
// pending command.
type LocalInput struct {
	mx    sync.Mutex
	slots map[inputKey]string
}

// NewLocalInput returns an empty local input driver.
func NewLocalInput() *LocalInput {
	return &LocalInput{slots: map[inputKey]string{}}
}

// IsSet reports whether a command is pending for the entity.
func (d *LocalInput) IsSet(game uint, entity string) (bool, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, ok := d.slots[inputKey{game, entity}]
	return ok, nil
}

// Set stores the command, overwriting any pending one.
func (d *LocalInput) Set(game uint, entity, command string) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.slots[inputKey{game, entity}] = command
	return nil
}

// Consume drains and returns the pending command. The second return value
// reports whether one was pending.
func (d *LocalInput) Consume(game uint, entity string) (string, bool, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	key := inputKey{game, entity}
	command, ok := d.slots[key]
	if !ok {
		return "", false, nil
	}
	delete(d.slots, key)
	return command, true, nil
}

// Drop discards every slot belonging to the game.
func (d *LocalInput) Drop(game uint) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	for key := range d.slots {
		if key.game == game {
			delete(d.slots, key)
		}
	}
	return nil
}
