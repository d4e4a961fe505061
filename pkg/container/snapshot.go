// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package container

import (
	"bytes"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fablehost/fabled/pkg/utils"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// GameNotFoundError reports a dumped game id with no directory or slots.
type GameNotFoundError struct {
	ID uint
}

func (e *GameNotFoundError) Error() string {
	return "dumped game not found"
}

// SlotNotFoundError reports an absent dump slot.
type SlotNotFoundError struct {
	ID   uint
	Slot uint
}

func (e *SlotNotFoundError) Error() string {
	return "game slot not found"
}

// DumpMeta is the per-game identity written to the meta file on every
// dump.
type DumpMeta struct {
	ID         uint
	Name       string
	Definition string
	Created    int64
}

// SlotInfo describes one dump slot for "get dumplist".
type SlotInfo struct {
	Slot      uint  `json:"slot"`
	Timestamp int64 `json:"timestamp"`
}

// Store is the on-disk snapshot layout under the state path:
// <path>/<game-id>/meta plus one numbered directory per slot holding
// timestamp, format and the serialized game. The numerically highest
// slot is the current dump.
type Store struct {
	path     string
	format   string
	maxDumps int
}

// NewStore returns a store rooted at path writing the named format.
// maxDumps 0 keeps every slot.
func NewStore(path, format string, maxDumps int) *Store {
	return &Store{path: path, format: format, maxDumps: maxDumps}
}

// Format returns the serialization format the store writes.
func (s *Store) Format() string { return s.format }

func (s *Store) gameDir(id uint) string {
	return filepath.Join(s.path, strconv.FormatUint(uint64(id), 10))
}

func (s *Store) slotDir(id, slot uint) string {
	return filepath.Join(s.gameDir(id), strconv.FormatUint(uint64(slot), 10))
}

// GameIDs lists every dumped game id, ascending.
func (s *Store) GameIDs() ([]uint, error) {
	ids, err := utils.Fio.NumericDirs(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "scanning state path %q", s.path)
	}
	return ids, nil
}

// Slots lists the game's dump slots, ascending.
func (s *Store) Slots(id uint) ([]uint, error) {
	if !utils.Fio.Exists(s.gameDir(id)) {
		return nil, &GameNotFoundError{ID: id}
	}
	slots, err := utils.Fio.NumericDirs(s.gameDir(id))
	if err != nil {
		return nil, errors.Wrapf(err, "scanning dump directory for game %d", id)
	}
	return slots, nil
}

// SlotInfos lists the game's dump slots with their timestamps, newest
// first.
func (s *Store) SlotInfos(id uint) ([]SlotInfo, error) {
	slots, err := s.Slots(id)
	if err != nil {
		return nil, err
	}
	out := make([]SlotInfo, 0, len(slots))
	for i := len(slots) - 1; i >= 0; i-- {
		slot := slots[i]
		ts, err := s.readInt(filepath.Join(s.slotDir(id, slot), "timestamp"))
		if err != nil {
			return nil, err
		}
		out = append(out, SlotInfo{Slot: slot, Timestamp: ts})
	}
	return out, nil
}

// WriteDump writes the meta file atomically, fills the next slot and
// evicts the oldest slots beyond the retention limit. It returns the new
// slot number.
func (s *Store) WriteDump(meta DumpMeta, payload []byte) (uint, error) {
	dir := s.gameDir(meta.ID)
	if err := utils.Fio.CreatePath(dir); err != nil {
		return 0, errors.Wrapf(err, "creating dump directory for game %d", meta.ID)
	}
	if err := s.writeMeta(meta); err != nil {
		return 0, err
	}
	slots, err := utils.Fio.NumericDirs(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "scanning dump directory for game %d", meta.ID)
	}
	var next uint
	if len(slots) > 0 {
		next = slots[len(slots)-1] + 1
	}
	var evict []uint
	if s.maxDumps > 0 && len(slots)+1 > s.maxDumps {
		evict = slots[:len(slots)+1-s.maxDumps]
	}
	// The slot is staged under a non-numeric name and renamed into place
	// once complete, so a failed write never leaves a partial slot as the
	// most recent dump. NumericDirs ignores any leftover staging directory.
	slotDir := s.slotDir(meta.ID, next)
	staging := slotDir + ".staging"
	if err := utils.Fio.CreatePath(staging); err != nil {
		return 0, errors.Wrapf(err, "creating slot %d for game %d", next, meta.ID)
	}
	now := timestampNow()
	writes := map[string][]byte{
		"game":      payload,
		"format":    []byte(s.format),
		"timestamp": []byte(strconv.FormatInt(now, 10)),
	}
	for name, data := range writes {
		if err := utils.Fio.WriteFile(filepath.Join(staging, name), data); err != nil {
			utils.Fio.Delete(staging)
			return 0, errors.Wrapf(err, "writing slot %d for game %d", next, meta.ID)
		}
	}
	if err := utils.Fio.Rename(staging, slotDir); err != nil {
		utils.Fio.Delete(staging)
		return 0, errors.Wrapf(err, "committing slot %d for game %d", next, meta.ID)
	}
	for _, old := range evict {
		if err := utils.Fio.Delete(s.slotDir(meta.ID, old)); err != nil {
			return 0, errors.Wrapf(err, "evicting slot %d for game %d", old, meta.ID)
		}
	}
	return next, nil
}

// ReadDump reads the given slot, defaulting to the most recent. It
// returns the meta, the slot's format, the serialized payload and the
// slot that was read.
func (s *Store) ReadDump(id uint, slot *uint) (DumpMeta, string, []byte, uint, error) {
	var meta DumpMeta
	slots, err := s.Slots(id)
	if err != nil {
		return meta, "", nil, 0, err
	}
	if len(slots) == 0 {
		return meta, "", nil, 0, &GameNotFoundError{ID: id}
	}
	chosen := slots[len(slots)-1]
	if slot != nil {
		chosen = *slot
	}
	dir := s.slotDir(id, chosen)
	if !utils.Fio.Exists(dir) {
		return meta, "", nil, 0, &SlotNotFoundError{ID: id, Slot: chosen}
	}
	meta, err = s.readMeta(id)
	if err != nil {
		return meta, "", nil, 0, err
	}
	formatRaw, err := utils.Fio.ReadFile(filepath.Join(dir, "format"))
	if err != nil {
		return meta, "", nil, 0, errors.Wrapf(err, "reading format of game %d slot %d", id, chosen)
	}
	payload, err := utils.Fio.ReadFile(filepath.Join(dir, "game"))
	if err != nil {
		return meta, "", nil, 0, errors.Wrapf(err, "reading payload of game %d slot %d", id, chosen)
	}
	return meta, string(bytes.TrimSpace(formatRaw)), payload, chosen, nil
}

// DeleteGame drops the game's whole dump directory.
func (s *Store) DeleteGame(id uint) error {
	if !utils.Fio.Exists(s.gameDir(id)) {
		return &GameNotFoundError{ID: id}
	}
	return errors.Wrapf(utils.Fio.Delete(s.gameDir(id)), "deleting dumps of game %d", id)
}

// DeleteSlot drops a single dump slot.
func (s *Store) DeleteSlot(id, slot uint) error {
	if !utils.Fio.Exists(s.gameDir(id)) {
		return &GameNotFoundError{ID: id}
	}
	if !utils.Fio.Exists(s.slotDir(id, slot)) {
		return &SlotNotFoundError{ID: id, Slot: slot}
	}
	return errors.Wrapf(utils.Fio.Delete(s.slotDir(id, slot)), "deleting slot %d of game %d", slot, id)
}

func (s *Store) writeMeta(meta DumpMeta) error {
	file := ini.Empty()
	sec := file.Section("")
	sec.Key("id").SetValue(strconv.FormatUint(uint64(meta.ID), 10))
	sec.Key("name").SetValue(meta.Name)
	sec.Key("definition").SetValue(meta.Definition)
	sec.Key("created").SetValue(strconv.FormatInt(meta.Created, 10))
	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return errors.Wrapf(err, "rendering meta of game %d", meta.ID)
	}
	path := filepath.Join(s.gameDir(meta.ID), "meta")
	return errors.Wrapf(utils.Fio.WriteFileAtomic(path, buf.Bytes()), "writing meta of game %d", meta.ID)
}

func (s *Store) readMeta(id uint) (DumpMeta, error) {
	var meta DumpMeta
	path := filepath.Join(s.gameDir(id), "meta")
	data, err := utils.Fio.ReadFile(path)
	if err != nil {
		return meta, errors.Wrapf(err, "reading meta of game %d", id)
	}
	file, err := ini.Load(data)
	if err != nil {
		return meta, errors.Wrapf(err, "parsing meta of game %d", id)
	}
	sec := file.Section("")
	parsedID, err := sec.Key("id").Uint64()
	if err != nil {
		return meta, errors.Wrapf(err, "parsing meta id of game %d", id)
	}
	created, err := sec.Key("created").Int64()
	if err != nil {
		return meta, errors.Wrapf(err, "parsing meta created of game %d", id)
	}
	meta.ID = uint(parsedID)
	meta.Name = sec.Key("name").String()
	meta.Definition = sec.Key("definition").String()
	meta.Created = created
	return meta, nil
}

func timestampNow() int64 {
	return time.Now().Unix()
}

func (s *Store) readInt(path string) (int64, error) {
	data, err := utils.Fio.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "reading %q", path)
	}
	n, err := strconv.ParseInt(string(bytes.TrimSpace(data)), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %q", path)
	}
	return n, nil
}
