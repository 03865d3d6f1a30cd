// Copyright 2025 The CO2 Canary Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package retain persists the monitor's state across deep-sleep cycles.
//
// The store holds exactly one History and one CalibrationData for the
// device's whole operating lifetime. On hardware with power-retained memory
// the two records would simply live there; on hosted platforms the same
// fixed binary layout is kept as a small blob, loaded when the process
// wakes and flushed before it sleeps.
package retain

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/overflo23/co2-canary/history"
	"github.com/overflo23/co2-canary/sunrise"
)

// layoutVersion is bumped whenever the binary layout of the image changes.
// A mismatch on load discards the image, which is the same outcome as a
// hard power-on reset.
const layoutVersion = 1

var magic = [4]byte{'C', 'O', '2', 'R'}

// ImageSize is the size of the retained-state image in bytes.
const ImageSize = len(magic) + 1 + history.BinarySize + sunrise.CalibrationBinarySize

// Store owns the two records that survive sleep. The orchestrator borrows
// it for the duration of one wake cycle and must not retain a reference
// past the flush.
type Store struct {
	History     history.History
	Calibration sunrise.CalibrationData
}

// Load reads the retained state from path. A missing file, a stale layout
// version or a corrupt image all mean cold boot: zeroed records, no error.
// An error is only returned when the file exists but cannot be read.
func Load(path string) (*Store, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Store{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retain: %w", err)
	}
	s := &Store{}
	if err := s.decode(b); err != nil {
		return &Store{}, nil
	}
	return s, nil
}

// Flush writes the retained state to path atomically, so that a power cut
// mid-write leaves the previous image intact.
func (s *Store) Flush(path string) error {
	img, err := s.Image()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".retain-*")
	if err != nil {
		return fmt.Errorf("retain: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(img); err != nil {
		tmp.Close()
		return fmt.Errorf("retain: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("retain: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("retain: %w", err)
	}
	return nil
}

// Image returns the fixed-layout binary image of the retained state.
func (s *Store) Image() ([]byte, error) {
	b := make([]byte, 0, ImageSize)
	b = append(b, magic[:]...)
	b = append(b, layoutVersion)
	hb, err := s.History.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("retain: %w", err)
	}
	b = append(b, hb...)
	cb, err := s.Calibration.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("retain: %w", err)
	}
	b = append(b, cb...)
	return b, nil
}

func (s *Store) decode(b []byte) error {
	if len(b) != ImageSize {
		return fmt.Errorf("retain: image is %d bytes, expected %d", len(b), ImageSize)
	}
	if !bytes.Equal(b[:len(magic)], magic[:]) {
		return errors.New("retain: bad magic")
	}
	if b[len(magic)] != layoutVersion {
		return fmt.Errorf("retain: layout version %d, expected %d", b[len(magic)], layoutVersion)
	}
	off := len(magic) + 1
	if err := s.History.UnmarshalBinary(b[off : off+history.BinarySize]); err != nil {
		return err
	}
	off += history.BinarySize
	return s.Calibration.UnmarshalBinary(b[off:])
}
