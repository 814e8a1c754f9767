// Package checkpoint
package checkpoint

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"quoteminer/packages/domain"

	"github.com/cespare/xxhash/v2"
)

// Sidecar files next to the dump form the whole resumability protocol:
// {path}.checkpoint holds resume state, {path}.done marks a dump that
// needs no further processing. Absence of both means "start from scratch".

func checkpointPath(dumpPath string) string { return dumpPath + ".checkpoint" }

func donePath(dumpPath string) string { return dumpPath + ".done" }

func Exists(dumpPath string) bool {
	_, err := os.Stat(checkpointPath(dumpPath))
	return err == nil
}

// Load returns the checkpoint for dumpPath, or nil when none exists.
func Load(dumpPath string) (*domain.Checkpoint, error) {
	data, err := os.ReadFile(checkpointPath(dumpPath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %s: %w", checkpointPath(dumpPath), err)
	}
	var cp domain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", checkpointPath(dumpPath), err)
	}
	return &cp, nil
}

func Save(dumpPath string, cp domain.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	if err := os.WriteFile(checkpointPath(dumpPath), data, 0644); err != nil {
		return fmt.Errorf("checkpoint: write %s: %w", checkpointPath(dumpPath), err)
	}
	return nil
}

// Delete removes the checkpoint. A missing checkpoint is not an error.
func Delete(dumpPath string) error {
	err := os.Remove(checkpointPath(dumpPath))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checkpoint: delete %s: %w", checkpointPath(dumpPath), err)
	}
	return nil
}

func IsDone(dumpPath string) bool {
	_, err := os.Stat(donePath(dumpPath))
	return err == nil
}

func MarkDone(dumpPath string) error {
	if err := os.WriteFile(donePath(dumpPath), nil, 0644); err != nil {
		return fmt.Errorf("checkpoint: write done marker %s: %w", donePath(dumpPath), err)
	}
	return nil
}

// ComputeChecksum hashes the full dump content with xxhash64. It is used
// only for change detection between runs, never for security.
func ComputeChecksum(dumpPath string) (string, error) {
	f, err := os.Open(dumpPath)
	if err != nil {
		return "", fmt.Errorf("checkpoint: open %s: %w", dumpPath, err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checkpoint: hash %s: %w", dumpPath, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
