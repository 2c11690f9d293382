package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"postwatch/internal/domain"
	"strings"
)

const (
	stateFileMode   = 0o600
	stateDirMode    = 0o700
	tempFilePattern = ".state-*.json.tmp"
)

// Backend keeps the watch state in the JSON layout
// {"users": [...], "last_ids": {...}} used by existing deployments.
type Backend struct {
	path string
	log  *slog.Logger
}

func New(path string, log *slog.Logger) (*Backend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("state path is empty")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve state path: %w", err)
	}

	return &Backend{path: abs, log: log}, nil
}

func (b *Backend) Path() string {
	return b.path
}

func (b *Backend) Load(ctx context.Context) (domain.WatchState, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			b.log.InfoContext(ctx, "State file is missing so empty state is used",
				"statePath", b.path)

			return domain.NewWatchState(), nil
		}
		return domain.WatchState{}, fmt.Errorf("read state file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		b.log.WarnContext(ctx, "State file is empty so empty state is used",
			"statePath", b.path)

		return domain.NewWatchState(), nil
	}

	var state domain.WatchState
	if err = json.Unmarshal(data, &state); err != nil {
		return domain.WatchState{}, &domain.StorageCorruptError{Location: b.path, Err: err}
	}

	return state.Normalize(), nil
}

// Save replaces the state file atomically: the new content is written to a
// temp file in the same directory and renamed over the old one.
func (b *Backend) Save(ctx context.Context, state domain.WatchState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state.Normalize(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(b.path)
	if err = os.MkdirAll(dir, stateDirMode); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if !cleanup {
			return
		}
		if removeErr := os.Remove(tempName); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			b.log.WarnContext(ctx, "Failed to remove temp state file",
				"error", removeErr,
				"tempPath", tempName)
		}
	}()

	if _, err = tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}

	if err = tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}

	if err = tempFile.Chmod(stateFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}

	if err = tempFile.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err = os.Rename(tempName, b.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	cleanup = false

	return nil
}

func (b *Backend) Close() error {
	return nil
}
