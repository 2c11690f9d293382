package database

import (
	"context"
	"errors"
	"fmt"
	"postwatch/internal/domain"
	"strings"
)

func (d *Database) Load(ctx context.Context) (domain.WatchState, error) {
	state := domain.NewWatchState()

	users, err := d.loadAccounts(ctx)
	if err != nil {
		return domain.WatchState{}, err
	}
	state.Users = append(state.Users, users...)

	if err = d.loadCursors(ctx, state.LastIDs); err != nil {
		return domain.WatchState{}, err
	}

	return state, nil
}

func (d *Database) loadAccounts(ctx context.Context) ([]string, error) {
	query := "select handle from accounts order by position"

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", closeErr,
				"dbPath", d.dbPath,
				"operation", "loadAccounts")
		}
	}()

	var users []string
	for rows.Next() {
		var handle string
		if err = rows.Scan(&handle); err != nil {
			return nil, &domain.StorageCorruptError{Location: d.dbPath, Err: fmt.Errorf("scan row: %w", err)}
		}

		users = append(users, strings.TrimSpace(handle))
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return users, nil
}

func (d *Database) loadCursors(ctx context.Context, into map[string]string) error {
	query := "select handle, item_id from cursors"

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", closeErr,
				"dbPath", d.dbPath,
				"operation", "loadCursors")
		}
	}()

	for rows.Next() {
		var handle, itemID string
		if err = rows.Scan(&handle, &itemID); err != nil {
			return &domain.StorageCorruptError{Location: d.dbPath, Err: fmt.Errorf("scan row: %w", err)}
		}

		into[handle] = itemID
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}

	return nil
}

// Save replaces both tables inside one transaction so readers never see a
// watch-set without its cursors.
func (d *Database) Save(ctx context.Context, state domain.WatchState) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback tx: %w", rollbackErr))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, "delete from accounts"); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "delete from cursors"); err != nil {
		return fmt.Errorf("clear cursors: %w", err)
	}

	for position, handle := range state.Users {
		query := "insert into accounts (position, handle) values (?, ?)"

		if _, err = tx.ExecContext(ctx, query, position, handle); err != nil {
			return fmt.Errorf("insert account (handle = %s): %w", handle, err)
		}
	}

	for handle, itemID := range state.LastIDs {
		query := "insert into cursors (handle, item_id) values (?, ?)"

		if _, err = tx.ExecContext(ctx, query, handle, itemID); err != nil {
			return fmt.Errorf("insert cursor (handle = %s): %w", handle, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
