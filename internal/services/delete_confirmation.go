package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/blackdropbox/blackdropbox/internal/models"
)

// ConfirmState is the state of a delete confirmation.
type ConfirmState string

const (
	ConfirmIdle       ConfirmState = "idle"
	ConfirmConfirming ConfirmState = "confirming"
	ConfirmConfirmed  ConfirmState = "confirmed"
	ConfirmCancelled  ConfirmState = "cancelled"
)

// DeleteConfirmation is a pending request to delete one file. It moves
// from idle to confirming when requested, then to either confirmed or
// cancelled exactly once; nothing is deleted until Confirm is called.
type DeleteConfirmation struct {
	catalog *FileCatalog
	entry   models.FileEntry

	mu    sync.Mutex
	state ConfirmState
	err   error
}

// Entry returns the file awaiting confirmation.
func (d *DeleteConfirmation) Entry() models.FileEntry {
	return d.entry
}

// Prompt returns the question shown to the user.
func (d *DeleteConfirmation) Prompt() string {
	return fmt.Sprintf("Delete %q? This cannot be undone.", d.entry.Name())
}

// State returns the current state.
func (d *DeleteConfirmation) State() ConfirmState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the storage error of a confirmed delete, if it failed.
func (d *DeleteConfirmation) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// open moves an idle confirmation to confirming.
func (d *DeleteConfirmation) open() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == ConfirmIdle {
		d.state = ConfirmConfirming
	}
}

// Confirm performs the delete. A failed delete still settles the
// confirmation; the file stays in the catalog.
func (d *DeleteConfirmation) Confirm(ctx context.Context) error {
	d.mu.Lock()
	if d.state != ConfirmConfirming {
		state := d.state
		d.mu.Unlock()
		return fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, state)
	}
	d.state = ConfirmConfirmed
	d.mu.Unlock()

	err := d.catalog.remove(ctx, d.entry)

	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
	return err
}

// Cancel abandons the delete.
func (d *DeleteConfirmation) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != ConfirmConfirming {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, d.state)
	}
	d.state = ConfirmCancelled
	return nil
}
