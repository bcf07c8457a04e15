// Package pages implements the PageBinder collaborator (spec §2, §6): the
// map from (application, experiment) to pages, cleared on termination.
// Page-targeting CRUD internals are explicitly out of scope; this package
// only exposes the erase operation the service needs.
package pages

import "context"

// Binder erases page bindings for a terminated or deleted experiment.
type Binder interface {
	ErasePageData(ctx context.Context, appName, experimentID, user string) error
}

// NoopBinder is a Binder that performs no external work, standing in for
// the out-of-scope page-targeting subsystem while still giving the service
// a real collaborator to call through.
type NoopBinder struct{}

// ErasePageData always succeeds; there is no page-targeting store to erase
// in this core.
func (NoopBinder) ErasePageData(ctx context.Context, appName, experimentID, user string) error {
	return nil
}
