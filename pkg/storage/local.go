package storage

import (
	"github.com/madhesh-litfest/mlf/pkg/backend"
)

// DriverName identifies the local driver in logs and metrics.
const DriverName = "local"

// Backend bundles the store and an object directory as a backend driver.
func (s *Store) Backend(objects *Objects) backend.Backend {
	return backend.Backend{
		Records: s,
		Objects: objects,
		Auth:    s,
		Name:    DriverName,
	}
}

var (
	_ backend.RecordStore   = (*Store)(nil)
	_ backend.Authenticator = (*Store)(nil)
	_ backend.Refresher     = (*Store)(nil)
	_ backend.ObjectStore   = (*Objects)(nil)
)
