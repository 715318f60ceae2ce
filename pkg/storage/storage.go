// Package storage persists the relay state (watch lists and discovery seen-set)
package storage

import (
	"fmt"
	"strings"

	"github.com/raykavin/dexwatch/pkg/core"
)

const (
	DriverBuntDB = "buntdb"
	DriverSQLite = "sqlite"
)

// Open returns the backend selected by settings
func Open(settings core.StorageSettings) (core.StateStorage, error) {
	switch strings.ToLower(settings.Driver) {
	case "", DriverBuntDB:
		return FromFile(settings.Path)
	case DriverSQLite:
		return FromSQLite(settings.Path)
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", core.ErrConfig, settings.Driver)
	}
}
