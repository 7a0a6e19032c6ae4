// Package storage selects the call store backend.
package storage

import (
	"fmt"

	"github.com/dkeye/Telehealth/internal/config"
	"github.com/dkeye/Telehealth/internal/core"
	"github.com/dkeye/Telehealth/internal/storage/memory"
	"github.com/dkeye/Telehealth/internal/storage/sqlite"
)

func Open(cfg config.Storage) (core.CallStore, error) {
	switch cfg.Driver {
	case "memory":
		return memory.New(), nil
	case "sqlite", "":
		return sqlite.Open(cfg.Path)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
