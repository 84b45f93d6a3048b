// Package adapter provides query engine adapter interfaces and the shared
// database/sql plumbing used by concrete engines.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves with this package from their init() functions.
package adapter

import (
	"github.com/leapstack-labs/leapview/pkg/core"
)

// Type aliases so adapter implementations only need to import this package.
type (
	// Adapter is an alias for core.Adapter.
	Adapter = core.Adapter
	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig
	// Column is an alias for core.Column.
	Column = core.Column
	// Rows is an alias for core.Rows.
	Rows = core.Rows
)
