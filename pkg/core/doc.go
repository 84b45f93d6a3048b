// Package core defines the shared language of the leapview system.
//
// This package contains:
//   - Source entities (Source, Format, Column, Row)
//   - Service interfaces (Adapter)
//   - Configuration types (SessionConfig, AdapterConfig)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
