//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Registers sqlite-vec as an auto-loadable extension on the
	// mattn/go-sqlite3 driver. Actual nearest-neighbor search is done in Go
	// (see vector.go); this only makes the vec0 module available to
	// diagnostic queries and future virtual-table use.
	vec.Auto()
}
