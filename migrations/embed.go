// Package migrations carries the versioned postgres schema so binaries and
// tests can migrate without a checkout on disk.
package migrations

import "embed"

// FS holds every *.sql migration in this directory
//
//go:embed *.sql
var FS embed.FS
