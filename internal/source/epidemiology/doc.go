// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package epidemiology implements handlers for case line data published by health
// authorities. Importing the package registers them in the source registry.
package epidemiology

import (
	"github.com/mia-platform/odp/internal/source"
)

func init() {
	source.Register(PhilippinesName, func() source.DataSource { return new(PhilippinesDataSource) })
}
