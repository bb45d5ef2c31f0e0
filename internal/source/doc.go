// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package source defines the contract implemented by the data source handlers named in
// pipeline configuration files and the registry used to resolve those names.
// Handlers register themselves from their package init function under the dotted name
// used in the sources section, for example
// "pipelines.mobility.google_mobility.GoogleMobilityDataSource".
package source
