// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package object implements a destination that uploads every output as a single object
// named "<prefix>/<pipeline>.<format>" to a Store. The file, gcs, azblob and s3 packages
// provide the stores.
package object
