// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package encode serializes a pipeline output in one of the supported file formats.
package encode
