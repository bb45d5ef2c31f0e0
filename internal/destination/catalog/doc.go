// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package catalog implements a destination that publishes pipeline outputs to an HTTP
// data catalog.
// Rows are posted as JSON documents in batches; the endpoint can be protected with a
// static bearer token or with an OAuth2 client credentials flow.
package catalog
