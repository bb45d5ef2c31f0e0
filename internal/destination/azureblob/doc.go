// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package azureblob implements an object store backed by an Azure Blob Storage container.
// The client is built from AZURE_STORAGE_CONNECTION_STRING when set, otherwise from
// AZURE_STORAGE_ACCOUNT and the default Azure credential chain.
package azureblob
