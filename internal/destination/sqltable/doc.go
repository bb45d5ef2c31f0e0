// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package sqltable implements a destination that replaces a database table with the
// pipeline output. SQLite databases use the pure Go modernc driver and PostgreSQL
// databases use pgx through database/sql.
package sqltable
