// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store is the persistence layer for the portfolio core: a thin
// wrapper over a pgx connection pool plus one file of queries per entity.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the querying surface the entity files run against, satisfied by
// both *pgxpool.Pool and pgx.Tx so the same queries work inside and
// outside a transaction.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store holds the database connection pool shared by every entity's
// queries. DB is the handle queries actually run on: the pool itself, or
// a transaction for a Store handed out by WithTx.
type Store struct {
	DBUrl string
	Pool  *pgxpool.Pool
	DB    DB
}

// Connect opens the pool if it isn't already open.
func (s *Store) Connect(ctx context.Context) error {
	if s.Pool != nil {
		return nil
	}

	pool, err := pgxpool.New(ctx, s.DBUrl)
	if err != nil {
		return err
	}
	s.Pool = pool
	s.DB = pool

	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// New opens a pool against dbURL and returns a ready Store.
func New(ctx context.Context, dbURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	return &Store{DBUrl: dbURL, Pool: pool, DB: pool}, nil
}

// WithTx runs fn against a Store bound to a single database transaction,
// committing if fn returns nil and rolling back otherwise. The
// transaction-bound Store must not be retained past fn.
func (s *Store) WithTx(ctx context.Context, fn func(*Store) error) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	txStore := &Store{DBUrl: s.DBUrl, Pool: s.Pool, DB: tx}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
