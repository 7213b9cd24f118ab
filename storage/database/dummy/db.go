package dummydb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/audit"
	"github.com/trezcool/ihub/core/category"
	"github.com/trezcool/ihub/core/profile"
	"github.com/trezcool/ihub/core/project"
	"github.com/trezcool/ihub/core/user"
)

var errNoSQL = errors.New("dummydb: raw SQL is not supported")

type (
	// DB is an in-memory database for tests and local development.
	DB struct {
		sync.RWMutex
		txMu sync.Mutex
		data tables
	}

	tables struct {
		users      map[string]user.User
		profiles   map[string]profile.Profile
		projects   map[int64]project.Project
		categories map[int64]category.Category
		audit      []audit.Entry

		projectPK  int64
		categoryPK int64
		auditPK    int64
	}

	// executor stands in for a *sql.Tx; dummy repositories ignore it.
	executor struct{}
)

var (
	_ core.Transactor = (*DB)(nil)
	_ core.DBExecutor = executor{}
)

func Open() *DB {
	return &DB{data: newTables()}
}

func newTables() tables {
	return tables{
		users:      make(map[string]user.User),
		profiles:   make(map[string]profile.Profile),
		projects:   make(map[int64]project.Project),
		categories: make(map[int64]category.Category),
	}
}

func (t tables) clone() tables {
	c := t
	c.users = make(map[string]user.User, len(t.users))
	for k, v := range t.users {
		c.users[k] = v
	}
	c.profiles = make(map[string]profile.Profile, len(t.profiles))
	for k, v := range t.profiles {
		c.profiles[k] = v
	}
	c.projects = make(map[int64]project.Project, len(t.projects))
	for k, v := range t.projects {
		c.projects[k] = v
	}
	c.categories = make(map[int64]category.Category, len(t.categories))
	for k, v := range t.categories {
		c.categories[k] = v
	}
	c.audit = append([]audit.Entry(nil), t.audit...)
	return c
}

// RunInTx runs fn against a snapshot of the tables and restores the snapshot when fn fails.
// Transactions are serialized.
func (db *DB) RunInTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.RLock()
	snapshot := db.data.clone()
	db.RUnlock()

	if err := fn(executor{}); err != nil {
		db.Lock()
		db.data = snapshot
		db.Unlock()
		return err
	}
	return nil
}

// Flush empties all tables.
func (db *DB) Flush() {
	db.Lock()
	defer db.Unlock()
	db.data = newTables()
}

func (executor) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}

func (executor) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (executor) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}
