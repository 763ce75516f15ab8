// Package database provides connection management for MySQL, PostgreSQL and
// SQLite through Bun, model registration and migrations, query logging and
// metrics hooks, SQL error classification and the shared structured logger.
package database
