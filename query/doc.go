// Package query holds an immutable clause specification (conditions, ordering,
// limit/offset, eager loads and named scopes) and renders it onto bun queries.
package query
