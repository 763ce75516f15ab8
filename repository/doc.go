// Package repository provides a generic bun backed repository with chainable
// query clauses, attribute map driven create/update/delete and request input
// shaping.
package repository
