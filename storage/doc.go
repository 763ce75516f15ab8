// Package storage persists model attributes outside the database: a per-model
// attributes.json document, and uploaded images with their sized variants
// whose names are kept either on a record or in that document.
package storage
