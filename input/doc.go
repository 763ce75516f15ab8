// Package input exposes request-like key/value input (query string, form,
// JSON body, uploaded files, current page) behind a small Source interface.
package input
