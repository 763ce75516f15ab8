// Package utils provides named logrus loggers with text and JSON formatters
// and small environment helpers.
package utils
