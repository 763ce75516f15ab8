// Package repokit wires configuration, the global database and generic
// repositories together. Service hands out one repository per request.
package repokit
