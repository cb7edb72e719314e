// Package table provides read-only table snapshot sources: structured files
// (YAML or JSON) and SQLite databases.
package table
