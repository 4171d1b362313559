// Package assets turns the configured asset categories into registered tasks
// and provides the built-in actions they run: file copy, external command and
// markdown rendering. It also implements clean.
package assets
