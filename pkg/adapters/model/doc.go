// Package model holds decorators for the model port.
package model
