// Package mcp exposes a troupe Engine as a Model Context Protocol server,
// with the tools run_turn and describe_pipeline and the troupe://pipeline resource.
package mcp
