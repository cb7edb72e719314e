// Package prompt implements the prompt renderer port.
//
// Templates are plain text with {{name}} placeholders. The built-in set covers
// every model-capable stage and can be overlaid from a directory of markdown
// documents managed by Loam, whose frontmatter may also set the model name and
// temperature for the stage.
package prompt
