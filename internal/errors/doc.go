// Package errors provides classified errors for the publish pipeline.
//
// Every stage surfaces a ClassifiedError carrying a category (config, git,
// toolchain, generate, publish, ...), a severity, and structured context.
// The CLI and daemon log these with slog attributes instead of string
// parsing error messages.
package errors
