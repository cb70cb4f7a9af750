// Package logger wraps zap with a global sugared logger and context helpers.
//
// The launcher stores a named logger in the context (WithName/WithKV) and every
// stage logs through it, so update, engine and replay messages carry the stage
// name and the match ID. Numeric levels from the command line (10..50) are
// mapped onto zap levels by FromNumericLevel.
package logger
