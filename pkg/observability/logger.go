// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package observability provides logging and output redaction.
package observability

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Prefix is shown in front of every log line.
const Prefix = "npm-release"

// Logger is the structured logger interface.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Success(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field represents a log field.
type Field struct {
	Key   string
	Value any
}

// logger writes info/success lines to one sink and warnings/errors to another,
// mirroring how CI systems separate stdout and stderr.
type logger struct {
	out *log.Logger
	err *log.Logger
}

// NewLogger creates a logger writing to the process stdout and stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriters(os.Stdout, os.Stderr, level)
}

// NewLoggerWithWriters creates a logger on the given sinks. Unknown levels
// fall back to info.
func NewLoggerWithWriters(stdout, stderr io.Writer, level string) Logger {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	opts := log.Options{Prefix: Prefix, Level: lvl}
	return &logger{
		out: log.NewWithOptions(stdout, opts),
		err: log.NewWithOptions(stderr, opts),
	}
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return NewLoggerWithWriters(io.Discard, io.Discard, "error")
}

func (l *logger) Debug(msg string, fields ...Field) {
	l.out.Debug(msg, keyvals(fields)...)
}

func (l *logger) Info(msg string, fields ...Field) {
	l.out.Info(msg, keyvals(fields)...)
}

// Success is logged at info level with a check mark.
func (l *logger) Success(msg string, fields ...Field) {
	l.out.Info("✔ "+msg, keyvals(fields)...)
}

func (l *logger) Warn(msg string, fields ...Field) {
	l.err.Warn(msg, keyvals(fields)...)
}

func (l *logger) Error(msg string, fields ...Field) {
	l.err.Error(msg, keyvals(fields)...)
}

func (l *logger) With(fields ...Field) Logger {
	kv := keyvals(fields)
	return &logger{
		out: l.out.With(kv...),
		err: l.err.With(kv...),
	}
}

func keyvals(fields []Field) []any {
	if len(fields) == 0 {
		return nil
	}
	kv := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		kv = append(kv, f.Key, f.Value)
	}
	return kv
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
