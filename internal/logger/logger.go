package logger

import "ChordDHT/internal/domain"

// Field represents a structured key:value log field.
type Field struct {
	Key string
	Val any
}

// Logger is the minimal structured-logging interface used throughout
// the node, routing table, storage, and client packages.
type Logger interface {
	Named(name string) Logger
	With(fields ...Field) Logger
	WithNode(n domain.Node) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// F is a helper to build a Field concisely.
func F(key string, val any) Field { return Field{Key: key, Val: val} }

// FNode serializes a *domain.Node (possibly nil) into a readable
// structured field.
func FNode(key string, n *domain.Node) Field {
	if n == nil {
		return Field{Key: key, Val: nil}
	}
	return Field{
		Key: key,
		Val: map[string]any{
			"id":   n.ID.ToHexString(false),
			"addr": n.Addr,
		},
	}
}

// FResource serializes a domain.Resource into a readable structured
// field, omitting the value to avoid leaking payloads into logs.
func FResource(key string, r domain.Resource) Field {
	return Field{
		Key: key,
		Val: map[string]any{
			"key":     r.Key.ToHexString(false),
			"raw_key": r.RawKey,
		},
	}
}

// ----------------------------------------------------------------
// NopLogger is a Logger implementation that discards everything.

type NopLogger struct{}

func (l *NopLogger) Named(name string) Logger          { return l }
func (l *NopLogger) With(fields ...Field) Logger       { return l }
func (l *NopLogger) WithNode(n domain.Node) Logger     { return l }
func (l *NopLogger) Debug(msg string, fields ...Field) {}
func (l *NopLogger) Info(msg string, fields ...Field)  {}
func (l *NopLogger) Warn(msg string, fields ...Field)  {}
func (l *NopLogger) Error(msg string, fields ...Field) {}
