package boltfs

import (
	"github.com/gostratum/core/logx"
)

// ArgsToFields converts loosely-typed key/value pairs into logx fields.
// It keeps call sites concise and tolerates a trailing unpaired key.
func ArgsToFields(args ...any) []logx.Field {
	fields := make([]logx.Field, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = "arg"
		}
		fields = append(fields, logx.Any(key, args[i+1]))
	}
	return fields
}
