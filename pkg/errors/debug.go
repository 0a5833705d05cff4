package errors

import (
	"errors"
	"fmt"
)

// ErrorDump is a flattened view of an error chain for log payloads.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Kind       Kind   `json:"kind,omitempty"`
	Recovery   string `json:"recovery,omitempty"`

	Chain []string `json:"chain,omitempty"`

	Details any `json:"details,omitempty"`
}

// Dump unwraps an error into its diagnostic parts. Useful when a failure
// needs to be logged with its full cause chain.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if typed := As(err); typed != nil {
		d.Kind = typed.Kind()
		d.Recovery = string(MetadataFor(typed.Kind()).Recovery)
		d.Details = typed.Details()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	return d
}
