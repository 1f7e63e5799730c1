package body

import (
	"fmt"
	"strings"
)

// ResponseType is the caller-declared shape of a response value.
type ResponseType string

const (
	TypeDefault     ResponseType = ""
	TypeText        ResponseType = "text"
	TypeJSON        ResponseType = "json"
	TypeDocument    ResponseType = "document"
	TypeArrayBuffer ResponseType = "arraybuffer"
	TypeBlob        ResponseType = "blob"
)

// ResponseTypes lists every accepted response type.
var ResponseTypes = []ResponseType{
	TypeDefault,
	TypeText,
	TypeJSON,
	TypeDocument,
	TypeArrayBuffer,
	TypeBlob,
}

// ParseResponseType validates s as a response type.
func ParseResponseType(s string) (ResponseType, error) {
	for _, rt := range ResponseTypes {
		if string(rt) == s {
			return rt, nil
		}
	}
	names := make([]string, 0, len(ResponseTypes))
	for _, rt := range ResponseTypes[1:] {
		names = append(names, string(rt))
	}
	return "", fmt.Errorf("invalid response type %q (expected one of %s)", s, strings.Join(names, ", "))
}

// IsBinary reports whether bodies of this type are kept as raw bytes.
func (t ResponseType) IsBinary() bool {
	return t == TypeArrayBuffer || t == TypeBlob
}

// KeepsText reports whether responseText stays populated after DONE.
func (t ResponseType) KeepsText() bool {
	return t == TypeDefault || t == TypeText
}
