package policy

import "strings"

// forbiddenMethods are rejected by Open regardless of case
var forbiddenMethods = map[string]struct{}{
	"TRACE":   {},
	"TRACK":   {},
	"CONNECT": {},
}

// normalizedMethods are upper-cased on Open, anything else keeps its case
var normalizedMethods = map[string]struct{}{
	"DELETE":  {},
	"GET":     {},
	"HEAD":    {},
	"OPTIONS": {},
	"POST":    {},
	"PUT":     {},
}

// ForbiddenHeaders lists the request headers owned by the transport.
var ForbiddenHeaders = []string{
	"accept-charset",
	"accept-encoding",
	"access-control-request-headers",
	"access-control-request-method",
	"connection",
	"content-length",
	"content-transfer-encoding",
	"cookie",
	"cookie2",
	"date",
	"expect",
	"host",
	"keep-alive",
	"origin",
	"referer",
	"te",
	"trailer",
	"transfer-encoding",
	"upgrade",
	"via",
}

// ForbiddenHeaderPrefixes are reserved name prefixes.
var ForbiddenHeaderPrefixes = []string{
	"proxy-",
	"sec-",
}

var forbiddenHeaderSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(ForbiddenHeaders))
	for _, h := range ForbiddenHeaders {
		m[h] = struct{}{}
	}
	return m
}()

// IsAllowedMethod reports whether method may be used to open a request.
func IsAllowedMethod(method string) bool {
	if method == "" {
		return false
	}
	_, forbidden := forbiddenMethods[strings.ToUpper(method)]
	return !forbidden
}

// IsAllowedHeader reports whether a caller may set the named request header.
func IsAllowedHeader(name string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	if _, forbidden := forbiddenHeaderSet[lower]; forbidden {
		return false
	}
	for _, prefix := range ForbiddenHeaderPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}

// NormalizeMethod upper-cases the well-known methods and leaves others alone.
func NormalizeMethod(method string) string {
	upper := strings.ToUpper(method)
	if _, ok := normalizedMethods[upper]; ok {
		return upper
	}
	return method
}

// Checker applies the header check unless Disabled is set.
type Checker struct {
	Disabled bool
}

// AllowHeader reports whether name may be set under this checker.
func (c Checker) AllowHeader(name string) bool {
	if c.Disabled {
		return name != ""
	}
	return IsAllowedHeader(name)
}
