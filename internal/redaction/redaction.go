// Package redaction implements the result-tree field masking engine:
// recursive field masking (full/partial/none) over arbitrary response
// result trees, with an authorization gate for unredacted access. The
// engine is built once with its field set and reused concurrently; result
// values are already structured (envelope.Value), so masking walks typed
// fields rather than pattern-matching opaque text.
package redaction

import (
	"fmt"
	"sort"
	"strings"

	"github.com/forrst/forrst/internal/envelope"
	"github.com/forrst/forrst/internal/ferrors"
)

// Mode is one of the three redaction modes.
type Mode string

const (
	ModeFull    Mode = "full"
	ModePartial Mode = "partial"
	ModeNone    Mode = "none"
)

// FieldKind informs partial-mode masking shape for a known sensitive field.
type FieldKind string

const (
	KindGeneric FieldKind = "generic"
	KindEmail   FieldKind = "email"
	KindPhone   FieldKind = "phone"
	KindCard    FieldKind = "card"
	KindSSN     FieldKind = "ssn"
	KindName    FieldKind = "name"
)

// DefaultSensitiveFields is the default sensitive field set.
var DefaultSensitiveFields = map[string]FieldKind{
	"password":        KindGeneric,
	"secret":          KindGeneric,
	"token":           KindGeneric,
	"api_key":         KindGeneric,
	"card_number":     KindCard,
	"cvv":             KindGeneric,
	"account_number":  KindGeneric,
	"ssn":             KindSSN,
	"tax_id":          KindGeneric,
	"passport_number": KindGeneric,
	"email":           KindEmail,
	"phone":           KindPhone,
}

// AuthChecker decides whether a caller is permitted to request Mode "none"
// (unredacted access). Returning false yields FORBIDDEN.
type AuthChecker func(policy string, requestContext map[string]any) bool

// Engine recursively masks a result tree. Safe for concurrent use once
// constructed; its field set is immutable after New.
type Engine struct {
	fields map[string]FieldKind
	auth   AuthChecker
}

// New constructs an Engine with the default sensitive field set merged with
// any extra fields supplied, and the given authorization checker for
// Mode "none" requests.
func New(extra map[string]FieldKind, auth AuthChecker) *Engine {
	fields := make(map[string]FieldKind, len(DefaultSensitiveFields)+len(extra))
	for k, v := range DefaultSensitiveFields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return &Engine{fields: fields, auth: auth}
}

// Result is the response-side redaction extension payload.
type Result struct {
	Mode           Mode
	RedactedFields []string
	Policy         string
}

// Redact masks v per mode. policy names the access-control policy checked
// when mode is ModeNone; requestContext is passed through to the
// AuthChecker unchanged.
func (e *Engine) Redact(v envelope.Value, mode Mode, policy string, requestContext map[string]any) (envelope.Value, Result, *ferrors.Error) {
	if mode == ModeNone {
		if e.auth == nil || !e.auth(policy, requestContext) {
			return envelope.Value{}, Result{}, ferrors.New(ferrors.KindForbidden, "unredacted access denied").WithDetail("policy", policy)
		}
		return v, Result{Mode: ModeNone, Policy: "authorized_access"}, nil
	}

	var touched []string
	out := e.walk(v, "", mode, &touched)
	sort.Strings(touched)
	return out, Result{Mode: mode, RedactedFields: touched, Policy: policy}, nil
}

func (e *Engine) walk(v envelope.Value, path string, mode Mode, touched *[]string) envelope.Value {
	switch {
	case v.IsObject():
		out := make(map[string]envelope.Value, v.Len())
		for _, k := range v.Keys() {
			child, _ := v.Get(k)
			childPath := path + "/" + k
			if kind, sensitive := e.fields[strings.ToLower(k)]; sensitive {
				out[k] = maskLeaf(child, mode, kind)
				*touched = append(*touched, childPath)
				continue
			}
			out[k] = e.walk(child, childPath, mode, touched)
		}
		return envelope.Object(out)
	case v.IsList():
		items := v.Items()
		masked := make([]envelope.Value, len(items))
		for i, item := range items {
			masked[i] = e.walk(item, fmt.Sprintf("%s/%d", path, i), mode, touched)
		}
		return envelope.List(masked...)
	default:
		return v
	}
}

func maskLeaf(v envelope.Value, mode Mode, kind FieldKind) envelope.Value {
	if mode == ModeFull {
		return envelope.Scalar("***")
	}
	s, ok := v.Raw().(string)
	if !ok {
		return envelope.Scalar("***")
	}
	switch kind {
	case KindEmail:
		return envelope.Scalar(maskEmail(s))
	case KindPhone, KindCard, KindSSN:
		return envelope.Scalar(maskLastFour(s))
	case KindName:
		return envelope.Scalar(initials(s))
	default:
		return envelope.Scalar("***")
	}
}

func maskEmail(s string) string {
	at := strings.IndexByte(s, '@')
	if at <= 0 {
		return "***"
	}
	domain := s[at+1:]
	tld := domain
	if dot := strings.LastIndexByte(domain, '.'); dot >= 0 {
		tld = domain[dot+1:]
	}
	return string(s[0]) + "***@***." + tld
}

func maskLastFour(s string) string {
	digits := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-4:])
}

func initials(s string) string {
	parts := strings.Fields(s)
	var b strings.Builder
	for _, p := range parts {
		if p != "" {
			b.WriteByte(p[0])
			b.WriteByte('.')
		}
	}
	if b.Len() == 0 {
		return "***"
	}
	return b.String()
}

