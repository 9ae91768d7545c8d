// Package validate defines the pluggable argument validator the pipeline
// runs before invocation, and ships one default implementation:
// required-field presence plus a JSON-shape check against each function's
// ArgumentSpec list.
package validate

import (
	"encoding/json"
	"fmt"

	"github.com/forrst/forrst/internal/envelope"
	"github.com/forrst/forrst/internal/ferrors"
	"github.com/forrst/forrst/internal/version"
)

// Validator checks a call's arguments against a function's declared
// ArgumentSpec list and returns every violation found, each carrying a
// precise source.pointer. A nil/empty return means the arguments are
// acceptable.
type Validator interface {
	Validate(args *envelope.Value, specs []version.ArgumentSpec) []*ferrors.Error
}

// Default is the core's built-in Validator: required-field presence and a
// coarse type-shape check (string/number/boolean/object/array; "any"
// always passes).
type Default struct{}

// New constructs the default Validator.
func New() Default { return Default{} }

// Validate implements Validator.
func (Default) Validate(args *envelope.Value, specs []version.ArgumentSpec) []*ferrors.Error {
	var errs []*ferrors.Error
	for _, spec := range specs {
		pointer := "/call/arguments/" + spec.Name
		var value envelope.Value
		var present bool
		if args != nil {
			value, present = args.Get(spec.Name)
		}
		if !present {
			if spec.Required {
				errs = append(errs, ferrors.Newf(ferrors.KindInvalidArguments, "missing required argument %q", spec.Name).
					WithPointer(pointer))
			}
			continue
		}
		if ferr := checkType(value, spec.Type, pointer); ferr != nil {
			errs = append(errs, ferr)
		}
	}
	return errs
}

func checkType(v envelope.Value, want string, pointer string) *ferrors.Error {
	if want == "" || want == "any" {
		return nil
	}
	switch want {
	case "object":
		if !v.IsObject() {
			return typeMismatch(want, pointer)
		}
	case "array":
		if !v.IsList() {
			return typeMismatch(want, pointer)
		}
	case "string":
		if _, ok := v.Raw().(string); !ok {
			return typeMismatch(want, pointer)
		}
	case "number":
		switch v.Raw().(type) {
		case float64, int, int64, json.Number:
		default:
			return typeMismatch(want, pointer)
		}
	case "boolean":
		if _, ok := v.Raw().(bool); !ok {
			return typeMismatch(want, pointer)
		}
	}
	return nil
}

func typeMismatch(want, pointer string) *ferrors.Error {
	return ferrors.New(ferrors.KindInvalidArguments, fmt.Sprintf("expected %s", want)).WithPointer(pointer)
}
