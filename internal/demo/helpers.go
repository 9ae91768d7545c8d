package demo

import (
	"github.com/forrst/forrst/internal/envelope"
	"github.com/forrst/forrst/internal/ferrors"
)

func requiredString(args *envelope.Value, name string) (string, *ferrors.Error) {
	if args == nil {
		return "", missingArgument(name)
	}
	v, ok := args.Get(name)
	if !ok {
		return "", missingArgument(name)
	}
	s, ok := v.Raw().(string)
	if !ok {
		return "", ferrors.New(ferrors.KindInvalidArguments, "expected string").WithPointer("/call/arguments/" + name)
	}
	return s, nil
}

func optionalString(args *envelope.Value, name string) string {
	if args == nil {
		return ""
	}
	if v, ok := args.Get(name); ok {
		if s, ok := v.Raw().(string); ok {
			return s
		}
	}
	return ""
}

func requiredStringList(args *envelope.Value, name string) ([]string, *ferrors.Error) {
	if args == nil {
		return nil, missingArgument(name)
	}
	v, ok := args.Get(name)
	if !ok || !v.IsList() {
		return nil, missingArgument(name)
	}
	items := v.Items()
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.Raw().(string)
		if !ok {
			return nil, ferrors.Newf(ferrors.KindInvalidArguments, "expected string at index %d", i).
				WithPointer("/call/arguments/" + name)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, missingArgument(name)
	}
	return out, nil
}

func stringListValue(ss []string) envelope.Value {
	items := make([]envelope.Value, len(ss))
	for i, s := range ss {
		items[i] = envelope.Scalar(s)
	}
	return envelope.List(items...)
}

func missingArgument(name string) *ferrors.Error {
	return ferrors.Newf(ferrors.KindInvalidArguments, "missing required argument %q", name).
		WithPointer("/call/arguments/" + name)
}
