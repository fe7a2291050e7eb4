package obtrack

import (
	"context"
	"fmt"
	"reflect"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// WrapFunc decorates an arbitrary function with mws under the identifier id.
//
// fn may take a context.Context as its first parameter; it is passed to the
// middlewares and excluded from the recorded arguments. fn must return error
// as its last value so store failures can be reported. Variadic functions
// are not supported. WrapFunc panics when fn cannot be wrapped.
//
//	store := func(ctx context.Context, v string) (string, error) { ... }
//	tracked := obtrack.WrapFunc("store", store, tracker.Middlewares()...)
func WrapFunc[T any](id string, fn T, mws ...Middleware) T {
	if id == "" {
		panic("obtrack.WrapFunc: operation id is required")
	}
	if err := ValidateWrappableFunction(fn); err != nil {
		panic("obtrack.WrapFunc: " + err.Error())
	}

	fnValue := reflect.ValueOf(fn)
	fnType := fnValue.Type()
	withCtx := takesContext(fnType)

	inv := Chain(id, func(ctx context.Context, args []any) (any, error) {
		return processResults(fnValue.Call(buildArgs(fnType, withCtx, ctx, args)))
	}, mws...)

	wrapper := reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		ctx, callArgs := extractContextAndArgs(withCtx, args)
		out, err := inv(ctx, callArgs)
		if err != nil {
			return createErrorReturn(fnType, err)
		}
		return convertResult(out, fnType)
	})

	return wrapper.Interface().(T)
}

// ValidateWrappableFunction checks if a function can be wrapped by WrapFunc
func ValidateWrappableFunction(fn any) error {
	if fn == nil {
		return fmt.Errorf("not a function: nil")
	}

	fnType := reflect.TypeOf(fn)
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("not a function: %T", fn)
	}
	if reflect.ValueOf(fn).IsNil() {
		return fmt.Errorf("nil function")
	}

	if fnType.IsVariadic() {
		return fmt.Errorf("variadic functions are not supported")
	}

	numOut := fnType.NumOut()
	if numOut == 0 || fnType.Out(numOut-1) != errorType {
		return fmt.Errorf("functions must return error as the last value")
	}

	return nil
}

func takesContext(fnType reflect.Type) bool {
	return fnType.NumIn() > 0 && fnType.In(0) == contextType
}

// extractContextAndArgs splits reflected call arguments into context and recorded args
func extractContextAndArgs(withCtx bool, args []reflect.Value) (context.Context, []any) {
	ctx := context.Background()
	if withCtx {
		if c, ok := args[0].Interface().(context.Context); ok && c != nil {
			ctx = c
		}
		args = args[1:]
	}

	callArgs := make([]any, len(args))
	for i, arg := range args {
		callArgs[i] = arg.Interface()
	}
	return ctx, callArgs
}

func buildArgs(fnType reflect.Type, withCtx bool, ctx context.Context, args []any) []reflect.Value {
	in := make([]reflect.Value, 0, fnType.NumIn())
	offset := 0
	if withCtx {
		in = append(in, reflect.ValueOf(&ctx).Elem())
		offset = 1
	}
	for i, arg := range args {
		in = append(in, valueOf(arg, fnType.In(i+offset)))
	}
	return in
}

// processResults collapses reflected results into the Invoker shape.
// The error is always the last value.
func processResults(results []reflect.Value) (any, error) {
	last := results[len(results)-1]
	if !last.IsNil() {
		return nil, last.Interface().(error)
	}

	values := results[:len(results)-1]
	switch len(values) {
	case 0:
		return nil, nil
	case 1:
		return values[0].Interface(), nil
	default:
		out := make([]any, len(values))
		for i, v := range values {
			out[i] = v.Interface()
		}
		return out, nil
	}
}

// convertResult expands an Invoker result back into the function's return values
func convertResult(value any, fnType reflect.Type) []reflect.Value {
	numOut := fnType.NumOut()
	results := make([]reflect.Value, numOut)
	results[numOut-1] = reflect.Zero(errorType)

	switch numOut {
	case 1:
	case 2:
		results[0] = valueOf(value, fnType.Out(0))
	default:
		values, _ := value.([]any)
		for i := 0; i < numOut-1; i++ {
			var v any
			if i < len(values) {
				v = values[i]
			}
			results[i] = valueOf(v, fnType.Out(i))
		}
	}

	return results
}

// createErrorReturn creates a return value slice with the given error
func createErrorReturn(fnType reflect.Type, err error) []reflect.Value {
	numOut := fnType.NumOut()
	results := make([]reflect.Value, numOut)

	for i := 0; i < numOut-1; i++ {
		results[i] = reflect.Zero(fnType.Out(i))
	}
	results[numOut-1] = reflect.ValueOf(&err).Elem()

	return results
}

func valueOf(v any, typ reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(typ)
	}
	value := reflect.ValueOf(v)
	if value.Type() != typ && value.Type().ConvertibleTo(typ) && typ.Kind() != reflect.Interface {
		return value.Convert(typ)
	}
	return value
}
