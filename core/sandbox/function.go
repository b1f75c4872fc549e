package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// PanicError is returned by Call when the function panicked.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string {
	return fmt.Sprint(p.Value)
}

// Function is an interpreted Go function.
type Function struct {
	name    string
	source  string
	fn      reflect.Value
	timeout time.Duration
}

func (f *Function) Name() string { return f.name }

func (f *Function) Source() string { return f.source }

func (f *Function) Type() reflect.Type { return f.fn.Type() }

// Call converts args to the parameter types and invokes the function. A
// panic, a non-nil trailing error result, or a timeout is returned as an
// error. A timed out call keeps running in its goroutine: the interpreter
// cannot be preempted.
func (f *Function) Call(ctx context.Context, args []any) (any, error) {
	in, err := convertArgs(f.name, f.fn.Type(), args)
	if err != nil {
		return nil, err
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	type outcome struct {
		value any
		err   error
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &PanicError{Value: r}}
			}
		}()
		v, err := f.invoke(in)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s did not return: %w", f.name, ctx.Err())
	}
}

func (f *Function) invoke(in []reflect.Value) (any, error) {
	t := f.fn.Type()
	out := f.fn.Call(in)

	if n := len(out); n > 0 && t.Out(n-1) == errorType {
		last := out[n-1]
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		out = out[:n-1]
	}

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		values := make([]any, len(out))
		for i, o := range out {
			values[i] = o.Interface()
		}
		return values, nil
	}
}

func convertArgs(name string, t reflect.Type, args []any) ([]reflect.Value, error) {
	n := t.NumIn()
	if t.IsVariadic() {
		if len(args) < n-1 {
			return nil, fmt.Errorf("%s() takes at least %d arguments but %d were given", name, n-1, len(args))
		}
	} else if len(args) != n {
		return nil, fmt.Errorf("%s() takes %d arguments but %d were given", name, n, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var pt reflect.Type
		if t.IsVariadic() && i >= n-1 {
			pt = t.In(n - 1).Elem()
		} else {
			pt = t.In(i)
		}

		v, err := convertArg(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("%s() argument %d: %w", name, i, err)
		}
		in[i] = v
	}
	return in, nil
}

// convertArg maps a decoded JSON value onto t, going through JSON again
// when the value is not directly assignable (float64 to int, []any to
// []string, objects to structs).
func convertArg(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(t), nil
	}

	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(t) {
		return v, nil
	}

	b, err := json.Marshal(arg)
	if err != nil {
		return reflect.Value{}, err
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(b, ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %s as %s", string(b), t)
	}
	return ptr.Elem(), nil
}
