package cmd

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// SubCommand is a parameter that must be matched literally by its name. It is
// used to build command trees out of several Runnables.
type SubCommand struct{}

// Varargs is a parameter that consumes all remaining arguments, joined by a
// single space. It must be the last parameter of a Runnable.
type Varargs string

// Arguments is a parameter that consumes all remaining arguments as they were
// split, so quoted arguments stay whole. It must be the last parameter of a
// Runnable.
type Arguments []string

// Enum is implemented by string types whose values are limited to a set of
// options. Options are matched case-insensitively.
type Enum interface {
	// Type returns the name of the enum shown in usages.
	Type() string
	// Options returns the valid values for the Source passed.
	Options(src Source) []string
}

// Optional wraps a parameter that may be left out. Optional parameters can
// only be followed by other optional parameters.
type Optional[T any] struct {
	val T
	set bool
}

// Load returns the value of the parameter and reports if it was set.
func (o Optional[T]) Load() (T, bool) {
	return o.val, o.set
}

// LoadOr returns the value of the parameter, or or if it was not set.
func (o Optional[T]) LoadOr(or T) T {
	if o.set {
		return o.val
	}
	return or
}

func (o Optional[T]) with(val any) any {
	return Optional[T]{val: val.(T), set: true}
}

type optionalT interface {
	with(val any) any
}

var (
	subCommandType = reflect.TypeOf(SubCommand{})
	varargsType    = reflect.TypeOf(Varargs(""))
	argumentsType  = reflect.TypeOf(Arguments(nil))
	enumType       = reflect.TypeOf((*Enum)(nil)).Elem()
	optionalType   = reflect.TypeOf((*optionalT)(nil)).Elem()
)

// parameter is a single exported field of a Runnable.
type parameter struct {
	index    int
	name     string
	t        reflect.Type
	optional bool
}

func parameters(t reflect.Type) []parameter {
	params := make([]parameter, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("cmd"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		p := parameter{index: i, name: name, t: sf.Type}
		if sf.Type.Implements(optionalType) {
			p.optional, p.t = true, sf.Type.Field(0).Type
		}
		params = append(params, p)
	}
	return params
}

func verifyParameters(t reflect.Type) error {
	optional := false
	params := parameters(t)
	for i, p := range params {
		if !supported(p.t) {
			return fmt.Errorf("parameter %v has unsupported type %v", p.name, p.t)
		}
		if (p.t == varargsType || p.t == argumentsType) && i != len(params)-1 {
			return fmt.Errorf("varargs parameter %v must be last", p.name)
		}
		if p.optional && p.t == subCommandType {
			return fmt.Errorf("sub command %v cannot be optional", p.name)
		}
		if optional && !p.optional {
			return fmt.Errorf("parameter %v follows an optional parameter", p.name)
		}
		optional = optional || p.optional
	}
	return nil
}

func supported(t reflect.Type) bool {
	if t == subCommandType || t == varargsType || t == argumentsType || t.Implements(enumType) {
		return true
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool, reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func typeName(t reflect.Type) string {
	switch {
	case t == varargsType, t == argumentsType:
		return "text"
	case t.Implements(enumType):
		return reflect.Zero(t).Interface().(Enum).Type()
	}
	switch t.Kind() {
	case reflect.Bool:
		return "bool"
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.String:
		return "string"
	}
	return "int"
}

func usage(name string, t reflect.Type) string {
	parts := []string{"/" + name}
	for _, p := range parameters(t) {
		switch {
		case p.t == subCommandType:
			parts = append(parts, p.name)
		case p.optional:
			parts = append(parts, "["+p.name+": "+typeName(p.t)+"]")
		default:
			parts = append(parts, "<"+p.name+": "+typeName(p.t)+">")
		}
	}
	return strings.Join(parts, " ")
}

// parseArguments parses the arguments in line into the fields of the
// addressable struct value v.
func parseArguments(v reflect.Value, line *Line, source Source) error {
	for _, p := range parameters(v.Type()) {
		field := v.Field(p.index)
		if line.Len() == 0 {
			if p.optional {
				continue
			}
			return errors.New(MessageMissingArgs.F(p.name))
		}
		val, err := parseValue(p, line, source)
		if err != nil {
			return err
		}
		if p.optional {
			field.Set(reflect.ValueOf(field.Interface().(optionalT).with(val.Interface())))
			continue
		}
		field.Set(val)
	}
	return nil
}

func parseValue(p parameter, line *Line, source Source) (reflect.Value, error) {
	if p.t == varargsType {
		return reflect.ValueOf(Varargs(strings.Join(line.RemoveAll(), " "))), nil
	}
	if p.t == argumentsType {
		return reflect.ValueOf(Arguments(line.RemoveAll())), nil
	}
	arg, _ := line.Next()
	if p.t == subCommandType {
		if !strings.EqualFold(arg, p.name) {
			return reflect.Value{}, errors.New(MessageParameterInvalid.F(arg))
		}
		line.RemoveNext()
		return reflect.ValueOf(SubCommand{}), nil
	}
	if p.t.Implements(enumType) {
		for _, opt := range reflect.Zero(p.t).Interface().(Enum).Options(source) {
			if strings.EqualFold(arg, opt) {
				line.RemoveNext()
				return reflect.ValueOf(opt).Convert(p.t), nil
			}
		}
		return reflect.Value{}, errors.New(MessageParameterInvalid.F(arg))
	}

	val := reflect.New(p.t).Elem()
	switch p.t.Kind() {
	case reflect.String:
		val.SetString(arg)
	case reflect.Bool:
		b, err := strconv.ParseBool(arg)
		if err != nil {
			return reflect.Value{}, errors.New(MessageBooleanInvalid.F(arg))
		}
		val.SetBool(b)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(arg, p.t.Bits())
		if err != nil {
			return reflect.Value{}, errors.New(MessageNumberInvalid.F(arg))
		}
		val.SetFloat(f)
	default:
		n, err := strconv.ParseInt(arg, 10, p.t.Bits())
		if err != nil {
			return reflect.Value{}, errors.New(MessageNumberInvalid.F(arg))
		}
		val.SetInt(n)
	}
	line.RemoveNext()
	return val, nil
}
