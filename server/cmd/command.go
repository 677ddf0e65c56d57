package cmd

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
)

// Runnable represents a Command that may be run by a Source. The exported
// fields of the struct implementing Runnable are parsed as the parameters of
// the command, in the order they are declared. A field may carry a `cmd` tag
// to set its name; a tag of "-" excludes the field.
type Runnable interface {
	// Run runs the Command, using the arguments parsed into the struct's
	// fields. Output produced should be added to o.
	Run(src Source, o *Output)
}

// Allower may be implemented by a Runnable to restrict the sources that may
// run it. Runnables whose Allow method returns false are skipped entirely.
type Allower interface {
	Allow(src Source) bool
}

// Command is a command that may be executed by a Source. A Command holds one
// or more Runnables; they act as overloads and are tried in order until one
// parses the arguments passed.
type Command struct {
	name        string
	description string
	usage       string
	aliases     []string
	v           []reflect.Value
}

// New returns a new Command using the name, description and aliases passed.
// The runnables passed must be struct values; New panics otherwise.
func New(name, description string, aliases []string, r ...Runnable) Command {
	name = strings.ToLower(name)
	if !slices.Contains(aliases, name) {
		aliases = append([]string{name}, aliases...)
	}
	usages := make([]string, len(r))
	runnables := make([]reflect.Value, len(r))
	for i, runnable := range r {
		t := reflect.TypeOf(runnable)
		if t == nil || t.Kind() != reflect.Struct {
			panic(fmt.Sprintf("cmd.New: runnable %T must be a struct", runnable))
		}
		if err := verifyParameters(t); err != nil {
			panic(fmt.Sprintf("cmd.New: runnable %T: %v", runnable, err))
		}
		runnables[i] = reflect.ValueOf(runnable)
		usages[i] = usage(name, t)
	}
	return Command{
		name:        name,
		description: description,
		usage:       strings.Join(usages, "\n"),
		aliases:     slices.Clone(aliases),
		v:           runnables,
	}
}

// Name returns the name of the Command.
func (cmd Command) Name() string {
	return cmd.name
}

// Description returns the description passed to New.
func (cmd Command) Description() string {
	return cmd.description
}

// Usage returns one usage line per Runnable of the Command.
func (cmd Command) Usage() string {
	return cmd.usage
}

// Aliases returns all aliases of the Command, including its name.
func (cmd Command) Aliases() []string {
	return slices.Clone(cmd.aliases)
}

// Runnables returns the Runnables of the Command that the Source passed is
// allowed to run.
func (cmd Command) Runnables(src Source) []Runnable {
	runnables := make([]Runnable, 0, len(cmd.v))
	for _, v := range cmd.v {
		r := v.Interface().(Runnable)
		if a, ok := r.(Allower); ok && !a.Allow(src) {
			continue
		}
		runnables = append(runnables, r)
	}
	return runnables
}

// Execute parses args and runs the first Runnable that accepts them on behalf
// of source. If no Runnable accepts the arguments, the error of the Runnable
// that parsed the most arguments is sent back to the source.
func (cmd Command) Execute(args string, source Source) {
	output := &Output{}
	defer source.SendCommandOutput(output)

	var (
		leastErroneous error
		leastLeft      = math.MaxInt
		allowed        bool
	)
	for _, v := range cmd.v {
		cp := reflect.New(v.Type()).Elem()
		cp.Set(v)

		if a, ok := cp.Interface().(Allower); ok && !a.Allow(source) {
			continue
		}
		allowed = true

		line := newLine(args)
		err := cmd.executeRunnable(cp, line, source, output)
		if err == nil {
			return
		}
		if line.Len() < leastLeft {
			leastErroneous, leastLeft = err, line.Len()
		}
	}
	if !allowed {
		output.Errort(MessagePermission)
		return
	}
	if leastErroneous != nil {
		output.Error(leastErroneous)
	}
}

func (cmd Command) executeRunnable(v reflect.Value, line *Line, source Source, output *Output) error {
	if err := parseArguments(v, line, source); err != nil {
		return err
	}
	if leftover := line.Leftover(); len(leftover) != 0 {
		return errors.New(MessageUnexpectedArgs.F(strings.Join(leftover, " ")))
	}
	v.Interface().(Runnable).Run(source, output)
	return nil
}

// String returns the usage of the Command.
func (cmd Command) String() string {
	return cmd.usage
}
