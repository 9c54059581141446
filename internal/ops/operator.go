// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package ops

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/cpuid"
	"github.com/mlnoga/snowline/internal/store"
	"github.com/pbnjay/memory"
	"go.uber.org/zap"
)

// An execution context for operators
type Context struct {
	Log        *zap.SugaredLogger
	MemoryMB   int          // memory.TotalMemory()/1024/1024
	SceneMemMB int          // MemoryMB*7/10, budget for scenes held concurrently
	MaxThreads int          `json:"maxThreads"`
	Store      *store.Store // optional result store
	RunID      uuid.UUID
}

func NewContext(log *zap.SugaredLogger) *Context {
	memoryMB := int(memory.TotalMemory() / 1024 / 1024)
	threads := runtime.GOMAXPROCS(0)
	if cpuid.CPU.LogicalCores > 0 && cpuid.CPU.LogicalCores < threads {
		threads = cpuid.CPU.LogicalCores
	}
	return &Context{
		Log:        log,
		MemoryMB:   memoryMB,
		SceneMemMB: memoryMB * 7 / 10,
		MaxThreads: threads,
		RunID:      uuid.New(),
	}
}

// Number of scenes of the given footprint to process concurrently, bounded by
// MaxThreads and the scene memory budget. Never less than one
func (c *Context) ThreadsFor(sceneMB int) int {
	threads := c.MaxThreads
	if sceneMB > 0 && c.SceneMemMB > 0 && c.SceneMemMB/sceneMB < threads {
		threads = c.SceneMemMB / sceneMB
	}
	if threads < 1 {
		threads = 1
	}
	return threads
}

// A promise for a scene. Returns a materialized scene, nil for a skipped scene, or an error
type Promise func() (s *Scene, err error)

// Materializes all promises with given concurrency limit. Skipped scenes are dropped
// from the output, errors of all failed promises are joined
func MaterializeAll(ins []Promise, maxThreads int, forget bool) (outs []*Scene, err error) {
	if len(ins) == 0 {
		return nil, nil
	}
	if maxThreads < 1 {
		maxThreads = 1
	}
	if !forget {
		outs = make([]*Scene, len(ins))
	}
	limiter := make(chan bool, maxThreads)
	errs := make(chan error, len(ins))
	for i, in := range ins {
		limiter <- true
		go func(i int, theIn Promise) {
			defer func() { <-limiter }()
			s, err := theIn() // materialize the promise
			if err != nil {
				errs <- err
				return
			}
			if !forget {
				outs[i] = s
			}
			errs <- nil
		}(i, in)
	}
	for i := 0; i < cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}
	var all []error
	for i := 0; i < len(ins); i++ { // collect errors
		if e := <-errs; e != nil {
			all = append(all, e)
		}
	}
	return RemoveNils(outs), errors.Join(all...)
}

// Remove nils from an array of scenes, editing the underlying array in place
func RemoveNils(scenes []*Scene) []*Scene {
	o := 0
	for i := 0; i < len(scenes); i++ {
		if scenes[i] != nil {
			scenes[o] = scenes[i]
			o++
		}
	}
	for i := o; i < len(scenes); i++ {
		scenes[i] = nil
	}
	return scenes[:o]
}

// A general scene processing operator: takes n promises as inputs,
// and produces m promises as output or an error
type Operator interface {
	GetType() string
	IsActive() bool
	MakePromises(ins []Promise, c *Context) (outs []Promise, err error)
}

// Base type for operators, including type information for JSON serializing/deserializing
type OpBase struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

func (op *OpBase) GetType() string { return op.Type }
func (op *OpBase) IsActive() bool  { return op.Active }

// Factory method for operators. For JSON serializing/deserializing
type OperatorFactory func() Operator

// Mapping from operator type strings to factory method for the type
var operatorFactories = map[string]OperatorFactory{}

// Returns the operator factory for a given type string
func GetOperatorFactory(t string) OperatorFactory {
	return operatorFactories[t]
}

// Registers the type string of an operator, identified via an exemplar generator
func SetOperatorFactory(f OperatorFactory) {
	t := f().GetType()
	if GetOperatorFactory(t) != nil {
		panic(fmt.Sprintf("error: re-registering operator key %s\n", t))
	}
	operatorFactories[t] = f
}

// A unary scene operator: given n promises as inputs,
// applies itself to each of them individually and returns n output promises or an error
type OperatorUnary interface {
	Operator
	Apply(s *Scene, c *Context) (sOut *Scene, err error)
}

// Abstract base type for unary operators. The concrete operator assigns its Apply method
// to the Apply field
type OpUnaryBase struct {
	OpBase
	Apply func(s *Scene, c *Context) (sOut *Scene, err error) `json:"-"`
}

func (op *OpUnaryBase) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) == 0 {
		return nil, fmt.Errorf("%s operator with %d inputs", op.Type, len(ins))
	}
	outs = make([]Promise, len(ins))
	for i, in := range ins {
		outs[i] = op.MakePromise(in, c)
	}
	return outs, nil
}

func (op *OpUnaryBase) MakePromise(in Promise, c *Context) (out Promise) {
	return func() (s *Scene, err error) {
		if s, err = in(); err != nil || s == nil { // materialize input promise, pass on skips
			return nil, err
		}
		if !op.Active {
			return s, nil
		}
		return op.Apply(s, c)
	}
}

// Applies a sequence of operators to a promise. Number of inputs, outputs as per the chained steps
type OpSequence struct {
	OpBase
	Steps    []Operator        `json:"-"`     // the actual steps
	StepsRaw []json.RawMessage `json:"steps"` // helper for unmarshaling
}

func init() { SetOperatorFactory(func() Operator { return NewOpSequenceDefault() }) } // register the operator for JSON decoding

func NewOpSequenceDefault() *OpSequence { return NewOpSequence() }

func NewOpSequence(steps ...Operator) *OpSequence {
	return &OpSequence{
		OpBase: OpBase{Type: "seq", Active: len(steps) > 0},
		Steps:  steps,
	}
}

// Unmarshals a sequence of polymorphic operators from JSON via the temporary StepsRaw
func (op *OpSequence) UnmarshalJSON(b []byte) error {
	type alias OpSequence
	if err := json.Unmarshal(b, (*alias)(op)); err != nil {
		return err
	}
	for _, raw := range op.StepsRaw {
		var step OpBase
		if err := json.Unmarshal(raw, &step); err != nil {
			return err
		}
		factory := GetOperatorFactory(step.Type)
		if factory == nil {
			return fmt.Errorf("unknown operator type '%s' in raw JSON message '%s'", step.Type, strings.TrimSpace(string(raw)))
		}
		i := factory()
		if err := json.Unmarshal(raw, i); err != nil {
			return err
		}
		op.Steps = append(op.Steps, i)
	}
	op.StepsRaw = nil
	return nil
}

// Appends one or more operators to the existing sequence
func (op *OpSequence) Append(steps ...Operator) {
	op.Steps = append(op.Steps, steps...)
}

// Marshals a sequence with polymorphic operators to JSON.
// Uses the actual op.Steps with label "steps", and ignores op.StepsRaw
func (op *OpSequence) MarshalJSON() (bs []byte, err error) {
	buf := bytes.Buffer{}
	buf.WriteString("{\"type\":")
	inner, err := json.Marshal(op.Type)
	if err != nil {
		return nil, err
	}
	buf.Write(inner)
	fmt.Fprintf(&buf, ", \"active\":%v, \"steps\":", op.Active)
	if op.Steps == nil {
		buf.WriteString("[]")
	} else {
		inner, err = json.Marshal(op.Steps)
		if err != nil {
			return nil, err
		}
		buf.Write(inner)
	}
	buf.WriteRune('}')
	return buf.Bytes(), nil
}

func (op *OpSequence) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	return op.applyRecursive(op.Steps, ins, c)
}

func (op *OpSequence) applyRecursive(steps []Operator, ins []Promise, c *Context) (outs []Promise, err error) {
	if len(steps) == 0 {
		return ins, nil
	}
	ins, err = steps[0].MakePromises(ins, c)
	if err != nil {
		return nil, err
	}
	return op.applyRecursive(steps[1:], ins, c)
}

// Applies a single operator to each input. Takes n inputs, produces n outputs
type OpForEach struct {
	OpBase
	Operation Operator `json:"operation"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpForEachDefault() }) } // register the operator for JSON decoding

func NewOpForEachDefault() *OpForEach { return NewOpForEach(nil) }

func NewOpForEach(operation Operator) *OpForEach {
	return &OpForEach{
		OpBase:    OpBase{Type: "forEach", Active: operation != nil},
		Operation: operation,
	}
}

// Unmarshals the polymorphic embedded operation from JSON
func (op *OpForEach) UnmarshalJSON(b []byte) error {
	var raw struct {
		OpBase
		Operation json.RawMessage `json:"operation"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	op.OpBase = raw.OpBase
	if len(raw.Operation) == 0 || string(raw.Operation) == "null" {
		return nil
	}
	var inner OpBase
	if err := json.Unmarshal(raw.Operation, &inner); err != nil {
		return err
	}
	factory := GetOperatorFactory(inner.Type)
	if factory == nil {
		return fmt.Errorf("unknown operator type '%s' in forEach operation", inner.Type)
	}
	op.Operation = factory()
	return json.Unmarshal(raw.Operation, op.Operation)
}

func (op *OpForEach) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) == 0 {
		return ins, nil
	}
	if op.Operation == nil {
		return nil, fmt.Errorf("%s operator has no operation to apply", op.Type)
	}
	for _, in := range ins {
		out, err := op.Operation.MakePromises([]Promise{in}, c)
		if err != nil {
			return nil, err
		}
		if len(out) != 1 {
			return nil, fmt.Errorf("%s operator needs exactly one promise from embedded operation", op.Type)
		}
		outs = append(outs, out[0])
	}
	return outs, nil
}

// Builds the promises of the given operator and materializes them, discarding the scenes.
// Concurrency follows the context, bounded by the memory footprint of a scene of sceneMB
func Run(op Operator, c *Context, sceneMB int) error {
	promises, err := op.MakePromises(nil, c)
	if err != nil {
		return err
	}
	_, err = MaterializeAll(promises, c.ThreadsFor(sceneMB), true)
	return err
}
