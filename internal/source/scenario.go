package source

import (
	"context"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/vrender/pkg/protocol"
)

// Scenario is a human-written mutation stream:
//
//	name: counter
//	steps:
//	  - mutations:
//	      - {op: PushRoot, id: 0}
//	      - {op: CreateElement, tag: button, id: 1}
//	      - {op: SetAttribute, name: disabled, value: false, id: 1}
//	      - {op: CreateTextNode, text: "0", id: 2}
//	      - {op: AppendChildren, n: 1}
//	      - {op: AppendChildren, n: 1}
//	      - {op: NewEventListener, name: click, id: 1}
//	    fire:
//	      - {type: click, target: 2, fields: {clientX: 4, clientY: 8}}
//
// Steps without a seq are numbered from 1.
type Scenario struct {
	Name  string         `yaml:"name"`
	Steps []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one batch with the events fired after it.
type ScenarioStep struct {
	Seq       uint64        `yaml:"seq,omitempty"`
	Mutations []ScenarioOp  `yaml:"mutations"`
	Fire      []NativeEvent `yaml:"fire,omitempty"`
}

// ScenarioOp is a mutation in readable form. Which fields apply depends
// on Op, as in the binary encoding.
type ScenarioOp struct {
	Op        string          `yaml:"op"`
	ID        protocol.NodeID `yaml:"id,omitempty"`
	Tag       string          `yaml:"tag,omitempty"`
	Namespace string          `yaml:"ns,omitempty"`
	Text      string          `yaml:"text,omitempty"`
	Name      string          `yaml:"name,omitempty"`
	Value     any             `yaml:"value,omitempty"`
	N         int             `yaml:"n,omitempty"`
}

var opsByName = func() map[string]protocol.Op {
	m := make(map[string]protocol.Op)
	for op := protocol.OpCreateElement; op <= protocol.OpPopRoot; op++ {
		m[op.String()] = op
	}
	return m
}()

// ReadScenario parses and checks a scenario.
func ReadScenario(r io.Reader) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	if _, err := sc.Batches(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Batches converts the steps to protocol batches.
func (sc *Scenario) Batches() ([]*protocol.Batch, error) {
	out := make([]*protocol.Batch, len(sc.Steps))
	for i, st := range sc.Steps {
		seq := st.Seq
		if seq == 0 {
			seq = uint64(i + 1)
		}
		b := &protocol.Batch{Seq: seq, Mutations: make([]protocol.Mutation, len(st.Mutations))}
		for j := range st.Mutations {
			m, err := st.Mutations[j].Mutation()
			if err != nil {
				return nil, fmt.Errorf("step %d mutation %d: %w", i, j, err)
			}
			b.Mutations[j] = m
		}
		out[i] = b
	}
	return out, nil
}

// Mutation converts the op to its protocol form.
func (o ScenarioOp) Mutation() (protocol.Mutation, error) {
	op, ok := opsByName[o.Op]
	if !ok {
		return protocol.Mutation{}, fmt.Errorf("%w: %q", protocol.ErrUnknownOp, o.Op)
	}

	switch op {
	case protocol.OpCreateElement:
		if o.Namespace != "" {
			return protocol.NewCreateElementNs(o.Tag, o.ID, o.Namespace), nil
		}
		return protocol.NewCreateElement(o.Tag, o.ID), nil
	case protocol.OpCreateElementNs:
		return protocol.NewCreateElementNs(o.Tag, o.ID, o.Namespace), nil
	case protocol.OpCreateTextNode:
		return protocol.NewCreateTextNode(o.Text, o.ID), nil
	case protocol.OpCreatePlaceholder:
		return protocol.NewCreatePlaceholder(o.ID), nil
	case protocol.OpAppendChildren:
		return protocol.NewAppendChildren(o.N), nil
	case protocol.OpInsertBefore:
		return protocol.NewInsertBefore(o.ID, o.N), nil
	case protocol.OpInsertAfter:
		return protocol.NewInsertAfter(o.ID, o.N), nil
	case protocol.OpRemove:
		return protocol.NewRemove(o.ID), nil
	case protocol.OpReplaceWith:
		return protocol.NewReplaceWith(o.ID, o.N), nil
	case protocol.OpSetAttribute:
		v, err := attrValue(o.Value)
		if err != nil {
			return protocol.Mutation{}, err
		}
		return protocol.NewSetAttribute(o.Name, v, o.ID, o.Namespace), nil
	case protocol.OpRemoveAttribute:
		return protocol.NewRemoveAttribute(o.Name, o.ID, o.Namespace), nil
	case protocol.OpSetText:
		return protocol.NewSetText(o.Text, o.ID), nil
	case protocol.OpNewEventListener:
		return protocol.NewEventListener(o.Name, o.ID), nil
	case protocol.OpRemoveEventListener:
		return protocol.NewRemoveEventListener(o.Name, o.ID), nil
	case protocol.OpPushRoot:
		return protocol.NewPushRoot(o.ID), nil
	default:
		return protocol.NewPopRoot(), nil
	}
}

func attrValue(v any) (protocol.AttrValue, error) {
	switch v := v.(type) {
	case nil:
		return protocol.None(), nil
	case string:
		return protocol.Text(v), nil
	case bool:
		return protocol.Bool(v), nil
	case int:
		return protocol.Number(float64(v)), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return protocol.AttrValue{}, fmt.Errorf("%w: %v", protocol.ErrInvalidValueKind, v)
		}
		return protocol.Number(v), nil
	}
	return protocol.AttrValue{}, fmt.Errorf("%w: %T", protocol.ErrInvalidValueKind, v)
}

// Source returns a Source over the scenario's steps.
func (sc *Scenario) Source() Source {
	batches, _ := sc.Batches()
	steps := make([]*Step, len(batches))
	for i, b := range batches {
		steps[i] = &Step{Batch: b, Fire: sc.Steps[i].Fire}
	}
	return &sliceSource{steps: steps}
}

type sliceSource struct {
	steps []*Step
	next  int
}

func (s *sliceSource) Next(ctx context.Context) (*Step, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.steps) {
		return nil, io.EOF
	}
	st := s.steps[s.next]
	s.next++
	return st, nil
}

func (s *sliceSource) Close() error { return nil }
