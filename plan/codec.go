package plan

import (
	"encoding/json"
	"fmt"
)

// DecodeOp parses one wire operation of the form {"type": "...", ...args}.
// Unknown types and malformed arguments yield a ValidationError.
func DecodeOp(raw json.RawMessage) (Op, error) {
	var probe struct {
		Type OpKind `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &ValidationError{Field: "type", Msg: "malformed operation: " + err.Error()}
	}

	var op Op
	switch probe.Type {
	case KindCreateShape:
		op = &CreateShape{}
	case KindMove:
		op = &Move{}
	case KindResize:
		op = &Resize{}
	case KindRotate:
		op = &Rotate{}
	case KindUpdateStyle:
		op = &UpdateStyle{}
	case KindArrange:
		op = &Arrange{}
	case KindCreateGrid:
		op = &CreateGrid{}
	case KindBringToFront:
		op = &BringToFront{}
	case KindSendToBack:
		op = &SendToBack{}
	case KindDelete:
		op = &Delete{}
	case KindDeleteMultiple:
		op = &DeleteMultiple{}
	case KindQueryState:
		op = &QueryState{}
	default:
		return nil, &ValidationError{Field: "type", Msg: fmt.Sprintf("unknown operation type %q", probe.Type)}
	}

	if err := json.Unmarshal(raw, op); err != nil {
		return nil, &ValidationError{Field: string(probe.Type), Msg: "malformed arguments: " + err.Error()}
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}
	return op, nil
}

// EncodeOp serializes an operation back to its wire form, tagging it with
// the type discriminator.
func EncodeOp(op Op) (json.RawMessage, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", op.Kind(), err)
	}
	tagged := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &tagged); err != nil {
		return nil, fmt.Errorf("encode %s: %w", op.Kind(), err)
	}
	t, _ := json.Marshal(op.Kind())
	tagged["type"] = t
	return json.Marshal(tagged)
}

type planWire struct {
	Operations    []json.RawMessage `json:"operations"`
	Rationale     string            `json:"rationale,omitempty"`
	Clarification *Clarification    `json:"needsClarification,omitempty"`
}

// UnmarshalJSON decodes the reasoning-service wire form and validates the
// result, including the clarification/operations exclusivity invariant.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var w planWire
	if err := json.Unmarshal(data, &w); err != nil {
		return &ValidationError{Field: "plan", Msg: "malformed plan: " + err.Error()}
	}
	out := Plan{Rationale: w.Rationale, Clarification: w.Clarification}
	for i, raw := range w.Operations {
		op, err := DecodeOp(raw)
		if err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		out.Operations = append(out.Operations, op)
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*p = out
	return nil
}

// MarshalJSON emits the same wire form the reasoning service produces, so
// plans can be persisted in history entries and replayed.
func (p Plan) MarshalJSON() ([]byte, error) {
	w := planWire{Rationale: p.Rationale, Clarification: p.Clarification}
	for _, op := range p.Operations {
		raw, err := EncodeOp(op)
		if err != nil {
			return nil, err
		}
		w.Operations = append(w.Operations, raw)
	}
	if w.Operations == nil {
		w.Operations = []json.RawMessage{}
	}
	return json.Marshal(w)
}
