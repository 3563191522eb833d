package protocol

import (
	"errors"
	"io"
	"reflect"
	"testing"
)

func TestBatchEncodeDecode(t *testing.T) {
	batch := &Batch{
		Seq: 42,
		Mutations: []Mutation{
			NewPushRoot(0),
			NewCreateElement("div", 1),
			NewCreateElementNs("circle", 2, "http://www.w3.org/2000/svg"),
			NewCreateTextNode("hello", 3),
			NewCreatePlaceholder(4),
			NewAppendChildren(3),
			NewInsertBefore(7, 2),
			NewInsertAfter(8, 1),
			NewRemove(9),
			NewReplaceWith(10, 2),
			NewSetAttribute("class", Text("card active"), 1, ""),
			NewSetAttribute("disabled", Bool(true), 1, ""),
			NewSetAttribute("tabindex", Number(-1), 1, ""),
			NewSetAttribute("href", Text("#icon"), 2, "http://www.w3.org/1999/xlink"),
			NewSetAttribute("hidden", None(), 1, ""),
			NewRemoveAttribute("class", 1, ""),
			NewRemoveAttribute("href", 2, "http://www.w3.org/1999/xlink"),
			NewSetText("bye", 3),
			NewEventListener("click", 1),
			NewRemoveEventListener("click", 1),
			NewPopRoot(),
		},
	}

	decoded, err := DecodeBatch(EncodeBatch(batch))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if decoded.Seq != batch.Seq {
		t.Errorf("Seq = %d, want %d", decoded.Seq, batch.Seq)
	}
	if !reflect.DeepEqual(decoded.Mutations, batch.Mutations) {
		for i := range batch.Mutations {
			if i < len(decoded.Mutations) && !reflect.DeepEqual(decoded.Mutations[i], batch.Mutations[i]) {
				t.Errorf("mutation %d (%s): got %+v, want %+v", i, batch.Mutations[i].Op, decoded.Mutations[i], batch.Mutations[i])
			}
		}
		t.Fatalf("decoded %d mutations, want %d", len(decoded.Mutations), len(batch.Mutations))
	}
}

func TestDecodeBatchUnknownOp(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(1)
	e.WriteUvarint(1)
	e.WriteByte(0x7F)

	_, err := DecodeBatch(e.Bytes())
	if !errors.Is(err, ErrUnknownOp) {
		t.Fatalf("err = %v, want ErrUnknownOp", err)
	}
}

func TestDecodeBatchTruncated(t *testing.T) {
	data := EncodeBatch(&Batch{
		Seq:       3,
		Mutations: []Mutation{NewCreateTextNode("some text", 5), NewAppendChildren(1)},
	})

	for cut := 1; cut < len(data); cut++ {
		if _, err := DecodeBatch(data[:cut]); err == nil {
			t.Fatalf("DecodeBatch(data[:%d]) succeeded, want error", cut)
		}
	}
}

func TestDecodeBatchCountExceedsInput(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(1)
	e.WriteUvarint(50_000)

	_, err := DecodeBatch(e.Bytes())
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestDecodeBatchInvalidValueKind(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(1)
	e.WriteUvarint(1)
	e.WriteByte(byte(OpSetAttribute))
	e.WriteString("id")
	e.WriteByte(0x09)

	_, err := DecodeBatch(e.Bytes())
	if !errors.Is(err, ErrInvalidValueKind) {
		t.Fatalf("err = %v, want ErrInvalidValueKind", err)
	}
}

type countingPool struct {
	seen  map[string]string
	calls int
}

func (p *countingPool) Canonical(b []byte) string {
	p.calls++
	if s, ok := p.seen[string(b)]; ok {
		return s
	}
	s := string(b)
	p.seen[s] = s
	return s
}

func TestDecoderPoolResolvesNames(t *testing.T) {
	data := EncodeBatch(&Batch{Mutations: []Mutation{
		NewCreateElement("div", 1),
		NewSetAttribute("class", Text("x"), 1, ""),
		NewSetText("not a name", 2),
		NewEventListener("click", 1),
	}})

	pool := &countingPool{seen: map[string]string{}}
	b, err := DecodeBatchFrom(NewDecoder(data).WithPool(pool))
	if err != nil {
		t.Fatalf("DecodeBatchFrom: %v", err)
	}
	// tag, attribute name, event name; text content bypasses the pool
	if pool.calls != 3 {
		t.Errorf("pool calls = %d, want 3", pool.calls)
	}
	if b.Mutations[0].Tag != "div" || b.Mutations[3].Name != "click" {
		t.Errorf("unexpected names: %+v", b.Mutations)
	}
}

func TestOpString(t *testing.T) {
	if OpReplaceWith.String() != "ReplaceWith" {
		t.Errorf("OpReplaceWith.String() = %q", OpReplaceWith.String())
	}
	if Op(0xEE).String() != "Unknown" {
		t.Errorf("Op(0xEE).String() = %q", Op(0xEE).String())
	}
	if !OpCreatePlaceholder.Creates() || OpPushRoot.Creates() {
		t.Error("Creates() misclassifies ops")
	}
}

func TestAttrValueString(t *testing.T) {
	tests := []struct {
		v    AttrValue
		want string
	}{
		{Text("a b"), "a b"},
		{Bool(true), "true"},
		{Number(1.5), "1.5"},
		{Number(-3), "-3"},
		{None(), ""},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.v, got, tt.want)
		}
	}
}
