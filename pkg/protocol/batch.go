package protocol

// Batch is an ordered group of mutations that must be applied atomically.
type Batch struct {
	Seq       uint64
	Mutations []Mutation
}

// EncodeBatch encodes a batch to bytes.
func EncodeBatch(b *Batch) []byte {
	e := NewEncoderWithCap(16 + 12*len(b.Mutations))
	EncodeBatchTo(e, b)
	return e.Bytes()
}

// EncodeBatchTo encodes a batch using the provided encoder.
func EncodeBatchTo(e *Encoder, b *Batch) {
	e.WriteUvarint(b.Seq)
	e.WriteUvarint(uint64(len(b.Mutations)))
	for i := range b.Mutations {
		encodeMutation(e, &b.Mutations[i])
	}
}

func encodeMutation(e *Encoder, m *Mutation) {
	e.WriteByte(byte(m.Op))

	switch m.Op {
	case OpCreateElement:
		e.WriteString(m.Tag)
		e.WriteNodeID(m.ID)

	case OpCreateElementNs:
		e.WriteString(m.Tag)
		e.WriteNodeID(m.ID)
		e.WriteString(m.Namespace)

	case OpCreateTextNode, OpSetText:
		e.WriteString(m.Text)
		e.WriteNodeID(m.ID)

	case OpCreatePlaceholder, OpRemove, OpPushRoot:
		e.WriteNodeID(m.ID)

	case OpAppendChildren:
		e.WriteUvarint(uint64(m.N))

	case OpInsertBefore, OpInsertAfter, OpReplaceWith:
		e.WriteNodeID(m.ID)
		e.WriteUvarint(uint64(m.N))

	case OpSetAttribute:
		e.WriteString(m.Name)
		encodeAttrValue(e, m.Value)
		e.WriteNodeID(m.ID)
		e.WriteOptString(m.Namespace)

	case OpRemoveAttribute:
		e.WriteString(m.Name)
		e.WriteNodeID(m.ID)
		e.WriteOptString(m.Namespace)

	case OpNewEventListener, OpRemoveEventListener:
		e.WriteString(m.Name)
		e.WriteNodeID(m.ID)

	case OpPopRoot:
		// No operands
	}
}

func encodeAttrValue(e *Encoder, v AttrValue) {
	e.WriteByte(byte(v.Kind))
	switch v.Kind {
	case ValueText:
		e.WriteString(v.Text)
	case ValueBool:
		e.WriteBool(v.Bool)
	case ValueNumber:
		e.WriteFloat64(v.Number)
	}
}

// DecodeBatch decodes a batch from bytes.
func DecodeBatch(data []byte) (*Batch, error) {
	return DecodeBatchFrom(NewDecoder(data))
}

// DecodeBatchFrom decodes a batch from a decoder.
func DecodeBatchFrom(d *Decoder) (*Batch, error) {
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}

	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}

	mutations := make([]Mutation, count)
	for i := range mutations {
		if err := decodeMutation(d, &mutations[i]); err != nil {
			return nil, err
		}
	}

	return &Batch{Seq: seq, Mutations: mutations}, nil
}

func decodeMutation(d *Decoder, m *Mutation) error {
	opByte, err := d.ReadByte()
	if err != nil {
		return err
	}
	m.Op = Op(opByte)

	switch m.Op {
	case OpCreateElement:
		if m.Tag, err = d.ReadName(); err != nil {
			return err
		}
		m.ID, err = d.ReadNodeID()

	case OpCreateElementNs:
		if m.Tag, err = d.ReadName(); err != nil {
			return err
		}
		if m.ID, err = d.ReadNodeID(); err != nil {
			return err
		}
		m.Namespace, err = d.ReadName()

	case OpCreateTextNode, OpSetText:
		if m.Text, err = d.ReadString(); err != nil {
			return err
		}
		m.ID, err = d.ReadNodeID()

	case OpCreatePlaceholder, OpRemove, OpPushRoot:
		m.ID, err = d.ReadNodeID()

	case OpAppendChildren:
		m.N, err = d.ReadCount()

	case OpInsertBefore, OpInsertAfter, OpReplaceWith:
		if m.ID, err = d.ReadNodeID(); err != nil {
			return err
		}
		m.N, err = d.ReadCount()

	case OpSetAttribute:
		if m.Name, err = d.ReadName(); err != nil {
			return err
		}
		if m.Value, err = decodeAttrValue(d); err != nil {
			return err
		}
		if m.ID, err = d.ReadNodeID(); err != nil {
			return err
		}
		m.Namespace, err = d.ReadOptName()

	case OpRemoveAttribute:
		if m.Name, err = d.ReadName(); err != nil {
			return err
		}
		if m.ID, err = d.ReadNodeID(); err != nil {
			return err
		}
		m.Namespace, err = d.ReadOptName()

	case OpNewEventListener, OpRemoveEventListener:
		if m.Name, err = d.ReadName(); err != nil {
			return err
		}
		m.ID, err = d.ReadNodeID()

	case OpPopRoot:
		// No operands

	default:
		return ErrUnknownOp
	}

	return err
}

func decodeAttrValue(d *Decoder) (AttrValue, error) {
	kind, err := d.ReadByte()
	if err != nil {
		return AttrValue{}, err
	}
	v := AttrValue{Kind: ValueKind(kind)}
	switch v.Kind {
	case ValueText:
		v.Text, err = d.ReadString()
	case ValueBool:
		v.Bool, err = d.ReadBool()
	case ValueNumber:
		v.Number, err = d.ReadFloat64()
	case ValueNone:
	default:
		return AttrValue{}, ErrInvalidValueKind
	}
	return v, err
}
