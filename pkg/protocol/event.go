package protocol

import (
	"errors"
)

// PayloadKind identifies the shape of a synthetic event payload.
type PayloadKind uint8

// Payload kinds.
const (
	PayloadNone        PayloadKind = 0x00
	PayloadMouse       PayloadKind = 0x01
	PayloadPointer     PayloadKind = 0x02
	PayloadWheel       PayloadKind = 0x03
	PayloadKeyboard    PayloadKind = 0x04
	PayloadForm        PayloadKind = 0x05
	PayloadSubmit      PayloadKind = 0x06
	PayloadClipboard   PayloadKind = 0x07
	PayloadComposition PayloadKind = 0x08
	PayloadTouch       PayloadKind = 0x09
	PayloadScroll      PayloadKind = 0x0A
	PayloadAnimation   PayloadKind = 0x0B
	PayloadTransition  PayloadKind = 0x0C
	PayloadMedia       PayloadKind = 0x0D
	PayloadToggle      PayloadKind = 0x0E
)

// String returns the name of the payload kind.
func (k PayloadKind) String() string {
	switch k {
	case PayloadNone:
		return "None"
	case PayloadMouse:
		return "Mouse"
	case PayloadPointer:
		return "Pointer"
	case PayloadWheel:
		return "Wheel"
	case PayloadKeyboard:
		return "Keyboard"
	case PayloadForm:
		return "Form"
	case PayloadSubmit:
		return "Submit"
	case PayloadClipboard:
		return "Clipboard"
	case PayloadComposition:
		return "Composition"
	case PayloadTouch:
		return "Touch"
	case PayloadScroll:
		return "Scroll"
	case PayloadAnimation:
		return "Animation"
	case PayloadTransition:
		return "Transition"
	case PayloadMedia:
		return "Media"
	case PayloadToggle:
		return "Toggle"
	default:
		return "Unknown"
	}
}

// Modifiers is a bitmask of keyboard modifier keys.
type Modifiers uint8

const (
	ModCtrl  Modifiers = 0x01
	ModShift Modifiers = 0x02
	ModAlt   Modifiers = 0x04
	ModMeta  Modifiers = 0x08
)

// Has reports whether mod is set.
func (m Modifiers) Has(mod Modifiers) bool {
	return m&mod != 0
}

// Payload is the category-specific part of a synthetic event.
type Payload interface {
	Kind() PayloadKind
}

// MouseData carries pointer position and button state.
type MouseData struct {
	ClientX   int
	ClientY   int
	PageX     int
	PageY     int
	ScreenX   int
	ScreenY   int
	OffsetX   int
	OffsetY   int
	Button    uint8
	Buttons   uint8
	Modifiers Modifiers
}

// PointerData extends MouseData with pointer-specific fields.
type PointerData struct {
	MouseData
	PointerID   int
	Width       float64
	Height      float64
	Pressure    float64
	PointerType string
	IsPrimary   bool
}

// WheelData carries scroll-wheel deltas.
type WheelData struct {
	DeltaX    float64
	DeltaY    float64
	DeltaZ    float64
	DeltaMode uint8 // 0=pixels, 1=lines, 2=pages
	ClientX   int
	ClientY   int
	Modifiers Modifiers
}

// KeyboardData carries key information.
type KeyboardData struct {
	Key         string
	Code        string
	Location    uint8 // 0=standard, 1=left, 2=right, 3=numpad
	Repeat      bool
	IsComposing bool
	Modifiers   Modifiers
}

// FormData is the live state of a form control snapshotted when the native
// event fired.
type FormData struct {
	Value   string
	Checked bool
}

// Field is one named value of a submitted form.
type Field struct {
	Name  string
	Value string
}

// SubmitData carries the fields of a submitted form in document order.
type SubmitData struct {
	Fields []Field
}

// ClipboardData carries the text of a clipboard event.
type ClipboardData struct {
	Text string
}

// CompositionData carries IME composition text.
type CompositionData struct {
	Data string
}

// TouchPoint is a single touch contact.
type TouchPoint struct {
	ID      int
	ClientX int
	ClientY int
	PageX   int
	PageY   int
}

// TouchData carries the active and changed touch points.
type TouchData struct {
	Touches        []TouchPoint
	ChangedTouches []TouchPoint
	Modifiers      Modifiers
}

// ScrollData carries the target's scroll offsets.
type ScrollData struct {
	ScrollTop  int
	ScrollLeft int
}

// AnimationData carries CSS animation details.
type AnimationData struct {
	AnimationName string
	ElapsedTime   float64
	PseudoElement string
}

// TransitionData carries CSS transition details.
type TransitionData struct {
	PropertyName  string
	ElapsedTime   float64
	PseudoElement string
}

// MediaData carries media element playback state.
type MediaData struct {
	CurrentTime float64
	Duration    float64
	Paused      bool
}

// ToggleData carries the new state of a details/popover toggle.
type ToggleData struct {
	NewState string
}

func (*MouseData) Kind() PayloadKind       { return PayloadMouse }
func (*PointerData) Kind() PayloadKind     { return PayloadPointer }
func (*WheelData) Kind() PayloadKind       { return PayloadWheel }
func (*KeyboardData) Kind() PayloadKind    { return PayloadKeyboard }
func (*FormData) Kind() PayloadKind        { return PayloadForm }
func (*SubmitData) Kind() PayloadKind      { return PayloadSubmit }
func (*ClipboardData) Kind() PayloadKind   { return PayloadClipboard }
func (*CompositionData) Kind() PayloadKind { return PayloadComposition }
func (*TouchData) Kind() PayloadKind       { return PayloadTouch }
func (*ScrollData) Kind() PayloadKind      { return PayloadScroll }
func (*AnimationData) Kind() PayloadKind   { return PayloadAnimation }
func (*TransitionData) Kind() PayloadKind  { return PayloadTransition }
func (*MediaData) Kind() PayloadKind       { return PayloadMedia }
func (*ToggleData) Kind() PayloadKind      { return PayloadToggle }

// Event is a synthetic event addressed to the node whose listener matched.
type Event struct {
	Seq     uint64
	Name    string // Event category, e.g. "click"
	Target  NodeID
	Payload Payload // nil for events without data (focus, blur, ...)
}

// Event decoding errors.
var (
	ErrInvalidPayload = errors.New("protocol: invalid event payload")
)

// PayloadKindOf returns the kind of p, or PayloadNone for nil.
func PayloadKindOf(p Payload) PayloadKind {
	if p == nil {
		return PayloadNone
	}
	return p.Kind()
}

// EncodeEvent encodes an event to bytes.
func EncodeEvent(ev *Event) []byte {
	e := NewEncoder()
	EncodeEventTo(e, ev)
	return e.Bytes()
}

// EncodeEvents encodes a group of events as one frame payload.
func EncodeEvents(events []Event) []byte {
	e := NewEncoderWithCap(32 * len(events))
	e.WriteUvarint(uint64(len(events)))
	for i := range events {
		EncodeEventTo(e, &events[i])
	}
	return e.Bytes()
}

// EncodeEventTo encodes an event using the provided encoder.
func EncodeEventTo(e *Encoder, ev *Event) {
	e.WriteUvarint(ev.Seq)
	e.WriteString(ev.Name)
	e.WriteNodeID(ev.Target)

	kind := PayloadKindOf(ev.Payload)
	e.WriteByte(byte(kind))

	switch p := ev.Payload.(type) {
	case *MouseData:
		encodeMouse(e, p)

	case *PointerData:
		encodeMouse(e, &p.MouseData)
		e.WriteSvarint(int64(p.PointerID))
		e.WriteFloat64(p.Width)
		e.WriteFloat64(p.Height)
		e.WriteFloat64(p.Pressure)
		e.WriteString(p.PointerType)
		e.WriteBool(p.IsPrimary)

	case *WheelData:
		e.WriteFloat64(p.DeltaX)
		e.WriteFloat64(p.DeltaY)
		e.WriteFloat64(p.DeltaZ)
		e.WriteByte(p.DeltaMode)
		e.WriteSvarint(int64(p.ClientX))
		e.WriteSvarint(int64(p.ClientY))
		e.WriteByte(byte(p.Modifiers))

	case *KeyboardData:
		e.WriteString(p.Key)
		e.WriteString(p.Code)
		e.WriteByte(p.Location)
		e.WriteBool(p.Repeat)
		e.WriteBool(p.IsComposing)
		e.WriteByte(byte(p.Modifiers))

	case *FormData:
		e.WriteString(p.Value)
		e.WriteBool(p.Checked)

	case *SubmitData:
		e.WriteUvarint(uint64(len(p.Fields)))
		for _, f := range p.Fields {
			e.WriteString(f.Name)
			e.WriteString(f.Value)
		}

	case *ClipboardData:
		e.WriteString(p.Text)

	case *CompositionData:
		e.WriteString(p.Data)

	case *TouchData:
		encodeTouches(e, p.Touches)
		encodeTouches(e, p.ChangedTouches)
		e.WriteByte(byte(p.Modifiers))

	case *ScrollData:
		e.WriteSvarint(int64(p.ScrollTop))
		e.WriteSvarint(int64(p.ScrollLeft))

	case *AnimationData:
		e.WriteString(p.AnimationName)
		e.WriteFloat64(p.ElapsedTime)
		e.WriteString(p.PseudoElement)

	case *TransitionData:
		e.WriteString(p.PropertyName)
		e.WriteFloat64(p.ElapsedTime)
		e.WriteString(p.PseudoElement)

	case *MediaData:
		e.WriteFloat64(p.CurrentTime)
		e.WriteFloat64(p.Duration)
		e.WriteBool(p.Paused)

	case *ToggleData:
		e.WriteString(p.NewState)
	}
}

func encodeMouse(e *Encoder, p *MouseData) {
	e.WriteSvarint(int64(p.ClientX))
	e.WriteSvarint(int64(p.ClientY))
	e.WriteSvarint(int64(p.PageX))
	e.WriteSvarint(int64(p.PageY))
	e.WriteSvarint(int64(p.ScreenX))
	e.WriteSvarint(int64(p.ScreenY))
	e.WriteSvarint(int64(p.OffsetX))
	e.WriteSvarint(int64(p.OffsetY))
	e.WriteByte(p.Button)
	e.WriteByte(p.Buttons)
	e.WriteByte(byte(p.Modifiers))
}

func encodeTouches(e *Encoder, points []TouchPoint) {
	e.WriteUvarint(uint64(len(points)))
	for _, t := range points {
		e.WriteSvarint(int64(t.ID))
		e.WriteSvarint(int64(t.ClientX))
		e.WriteSvarint(int64(t.ClientY))
		e.WriteSvarint(int64(t.PageX))
		e.WriteSvarint(int64(t.PageY))
	}
}

// DecodeEvent decodes a single event from bytes.
func DecodeEvent(data []byte) (*Event, error) {
	return DecodeEventFrom(NewDecoder(data))
}

// DecodeEvents decodes a payload written by EncodeEvents.
func DecodeEvents(data []byte) ([]Event, error) {
	d := NewDecoder(data)
	n, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		ev, err := DecodeEventFrom(d)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, nil
}

// DecodeEventFrom decodes an event from a decoder.
func DecodeEventFrom(d *Decoder) (*Event, error) {
	ev := &Event{}
	var err error

	if ev.Seq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if ev.Name, err = d.ReadName(); err != nil {
		return nil, err
	}
	if ev.Target, err = d.ReadNodeID(); err != nil {
		return nil, err
	}
	kind, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	if ev.Payload, err = decodePayload(d, PayloadKind(kind)); err != nil {
		return nil, err
	}
	return ev, nil
}

// fieldReader accumulates the first error so payload decoders read
// straight through and check once.
type fieldReader struct {
	d   *Decoder
	err error
}

func (r *fieldReader) svarint() int {
	if r.err != nil {
		return 0
	}
	v, err := r.d.ReadSvarint()
	r.err = err
	return int(v)
}

func (r *fieldReader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.ReadByte()
	r.err = err
	return v
}

func (r *fieldReader) flag() bool {
	if r.err != nil {
		return false
	}
	v, err := r.d.ReadBool()
	r.err = err
	return v
}

func (r *fieldReader) f64() float64 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.ReadFloat64()
	r.err = err
	return v
}

func (r *fieldReader) str() string {
	if r.err != nil {
		return ""
	}
	v, err := r.d.ReadString()
	r.err = err
	return v
}

func (r *fieldReader) count() int {
	if r.err != nil {
		return 0
	}
	v, err := r.d.ReadCollectionCount()
	r.err = err
	return v
}

func (r *fieldReader) mouse() MouseData {
	return MouseData{
		ClientX:   r.svarint(),
		ClientY:   r.svarint(),
		PageX:     r.svarint(),
		PageY:     r.svarint(),
		ScreenX:   r.svarint(),
		ScreenY:   r.svarint(),
		OffsetX:   r.svarint(),
		OffsetY:   r.svarint(),
		Button:    r.u8(),
		Buttons:   r.u8(),
		Modifiers: Modifiers(r.u8()),
	}
}

func (r *fieldReader) touches() []TouchPoint {
	n := r.count()
	if n == 0 {
		return nil
	}
	points := make([]TouchPoint, n)
	for i := range points {
		points[i] = TouchPoint{
			ID:      r.svarint(),
			ClientX: r.svarint(),
			ClientY: r.svarint(),
			PageX:   r.svarint(),
			PageY:   r.svarint(),
		}
	}
	return points
}

func decodePayload(d *Decoder, kind PayloadKind) (Payload, error) {
	r := &fieldReader{d: d}
	var p Payload

	switch kind {
	case PayloadNone:
		return nil, nil

	case PayloadMouse:
		m := r.mouse()
		p = &m

	case PayloadPointer:
		p = &PointerData{
			MouseData:   r.mouse(),
			PointerID:   r.svarint(),
			Width:       r.f64(),
			Height:      r.f64(),
			Pressure:    r.f64(),
			PointerType: r.str(),
			IsPrimary:   r.flag(),
		}

	case PayloadWheel:
		p = &WheelData{
			DeltaX:    r.f64(),
			DeltaY:    r.f64(),
			DeltaZ:    r.f64(),
			DeltaMode: r.u8(),
			ClientX:   r.svarint(),
			ClientY:   r.svarint(),
			Modifiers: Modifiers(r.u8()),
		}

	case PayloadKeyboard:
		p = &KeyboardData{
			Key:         r.str(),
			Code:        r.str(),
			Location:    r.u8(),
			Repeat:      r.flag(),
			IsComposing: r.flag(),
			Modifiers:   Modifiers(r.u8()),
		}

	case PayloadForm:
		p = &FormData{Value: r.str(), Checked: r.flag()}

	case PayloadSubmit:
		n := r.count()
		data := &SubmitData{Fields: make([]Field, 0, n)}
		for i := 0; i < n && r.err == nil; i++ {
			data.Fields = append(data.Fields, Field{Name: r.str(), Value: r.str()})
		}
		p = data

	case PayloadClipboard:
		p = &ClipboardData{Text: r.str()}

	case PayloadComposition:
		p = &CompositionData{Data: r.str()}

	case PayloadTouch:
		p = &TouchData{
			Touches:        r.touches(),
			ChangedTouches: r.touches(),
			Modifiers:      Modifiers(r.u8()),
		}

	case PayloadScroll:
		p = &ScrollData{ScrollTop: r.svarint(), ScrollLeft: r.svarint()}

	case PayloadAnimation:
		p = &AnimationData{AnimationName: r.str(), ElapsedTime: r.f64(), PseudoElement: r.str()}

	case PayloadTransition:
		p = &TransitionData{PropertyName: r.str(), ElapsedTime: r.f64(), PseudoElement: r.str()}

	case PayloadMedia:
		p = &MediaData{CurrentTime: r.f64(), Duration: r.f64(), Paused: r.flag()}

	case PayloadToggle:
		p = &ToggleData{NewState: r.str()}

	default:
		return nil, ErrInvalidPayload
	}

	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}
