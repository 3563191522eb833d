package protocol

import (
	"reflect"
	"testing"
)

func TestEventEncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		event Event
	}{
		{
			name:  "focus_no_payload",
			event: Event{Seq: 1, Name: "focus", Target: 3},
		},
		{
			name: "click",
			event: Event{Seq: 2, Name: "click", Target: 17, Payload: &MouseData{
				ClientX: 10, ClientY: -4, PageX: 10, PageY: 900, Button: 0, Buttons: 1,
				Modifiers: ModCtrl | ModShift,
			}},
		},
		{
			name: "pointer",
			event: Event{Seq: 3, Name: "pointerdown", Target: 2, Payload: &PointerData{
				MouseData: MouseData{ClientX: 1, ClientY: 2},
				PointerID: 7, Width: 1, Height: 1, Pressure: 0.5, PointerType: "pen", IsPrimary: true,
			}},
		},
		{
			name: "keydown",
			event: Event{Seq: 4, Name: "keydown", Target: 5, Payload: &KeyboardData{
				Key: "Enter", Code: "Enter", Repeat: true, Modifiers: ModMeta,
			}},
		},
		{
			name:  "input",
			event: Event{Seq: 5, Name: "input", Target: 6, Payload: &FormData{Value: "hello"}},
		},
		{
			name: "submit",
			event: Event{Seq: 6, Name: "submit", Target: 8, Payload: &SubmitData{Fields: []Field{
				{Name: "email", Value: "a@b.c"}, {Name: "remember", Value: "on"},
			}}},
		},
		{
			name: "touch",
			event: Event{Seq: 7, Name: "touchstart", Target: 9, Payload: &TouchData{
				Touches:        []TouchPoint{{ID: 1, ClientX: 5, ClientY: 6}},
				ChangedTouches: []TouchPoint{{ID: 1, ClientX: 5, ClientY: 6}},
			}},
		},
		{
			name:  "wheel",
			event: Event{Seq: 8, Name: "wheel", Target: 1, Payload: &WheelData{DeltaY: -120.5, DeltaMode: 1}},
		},
		{
			name:  "transition",
			event: Event{Seq: 9, Name: "transitionend", Target: 1, Payload: &TransitionData{PropertyName: "opacity", ElapsedTime: 0.3}},
		},
		{
			name:  "toggle",
			event: Event{Seq: 10, Name: "toggle", Target: 4, Payload: &ToggleData{NewState: "open"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := DecodeEvent(EncodeEvent(&tt.event))
			if err != nil {
				t.Fatalf("DecodeEvent: %v", err)
			}
			if !reflect.DeepEqual(*decoded, tt.event) {
				t.Errorf("got %+v, want %+v", *decoded, tt.event)
			}
		})
	}
}

func TestEventsGroupEncodeDecode(t *testing.T) {
	events := []Event{
		{Seq: 1, Name: "click", Target: 1, Payload: &MouseData{ClientX: 3}},
		{Seq: 2, Name: "blur", Target: 2},
	}
	decoded, err := DecodeEvents(EncodeEvents(events))
	if err != nil {
		t.Fatalf("DecodeEvents: %v", err)
	}
	if !reflect.DeepEqual(decoded, events) {
		t.Errorf("got %+v, want %+v", decoded, events)
	}
}

func TestDecodeEventInvalidPayload(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(1)
	e.WriteString("click")
	e.WriteNodeID(1)
	e.WriteByte(0xF0)

	if _, err := DecodeEvent(e.Bytes()); err != ErrInvalidPayload {
		t.Fatalf("err = %v, want ErrInvalidPayload", err)
	}
}

func TestDecodeEventTruncatedPayload(t *testing.T) {
	data := EncodeEvent(&Event{Seq: 1, Name: "keydown", Target: 1, Payload: &KeyboardData{Key: "a", Code: "KeyA"}})
	if _, err := DecodeEvent(data[:len(data)-2]); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestModifiersHas(t *testing.T) {
	m := ModAlt | ModMeta
	if !m.Has(ModAlt) || !m.Has(ModMeta) || m.Has(ModCtrl) {
		t.Errorf("Has mismatch for %08b", m)
	}
}
