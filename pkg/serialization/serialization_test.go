package serialization

import (
	"bytes"
	"testing"
)

type sample struct {
	Name  string
	Order int
}

func TestCodecs(t *testing.T) {
	for _, name := range []string{JSONType, GobType} {
		t.Run(name, func(t *testing.T) {
			codec, err := For(name)
			if err != nil {
				t.Fatalf("For(%q): %v", name, err)
			}
			data, err := codec.Marshal(sample{Name: "sunday", Order: 2})
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var got sample
			if err := codec.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got.Name != "sunday" || got.Order != 2 {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestDefaultIsJSON(t *testing.T) {
	codec, err := For("")
	if err != nil || codec.Type != JSONType {
		t.Fatalf("For(\"\") = (%v, %v)", codec.Type, err)
	}
	data, _ := codec.Marshal(sample{Name: "a"})
	if !bytes.HasPrefix(data, []byte(`{"Name":"a"`)) {
		t.Errorf("data = %s", data)
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	for _, name := range []string{JSONType, GobType} {
		codec, _ := For(name)
		var got sample
		if err := codec.Unmarshal([]byte("not a document"), &got); err == nil {
			t.Errorf("%s: expected decode error", name)
		}
	}
}

func TestZeroCodec(t *testing.T) {
	var c Codec
	if _, err := c.Marshal(sample{}); err == nil {
		t.Error("expected error from zero codec")
	}
}

func TestForUnknown(t *testing.T) {
	if _, err := For("xml"); err == nil {
		t.Error("expected error for unsupported type")
	}
}
