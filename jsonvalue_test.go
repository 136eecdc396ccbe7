package acp

import (
	"encoding/json"
	"testing"
)

func TestRequestID_IntEncodesAsBareNumber(t *testing.T) {
	b, err := json.Marshal(NewIntID(42))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "42" {
		t.Fatalf("encoded = %s, want bare number 42", b)
	}
}

func TestRequestID_StringEncodesAsJSONString(t *testing.T) {
	b, err := json.Marshal(NewStringID("abc"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"abc"` {
		t.Fatalf("encoded = %s, want JSON string", b)
	}
}

func TestRequestID_DecodesEitherTag(t *testing.T) {
	var a, b RequestID
	if err := json.Unmarshal([]byte("7"), &a); err != nil {
		t.Fatalf("unmarshal int: %v", err)
	}
	if a.IsString() || a.Int() != 7 {
		t.Fatalf("a = %+v", a)
	}
	if err := json.Unmarshal([]byte(`"seven"`), &b); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if !b.IsString() || b.String() != "seven" {
		t.Fatalf("b = %+v", b)
	}
}

func TestRequestID_EqualRespectsTag(t *testing.T) {
	intID := NewIntID(1)
	strID := NewStringID("1")
	if intID.Equal(strID) {
		t.Fatal("an int id and a string id with the same surface text must not be equal")
	}
	if !intID.Equal(NewIntID(1)) {
		t.Fatal("identical int ids must be equal")
	}
	if !strID.Equal(NewStringID("1")) {
		t.Fatal("identical string ids must be equal")
	}
}

func TestRequestID_StringIDPanicsOnEmpty(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewStringID(\"\") should panic")
		}
	}()
	NewStringID("")
}

func TestRequestID_UnmarshalRejectsOtherShapes(t *testing.T) {
	var id RequestID
	if err := json.Unmarshal([]byte("true"), &id); err == nil {
		t.Fatal("expected an error unmarshaling a bool into a RequestID")
	}
}

func TestRequestID_IdKeyDistinguishesTags(t *testing.T) {
	if NewIntID(1).idKey() == NewStringID("1").idKey() {
		t.Fatal("idKey must not collide across int/string ids with the same text")
	}
}
