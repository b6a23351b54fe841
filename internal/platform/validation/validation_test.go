package validation

import (
	"errors"
	"testing"
)

type payload struct {
	Name  string `validate:"required"`
	Kind  string `validate:"required,oneof=movie tv"`
	Score int    `validate:"gte=0,lte=100"`
}

func TestStruct_Valid(t *testing.T) {
	if err := Struct(payload{Name: "x", Kind: "tv", Score: 50}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestStruct_CollectsFields(t *testing.T) {
	err := Struct(payload{Kind: "book", Score: 101})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if len(verr.Fields) != 3 {
		t.Fatalf("expected 3 field errors, got %+v", verr.Fields)
	}
	if verr.Fields[0].Field != "Name" || verr.Fields[0].Message != "Name is required" {
		t.Fatalf("unexpected first field: %+v", verr.Fields[0])
	}
	if verr.Fields[1].Message != "Kind must be one of: movie tv" {
		t.Fatalf("unexpected oneof message: %q", verr.Fields[1].Message)
	}
	if _, ok := verr.Details()["fields"]; !ok {
		t.Fatal("expected fields in details")
	}
}

func TestStruct_NonStruct(t *testing.T) {
	var verr *Error
	if err := Struct("nope"); !errors.As(err, &verr) {
		t.Fatalf("expected *Error for non-struct, got %v", err)
	}
}
