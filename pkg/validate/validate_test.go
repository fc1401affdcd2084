package validate

import (
	"errors"
	"strings"
	"testing"
)

type request struct {
	TrackIDs []int64 `json:"track_ids" validate:"max=3"`
	TopK     int     `json:"top_k" validate:"omitempty,min=1,max=50"`
}

func TestStruct(t *testing.T) {
	if err := Struct(request{TopK: 10}); err != nil {
		t.Fatalf("valid request: %v", err)
	}
	err := Struct(request{TrackIDs: []int64{1, 2, 3, 4}, TopK: 99})
	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatalf("want *Error, got %T", err)
	}
	if len(ve.Fields) != 2 {
		t.Fatalf("fields = %+v", ve.Fields)
	}
	if !strings.Contains(err.Error(), "top_k") || !strings.Contains(err.Error(), "track_ids") {
		t.Fatalf("error should use json names: %v", err)
	}
}
