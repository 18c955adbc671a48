package kafka

import (
	"testing"
)

type sample struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

func TestEncode(t *testing.T) {
	msgs, err := encode([]Event{
		{Key: "coal", Value: sample{Query: "coal", Count: 3}},
		{Key: "seam", Value: map[string]int{"count": 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if string(msgs[0].Key) != "coal" {
		t.Errorf("Key = %q", msgs[0].Key)
	}
	got, err := DecodeJSON[sample](msgs[0].Value)
	if err != nil {
		t.Fatal(err)
	}
	if got.Query != "coal" || got.Count != 3 {
		t.Errorf("decoded %+v", got)
	}
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	if _, err := encode([]Event{{Key: "k", Value: make(chan int)}}); err == nil {
		t.Error("expected marshal error")
	}
}

func TestDecodeJSONError(t *testing.T) {
	if _, err := DecodeJSON[sample]([]byte("{")); err == nil {
		t.Error("expected decode error")
	}
}
