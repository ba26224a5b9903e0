package api

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func f(v float64) *float64 { return &v }

func TestLocationPayload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payload LocationPayload
		wantErr bool
	}{
		{name: "valid", payload: LocationPayload{Latitude: f(10), Longitude: f(20)}},
		{name: "zero is a valid coordinate", payload: LocationPayload{Latitude: f(0), Longitude: f(0)}},
		{name: "with accuracy", payload: LocationPayload{Latitude: f(-33.9), Longitude: f(151.2), Accuracy: f(12.5)}},
		{name: "missing latitude", payload: LocationPayload{Longitude: f(20)}, wantErr: true},
		{name: "missing longitude", payload: LocationPayload{Latitude: f(10)}, wantErr: true},
		{name: "latitude out of range", payload: LocationPayload{Latitude: f(91), Longitude: f(0)}, wantErr: true},
		{name: "longitude out of range", payload: LocationPayload{Latitude: f(0), Longitude: f(-181)}, wantErr: true},
		{name: "nan", payload: LocationPayload{Latitude: f(math.NaN()), Longitude: f(0)}, wantErr: true},
		{name: "negative accuracy", payload: LocationPayload{Latitude: f(1), Longitude: f(1), Accuracy: f(-1)}, wantErr: true},
		{name: "token too long", payload: LocationPayload{Latitude: f(1), Longitude: f(1), SessionToken: strings.Repeat("x", MaxSessionTokenLen+1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLocationPayload_DecodeMissingFields(t *testing.T) {
	var p LocationPayload
	if err := json.Unmarshal([]byte(`{"latitude": 10}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Longitude != nil {
		t.Fatal("longitude should stay nil when absent")
	}
	if err := p.Validate(); err == nil {
		t.Error("payload without longitude must be rejected")
	}
}

func TestSessionPayload_Validate(t *testing.T) {
	if err := (SessionPayload{}).Validate(); err != nil {
		t.Errorf("empty token should be allowed (server mints one): %v", err)
	}
	if err := (SessionPayload{SessionToken: strings.Repeat("a", MaxSessionTokenLen+1)}).Validate(); err == nil {
		t.Error("expected error for oversized token")
	}
}
