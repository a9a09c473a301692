// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package validation

import (
	"strings"
	"testing"
)

type joinBody struct {
	CameraID string `validate:"required,min=1,max=64"`
	DeviceID string `validate:"required,min=1,max=128"`
}

type chunkBody struct {
	PayloadRef string `validate:"required,min=1,max=512"`
	DurationMs int64  `validate:"required,min=1,max=60000"`
}

type syncBody struct {
	LocalTimestamp string `validate:"required,datetime=2006-01-02T15:04:05.999999999Z07:00"`
}

func TestGetValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator returned different instances")
	}
}

func TestValidateStructPasses(t *testing.T) {
	body := joinBody{CameraID: "cam-north", DeviceID: "device-7731"}
	if err := ValidateStruct(&body); err != nil {
		t.Errorf("valid struct rejected: %v", err)
	}
}

func TestValidateStructRequired(t *testing.T) {
	err := ValidateStruct(&joinBody{CameraID: "cam-north"})
	if err == nil {
		t.Fatal("missing DeviceID accepted")
	}

	errs := err.Errors()
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if errs[0].Field() != "DeviceID" || errs[0].Tag() != "required" {
		t.Errorf("got %s/%s, want DeviceID/required", errs[0].Field(), errs[0].Tag())
	}
	if !strings.Contains(err.Error(), "DeviceID is required") {
		t.Errorf("message = %q, want required wording", err.Error())
	}
}

func TestValidateStructBounds(t *testing.T) {
	tests := []struct {
		name string
		body chunkBody
		want string
	}{
		{
			name: "duration too long",
			body: chunkBody{PayloadRef: "chunk://a/0", DurationMs: 120000},
			want: "at most 60000",
		},
		{
			name: "payload ref too long",
			body: chunkBody{PayloadRef: strings.Repeat("x", 600), DurationMs: 200},
			want: "at most 512 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.body)
			if err == nil {
				t.Fatal("invalid body accepted")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("message = %q, want substring %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidateStructDatetime(t *testing.T) {
	if err := ValidateStruct(&syncBody{LocalTimestamp: "2026-03-14T19:00:00.1234Z"}); err != nil {
		t.Errorf("RFC3339 timestamp rejected: %v", err)
	}
	if err := ValidateStruct(&syncBody{LocalTimestamp: "yesterday"}); err == nil {
		t.Error("non-timestamp accepted")
	}
}

func TestToAPIErrorSingleField(t *testing.T) {
	err := ValidateStruct(&joinBody{DeviceID: "device-1"})
	if err == nil {
		t.Fatal("missing CameraID accepted")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_FAILED" {
		t.Errorf("Code = %q", apiErr.Code)
	}
	if apiErr.Details["field"] != "CameraID" {
		t.Errorf("Details field = %v, want CameraID", apiErr.Details["field"])
	}
}

func TestToAPIErrorMultipleFields(t *testing.T) {
	err := ValidateStruct(&joinBody{})
	if err == nil {
		t.Fatal("empty body accepted")
	}
	if len(err.Errors()) != 2 {
		t.Fatalf("got %d errors, want 2", len(err.Errors()))
	}

	apiErr := err.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("Details fields has type %T", apiErr.Details["fields"])
	}
	if len(fields) != 2 {
		t.Errorf("got %d field entries, want 2", len(fields))
	}
}
