package core

import (
	"reflect"
	"testing"
)

func TestParseCallbackPayload(t *testing.T) {
	body := []byte(`{
		"hook_image_url":"h",
		"agitation_image_url":"a",
		"solution_image_url":"s",
		"cta_image_url":"c",
		"prompt":"sunset",
		"status":"ignored"
	}`)
	payload, err := ParseCallbackPayload(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := ImageSet{Hook: "h", Agitation: "a", Solution: "s", CTA: "c"}
	if payload.Images != want {
		t.Fatalf("expected %+v, got %+v", want, payload.Images)
	}
	if !payload.Images.Complete() {
		t.Fatalf("expected complete image set")
	}
	if payload.Extra["prompt"] != "sunset" {
		t.Fatalf("expected extra prompt field, got %+v", payload.Extra)
	}
	if _, ok := payload.Extra["status"]; ok {
		t.Fatalf("reserved field status must not be kept as extra")
	}
}

func TestParseCallbackPayload_FalsyImagesAreMissing(t *testing.T) {
	payload, err := ParseCallbackPayload([]byte(`{"hook_image_url":0,"agitation_image_url":"a","solution_image_url":null,"cta_image_url":false}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	missing := payload.Images.Missing()
	want := []string{FieldHookImage, FieldSolutionImage, FieldCTAImage}
	if !reflect.DeepEqual(missing, want) {
		t.Fatalf("expected missing %v, got %v", want, missing)
	}

	payload, err = ParseCallbackPayload([]byte(`{"hook_image_url":"","agitation_image_url":"a","solution_image_url":"s","cta_image_url":"c"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if missing := payload.Images.Missing(); !reflect.DeepEqual(missing, []string{FieldHookImage}) {
		t.Fatalf("expected empty string to be missing, got %v", missing)
	}
}

func TestParseCallbackPayload_TruthyImagesArePresent(t *testing.T) {
	payload, err := ParseCallbackPayload([]byte(`{"hook_image_url":" ","agitation_image_url":42,"solution_image_url":true,"cta_image_url":{"url":"c"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !payload.Images.Complete() {
		t.Fatalf("expected truthy values to count as present, missing %v", payload.Images.Missing())
	}
	want := ImageSet{Hook: " ", Agitation: "42", Solution: "true", CTA: `{"url":"c"}`}
	if payload.Images != want {
		t.Fatalf("expected %+v, got %+v", want, payload.Images)
	}
}

func TestParseCallbackPayload_EmptyAndInvalid(t *testing.T) {
	payload, err := ParseCallbackPayload(nil)
	if err != nil {
		t.Fatalf("empty body: %v", err)
	}
	if payload.Images.Complete() {
		t.Fatalf("empty body must not be complete")
	}
	if _, err := ParseCallbackPayload([]byte(`[1,2]`)); err == nil {
		t.Fatalf("expected error for non-object body")
	}
}
