package main

import (
	"reflect"
	"strings"
	"testing"
)

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		input   string
		want    Platform
		wantErr bool
	}{
		{input: "instagram", want: PlatformInstagram},
		{input: " Facebook ", want: PlatformFacebook},
		{input: "tiktok", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePlatform(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePlatform(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePlatform(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeHashtags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "strips hashes", in: []string{"#vegan", "##plantbased"}, want: []string{"vegan", "plantbased"}},
		{name: "drops duplicates case-insensitively", in: []string{"Vegan", "vegan", "#VEGAN", "dal"}, want: []string{"Vegan", "dal"}},
		{name: "drops blanks", in: []string{" ", "#", " tofu "}, want: []string{"tofu"}},
		{name: "nil", in: nil, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeHashtags(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeHashtags() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDraftFullText(t *testing.T) {
	draft := Draft{Caption: "Dal night", Hashtags: []string{"vegan", "dal"}}
	if got, want := draft.FullText(), "Dal night\n\n#vegan #dal"; got != want {
		t.Errorf("FullText() = %q, want %q", got, want)
	}

	bare := Draft{Caption: "No tags"}
	if got := bare.FullText(); got != "No tags" {
		t.Errorf("FullText() = %q, want caption only", got)
	}
}

func TestVideoConceptValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *VideoConcept)
		wantErr string
	}{
		{name: "valid", mutate: func(c *VideoConcept) {}},
		{name: "no title", mutate: func(c *VideoConcept) { c.Title = " " }, wantErr: "no title"},
		{name: "no scenes", mutate: func(c *VideoConcept) { c.Scenes = nil }, wantErr: "no scenes"},
		{name: "numbering gap", mutate: func(c *VideoConcept) { c.Scenes[1].SceneNumber = 3 }, wantErr: "numbered 3"},
		{name: "starts at zero", mutate: func(c *VideoConcept) { c.Scenes[0].SceneNumber = 0 }, wantErr: "numbered 0"},
		{name: "zero duration", mutate: func(c *VideoConcept) { c.Scenes[0].DurationSeconds = 0 }, wantErr: "non-positive duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConcept()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestVideoGenerationResultVariants(t *testing.T) {
	ok := synthesisSucceeded("task-1", "https://cdn.example.com/v.mp4", "prompt", "9:16")
	if !ok.Succeeded() || ok.Error != "" {
		t.Errorf("succeeded result = %+v", ok)
	}

	failed := synthesisFailed(ErrSynthesisTimeout)
	if failed.Succeeded() || failed.VideoURL != "" || failed.Error == "" {
		t.Errorf("failed result = %+v", failed)
	}
}
