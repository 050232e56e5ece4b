package main

import (
	"fmt"
	"strings"
)

// Platform identifies a publishing target
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
)

// ParsePlatform validates a platform name coming from the planner
func ParsePlatform(s string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformInstagram:
		return PlatformInstagram, nil
	case PlatformFacebook:
		return PlatformFacebook, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Draft is a post awaiting or holding human approval
type Draft struct {
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
	Platform Platform `json:"platform"`
	ImageURL string   `json:"image_url,omitempty"`
}

// FullText returns the caption followed by the #-prefixed hashtags
func (d *Draft) FullText() string {
	if len(d.Hashtags) == 0 {
		return d.Caption
	}
	tags := make([]string, len(d.Hashtags))
	for i, tag := range d.Hashtags {
		tags[i] = "#" + tag
	}
	return d.Caption + "\n\n" + strings.Join(tags, " ")
}

// NormalizeHashtags strips leading '#', trims blanks and drops duplicates, preserving order
func NormalizeHashtags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimLeft(strings.TrimSpace(tag), "#")
		if tag == "" || seen[strings.ToLower(tag)] {
			continue
		}
		seen[strings.ToLower(tag)] = true
		out = append(out, tag)
	}
	return out
}

// PublishResult is the outcome of a publish call
type PublishResult struct {
	Success  bool     `json:"success"`
	Platform Platform `json:"platform"`
	PostID   string   `json:"postId,omitempty"`
	PostURL  string   `json:"postUrl,omitempty"`
	Error    string   `json:"error,omitempty"`
	Note     string   `json:"note,omitempty"`
}

// RecentItem is a previously published post, used to avoid repetition
type RecentItem struct {
	PostID    string   `json:"post_id"`
	Platform  Platform `json:"platform"`
	Caption   string   `json:"caption,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Permalink string   `json:"permalink,omitempty"`
}

// Scene is a single storyboard entry of a video concept
type Scene struct {
	SceneNumber     int    `json:"scene_number"`
	Description     string `json:"description"`
	DurationSeconds int    `json:"duration_seconds"`
	CameraMovement  string `json:"camera_movement"`
	TextOverlay     string `json:"text_overlay,omitempty"`
	VisualDetails   string `json:"visual_details,omitempty"`
}

// VideoConcept is the storyboard produced by the concept writer
type VideoConcept struct {
	Title               string   `json:"title"`
	TotalDurationSecs   int      `json:"total_duration_seconds"`
	VisualStyle         string   `json:"visual_style"`
	PlatformFormat      string   `json:"platform_format"`
	HookDescription     string   `json:"hook_description"`
	Scenes              []Scene  `json:"scenes"`
	MusicMood           string   `json:"music_mood"`
	ColorPalette        []string `json:"color_palette"`
	CinematographyNotes string   `json:"cinematography_notes"`
	ProductionNotes     string   `json:"production_notes"`
}

// Validate checks that scenes are numbered from 1 without gaps and have positive durations
func (c *VideoConcept) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("concept has no title")
	}
	if len(c.Scenes) == 0 {
		return fmt.Errorf("concept has no scenes")
	}
	for i, s := range c.Scenes {
		if s.SceneNumber != i+1 {
			return fmt.Errorf("scene %d numbered %d, want %d", i, s.SceneNumber, i+1)
		}
		if s.DurationSeconds <= 0 {
			return fmt.Errorf("scene %d has non-positive duration %d", s.SceneNumber, s.DurationSeconds)
		}
	}
	return nil
}

// Summary renders the concept as plain text for downstream reviewers
func (c *VideoConcept) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", c.Title)
	fmt.Fprintf(&b, "Format: %s\n", c.PlatformFormat)
	fmt.Fprintf(&b, "Style: %s\n", c.VisualStyle)
	fmt.Fprintf(&b, "Hook: %s\n", c.HookDescription)
	b.WriteString("Scenes:\n")
	for _, s := range c.Scenes {
		fmt.Fprintf(&b, "  Scene %d (%ds): %s [camera: %s]", s.SceneNumber, s.DurationSeconds, s.Description, s.CameraMovement)
		if s.VisualDetails != "" {
			fmt.Fprintf(&b, " - details: %s", s.VisualDetails)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Music: %s\n", c.MusicMood)
	fmt.Fprintf(&b, "Palette: %s\n", strings.Join(c.ColorPalette, ", "))
	fmt.Fprintf(&b, "Cinematography: %s", c.CinematographyNotes)
	return b.String()
}

// SynthesisStatus tags a VideoGenerationResult
type SynthesisStatus string

const (
	SynthesisSucceeded SynthesisStatus = "succeeded"
	SynthesisFailed    SynthesisStatus = "failed"
)

// VideoGenerationResult is either a succeeded video or a failure description, never both
type VideoGenerationResult struct {
	Status         SynthesisStatus `json:"status"`
	VideoURL       string          `json:"video_url,omitempty"`
	TaskID         string          `json:"task_id,omitempty"`
	PromptUsed     string          `json:"prompt_used,omitempty"`
	PlatformFormat string          `json:"platform_format,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// Succeeded reports whether the result carries a video
func (r VideoGenerationResult) Succeeded() bool {
	return r.Status == SynthesisSucceeded
}

func synthesisSucceeded(taskID, videoURL, prompt, format string) VideoGenerationResult {
	return VideoGenerationResult{Status: SynthesisSucceeded, TaskID: taskID, VideoURL: videoURL, PromptUsed: prompt, PlatformFormat: format}
}

func synthesisFailed(err error) VideoGenerationResult {
	return VideoGenerationResult{Status: SynthesisFailed, Error: err.Error()}
}

// QualityReview is the frame reviewer's verdict on a generated video.
// Approved is authoritative; it is never recomputed from the scores.
type QualityReview struct {
	Approved            bool     `json:"approved"`
	RealismScore        int      `json:"realism_score"`
	AdherenceScore      int      `json:"adherence_score"`
	Issues              []string `json:"issues"`
	ImprovedPromptNotes string   `json:"improved_prompt_notes"`
	Verdict             string   `json:"verdict"`
}

// ContentReview is the engagement reviewer's revision of a draft
type ContentReview struct {
	RevisedCaption        string   `json:"revised_caption"`
	RevisedHashtags       []string `json:"revised_hashtags"`
	EngagementScore       int      `json:"engagement_score"`
	ChangesSummary        []string `json:"changes_summary"`
	CommunityFitNotes     string   `json:"community_fit_notes"`
	MainstreamAppealNotes string   `json:"mainstream_appeal_notes"`
	VideoAlignmentNotes   string   `json:"video_alignment_notes,omitempty"`
}
