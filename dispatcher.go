package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// Action is one of the closed set of operations the planner may request
type Action int

const (
	ActionFetchRecentItems Action = iota + 1
	ActionCreateVideoConcept
	ActionSynthesizeVideo
	ActionArbitrateVideoQuality
	ActionReviseContent
	ActionRequestApproval
	ActionPublishInstagram
	ActionPublishFacebook
)

var actionNames = map[Action]string{
	ActionFetchRecentItems:      "fetch_recent_items",
	ActionCreateVideoConcept:    "create_video_concept",
	ActionSynthesizeVideo:       "synthesize_video",
	ActionArbitrateVideoQuality: "arbitrate_video_quality",
	ActionReviseContent:         "revise_content",
	ActionRequestApproval:       "request_approval",
	ActionPublishInstagram:      "publish_instagram_post",
	ActionPublishFacebook:       "publish_facebook_post",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction maps a planner-supplied name onto the closed action set
func ParseAction(name string) (Action, error) {
	for action, n := range actionNames {
		if n == name {
			return action, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// ToolResult is the planner-facing outcome of one action. Content is a JSON document.
type ToolResult struct {
	Content string
	IsError bool
}

// ReferenceFetcher retrieves reference material for a concept
type ReferenceFetcher interface {
	FetchContent(ctx context.Context, url string) (string, error)
}

// Collaborators are the services the dispatcher calls on behalf of the planner
type Collaborators struct {
	Concepts  ConceptWriter
	Reviewer  ContentReviewer
	Synth     VideoSynthesizer
	Arbiter   *Arbiter
	Approver  Approver
	Publisher Publisher
	Fetcher   ReferenceFetcher // optional
}

// Dispatcher executes planner actions against one session
type Dispatcher struct {
	session     *Session
	deps        Collaborators
	recentLimit int
	metrics     *PipelineMetrics
}

// NewDispatcher creates a dispatcher owning sess; metrics may be nil
func NewDispatcher(sess *Session, deps Collaborators, recentLimit int, metrics *PipelineMetrics) *Dispatcher {
	if recentLimit <= 0 {
		recentLimit = defaultRecentItemsLimit
	}
	return &Dispatcher{session: sess, deps: deps, recentLimit: recentLimit, metrics: metrics}
}

// Dispatch runs the named action. It never returns a Go error: every failure,
// unknown names included, is folded into the result for the planner.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, input json.RawMessage) ToolResult {
	log.Printf("→ Action %s", name)
	debugLog("action %s input: %s", name, input)

	label := "unknown"
	var result ToolResult
	action, err := ParseAction(name)
	if err != nil {
		result = errorResult(map[string]any{"error": err.Error()})
	} else {
		label = action.String()
		result = d.dispatch(ctx, action, input)
	}

	d.metrics.Dispatched(label, result.IsError)
	if result.IsError {
		log.Printf("✗ Action %s returned an error: %s", name, result.Content)
	} else {
		debugLog("action %s result: %s", name, result.Content)
	}
	return result
}

func (d *Dispatcher) dispatch(ctx context.Context, action Action, input json.RawMessage) ToolResult {
	switch action {
	case ActionFetchRecentItems:
		return d.fetchRecentItems(ctx, input)
	case ActionCreateVideoConcept:
		return d.createVideoConcept(ctx, input)
	case ActionSynthesizeVideo:
		return d.synthesizeVideo(ctx, input)
	case ActionArbitrateVideoQuality:
		return d.arbitrateVideoQuality(ctx, input)
	case ActionReviseContent:
		return d.reviseContent(ctx, input)
	case ActionRequestApproval:
		return d.requestApproval(ctx, input)
	case ActionPublishInstagram:
		return d.publish(ctx, PlatformInstagram, input)
	case ActionPublishFacebook:
		return d.publish(ctx, PlatformFacebook, input)
	}
	return errorResult(map[string]any{"error": fmt.Sprintf("action %s has no handler", action)})
}

type fetchRecentItemsInput struct {
	Platforms []string `json:"platforms"`
	Limit     int      `json:"limit"`
}

func (d *Dispatcher) fetchRecentItems(ctx context.Context, raw json.RawMessage) ToolResult {
	var in fetchRecentItemsInput
	if res, ok := decodeInput(raw, &in); !ok {
		return res
	}
	if len(in.Platforms) == 0 {
		return missingInput("platforms")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = d.recentLimit
	}

	items := []RecentItem{}
	var notes []string
	for _, name := range in.Platforms {
		platform, err := ParsePlatform(name)
		if err != nil {
			notes = append(notes, err.Error())
			continue
		}
		posts, err := d.deps.Publisher.RecentPosts(ctx, platform, limit)
		if err != nil {
			log.Printf("✗ Fetching recent %s posts failed: %v", platform, err)
			notes = append(notes, fmt.Sprintf("recent %s posts unavailable: %v", platform, err))
			continue
		}
		items = append(items, posts...)
	}

	out := map[string]any{"items": items}
	if len(notes) > 0 {
		out["note"] = strings.Join(notes, "; ")
	}
	log.Printf("✓ Fetched %d recent items", len(items))
	return okResult(out)
}

type createVideoConceptInput struct {
	Platform     string `json:"platform"`
	Caption      string `json:"caption"`
	Theme        string `json:"theme"`
	ReferenceURL string `json:"referenceUrl"`
}

func (d *Dispatcher) createVideoConcept(ctx context.Context, raw json.RawMessage) ToolResult {
	var in createVideoConceptInput
	if res, ok := decodeInput(raw, &in); !ok {
		return res
	}
	switch {
	case in.Platform == "":
		return missingInput("platform")
	case in.Caption == "":
		return missingInput("caption")
	case in.Theme == "":
		return missingInput("theme")
	}
	platform, err := ParsePlatform(in.Platform)
	if err != nil {
		return errorResult(map[string]any{"error": err.Error()})
	}

	req := ConceptRequest{Platform: platform, Caption: in.Caption, Theme: in.Theme}
	if in.ReferenceURL != "" && d.deps.Fetcher != nil {
		reference, err := d.deps.Fetcher.FetchContent(ctx, in.ReferenceURL)
		if err != nil {
			log.Printf("✗ Reference %s unavailable, continuing without it: %v", in.ReferenceURL, err)
		} else {
			req.Reference = reference
		}
	}

	concept, err := d.deps.Concepts.CreateConcept(ctx, req)
	if err != nil {
		return errorResult(map[string]any{"error": "concept error: " + err.Error()})
	}
	d.session.SetConcept(concept, platform)

	return okResult(map[string]any{
		"status":               "ok",
		"title":                concept.Title,
		"totalDurationSeconds": concept.TotalDurationSecs,
		"platformFormat":       concept.PlatformFormat,
		"visualStyle":          concept.VisualStyle,
		"hookDescription":      concept.HookDescription,
		"sceneCount":           len(concept.Scenes),
		"musicMood":            concept.MusicMood,
	})
}

type synthesizeVideoInput struct {
	Platform         string `json:"platform"`
	ImprovementNotes string `json:"improvementNotes"`
}

func (d *Dispatcher) synthesizeVideo(ctx context.Context, raw json.RawMessage) ToolResult {
	var in synthesizeVideoInput
	if res, ok := decodeInput(raw, &in); !ok {
		return res
	}
	if in.Platform == "" {
		return missingInput("platform")
	}
	platform, err := ParsePlatform(in.Platform)
	if err != nil {
		return errorResult(map[string]any{"error": err.Error()})
	}

	sess := d.session
	if sess.CurrentVideoConcept == nil {
		return okResult(map[string]any{"status": "skipped", "reason": "no video concept; call create_video_concept first"})
	}
	if sess.AttemptsExhausted() {
		return okResult(map[string]any{
			"status": "skipped",
			"reason": fmt.Sprintf("quality attempt cap of %d reached for this concept", MaxQualityAttempts),
		})
	}

	result := d.deps.Synth.Generate(ctx, sess.CurrentVideoConcept, platform, in.ImprovementNotes)
	d.metrics.VideoSynthesized(result.Status)
	if !result.Succeeded() {
		sess.ClearVideo()
		return okResult(map[string]any{
			"status": string(SynthesisFailed),
			"error":  result.Error,
			"note":   "continue without video",
		})
	}
	sess.SetVideo(result.VideoURL)

	return okResult(map[string]any{
		"status":         string(SynthesisSucceeded),
		"videoUrl":       result.VideoURL,
		"taskId":         result.TaskID,
		"promptUsed":     result.PromptUsed,
		"platformFormat": result.PlatformFormat,
		"attempt":        sess.QualityAttempts,
	})
}

type arbitrateVideoQualityInput struct {
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
}

func (d *Dispatcher) arbitrateVideoQuality(ctx context.Context, raw json.RawMessage) ToolResult {
	var in arbitrateVideoQualityInput
	if res, ok := decodeInput(raw, &in); !ok {
		return res
	}
	if in.Caption == "" {
		return missingInput("caption")
	}
	outcome := d.deps.Arbiter.Run(ctx, d.session, in.Caption, NormalizeHashtags(in.Hashtags))
	return okResult(outcome)
}

type reviseContentInput struct {
	Platform string   `json:"platform"`
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
}

func (d *Dispatcher) reviseContent(ctx context.Context, raw json.RawMessage) ToolResult {
	var in reviseContentInput
	if res, ok := decodeInput(raw, &in); !ok {
		return res
	}
	switch {
	case in.Platform == "":
		return missingInput("platform")
	case in.Caption == "":
		return missingInput("caption")
	}
	platform, err := ParsePlatform(in.Platform)
	if err != nil {
		return errorResult(map[string]any{"error": err.Error()})
	}

	req := ContentReviewRequest{Platform: platform, Caption: in.Caption, Hashtags: NormalizeHashtags(in.Hashtags)}
	if c := d.session.CurrentVideoConcept; c != nil {
		req.VideoConcept = c.Summary()
		if url := d.session.CurrentVideoURL; url != "" {
			req.VideoConcept += "\nVideo: " + url
		}
	}

	review, err := d.deps.Reviewer.ReviewContent(ctx, req)
	if err != nil {
		return errorResult(map[string]any{"error": "content review error: " + err.Error()})
	}
	d.session.CurrentContentReview = review

	out := map[string]any{
		"status":                "ok",
		"revisedCaption":        review.RevisedCaption,
		"revisedHashtags":       review.RevisedHashtags,
		"engagementScore":       review.EngagementScore,
		"changesSummary":        review.ChangesSummary,
		"communityFitNotes":     review.CommunityFitNotes,
		"mainstreamAppealNotes": review.MainstreamAppealNotes,
	}
	if review.VideoAlignmentNotes != "" {
		out["videoAlignmentNotes"] = review.VideoAlignmentNotes
	}
	return okResult(out)
}

type requestApprovalInput struct {
	Platform string   `json:"platform"`
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
	ImageURL string   `json:"imageUrl"`
}

const restartInstruction = "The human rejected the post. Incorporate the feedback into a new draft, then restart with " +
	"create_video_concept, synthesize_video, arbitrate_video_quality, revise_content and request_approval. Do not publish."

func (d *Dispatcher) requestApproval(ctx context.Context, raw json.RawMessage) ToolResult {
	var in requestApprovalInput
	if res, ok := decodeInput(raw, &in); !ok {
		return res
	}
	switch {
	case in.Platform == "":
		return missingInput("platform")
	case in.Caption == "":
		return missingInput("caption")
	}
	platform, err := ParsePlatform(in.Platform)
	if err != nil {
		return errorResult(map[string]any{"error": err.Error()})
	}

	draft := Draft{
		Caption:  in.Caption,
		Hashtags: NormalizeHashtags(in.Hashtags),
		Platform: platform,
		ImageURL: in.ImageURL,
	}

	decision := d.deps.Approver.RequestApproval(ctx, draft, d.session)
	switch decision.Verdict {
	case Accepted:
		d.session.Approve(decision.Draft)
		log.Printf("✓ Draft approved for %s", platform)
		return okResult(map[string]any{"status": "approved", "platform": platform})
	default:
		d.session.RevokeApproval()
		log.Printf("✗ Draft rejected: %s", decision.Feedback)
		out := map[string]any{
			"status":      "rejected",
			"feedback":    decision.Feedback,
			"instruction": restartInstruction,
		}
		if decision.Implicit {
			out["implicit"] = true
		}
		return errorResult(out)
	}
}

type publishInput struct {
	Caption  string `json:"caption"`
	Message  string `json:"message"`
	ImageURL string `json:"imageUrl"`
}

func (d *Dispatcher) publish(ctx context.Context, platform Platform, raw json.RawMessage) ToolResult {
	var in publishInput
	if res, ok := decodeInput(raw, &in); !ok {
		return res
	}

	draft := d.session.ApprovedDraft
	if draft == nil {
		return errorResult(PublishResult{Success: false, Platform: platform, Error: "no approved draft"})
	}
	if draft.Platform != platform {
		return errorResult(PublishResult{
			Success:  false,
			Platform: platform,
			Error:    fmt.Sprintf("approved draft is for %s, not %s", draft.Platform, platform),
		})
	}

	text := draft.FullText()
	supplied := in.Caption
	if platform == PlatformFacebook {
		supplied = in.Message
	}

	var result PublishResult
	if platform == PlatformInstagram {
		result = d.deps.Publisher.PublishInstagram(ctx, text, draft.ImageURL)
	} else {
		result = d.deps.Publisher.PublishFacebook(ctx, text)
	}
	d.metrics.Published(platform, result.Success)

	var notes []string
	if supplied != "" && supplied != text && supplied != draft.Caption {
		notes = append(notes, "published the approved text; the supplied text differed and was ignored")
	}
	if in.ImageURL != "" && in.ImageURL != draft.ImageURL {
		notes = append(notes, "published the approved image; the supplied imageUrl differed and was ignored")
	}
	result.Note = strings.Join(notes, "; ")
	if !result.Success {
		return errorResult(result)
	}
	d.session.Reset()
	return okResult(result)
}

func decodeInput(raw json.RawMessage, v any) (ToolResult, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return ToolResult{}, true
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errorResult(map[string]any{"error": "invalid input: " + err.Error()}), false
	}
	return ToolResult{}, true
}

func missingInput(field string) ToolResult {
	return errorResult(map[string]any{"error": "missing required input: " + field})
}

func okResult(v any) ToolResult {
	return ToolResult{Content: encodePayload(v)}
}

func errorResult(v any) ToolResult {
	return ToolResult{Content: encodePayload(v), IsError: true}
}

func encodePayload(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, "encoding result: "+err.Error())
	}
	return string(data)
}
