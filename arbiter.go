package main

import (
	"context"
	"fmt"
	"log"
)

// ArbitrationStatus tags an ArbitrationOutcome
type ArbitrationStatus string

const (
	ArbitrationApproved ArbitrationStatus = "approved"
	ArbitrationRejected ArbitrationStatus = "rejected"
	ArbitrationSkipped  ArbitrationStatus = "skipped"
)

// QualityScores are the two reviewer scores, 0-10
type QualityScores struct {
	Realism   int `json:"realism"`
	Adherence int `json:"adherence"`
}

// ArbitrationOutcome is the planner-facing result of the quality sub-loop
type ArbitrationOutcome struct {
	Status      ArbitrationStatus `json:"status"`
	VideoURL    string            `json:"videoUrl,omitempty"`
	Attempts    int               `json:"attempts"`
	Scores      *QualityScores    `json:"scores,omitempty"`
	Issues      []string          `json:"issues,omitempty"`
	Verdict     string            `json:"verdict,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Note        string            `json:"note,omitempty"`
	Instruction string            `json:"instruction,omitempty"`
}

// Arbiter alternates synthesis and review until the video is approved or
// MaxQualityAttempts videos have been synthesized for the current concept.
type Arbiter struct {
	synth    VideoSynthesizer
	reviewer VideoReviewer
	metrics  *PipelineMetrics
}

// NewArbiter creates an arbiter; metrics may be nil
func NewArbiter(synth VideoSynthesizer, reviewer VideoReviewer, metrics *PipelineMetrics) *Arbiter {
	return &Arbiter{synth: synth, reviewer: reviewer, metrics: metrics}
}

// Run arbitrates the session's current concept. A video synthesized earlier
// but not yet reviewed is reviewed first instead of being regenerated.
func (a *Arbiter) Run(ctx context.Context, sess *Session, caption string, hashtags []string) ArbitrationOutcome {
	concept := sess.CurrentVideoConcept
	if concept == nil {
		return ArbitrationOutcome{
			Status:      ArbitrationSkipped,
			Reason:      "no video concept",
			Instruction: "Call create_video_concept first, or proceed with revise_content without video.",
		}
	}

	var notes string
	for {
		if !sess.HasUnreviewedVideo() {
			if sess.AttemptsExhausted() {
				break
			}
			log.Printf("→ Quality attempt %d/%d", sess.QualityAttempts+1, MaxQualityAttempts)
			result := a.synth.Generate(ctx, concept, sess.Platform(), notes)
			a.metrics.VideoSynthesized(result.Status)
			if !result.Succeeded() {
				sess.ClearVideo()
				return ArbitrationOutcome{
					Status:      ArbitrationSkipped,
					Attempts:    sess.QualityAttempts,
					Reason:      "video synthesis failed: " + result.Error,
					Note:        "continue without video",
					Instruction: "Proceed with revise_content without video.",
				}
			}
			sess.SetVideo(result.VideoURL)
		}

		review := a.reviewer.ReviewVideo(ctx, VideoReviewRequest{
			VideoURL: sess.CurrentVideoURL,
			Concept:  concept,
			Caption:  caption,
			Hashtags: hashtags,
		})
		sess.RecordQualityReview(review)
		a.metrics.QualityReviewed(review.Approved)

		if review.Approved || sess.AttemptsExhausted() {
			return decidedOutcome(sess, review)
		}
		log.Printf("✗ Video rejected (realism %d/10, adherence %d/10), regenerating", review.RealismScore, review.AdherenceScore)
		notes = review.ImprovedPromptNotes
	}

	// cap already reached by earlier calls: report the last verdict again
	if q := sess.CurrentQualityReview; q != nil && sess.CurrentVideoURL != "" {
		return decidedOutcome(sess, *q)
	}
	return ArbitrationOutcome{
		Status:      ArbitrationSkipped,
		Attempts:    sess.QualityAttempts,
		Reason:      fmt.Sprintf("quality attempt cap of %d reached", MaxQualityAttempts),
		Instruction: "Proceed with revise_content without video.",
	}
}

func decidedOutcome(sess *Session, review QualityReview) ArbitrationOutcome {
	out := ArbitrationOutcome{
		VideoURL: sess.CurrentVideoURL,
		Attempts: sess.QualityAttempts,
		Scores:   &QualityScores{Realism: review.RealismScore, Adherence: review.AdherenceScore},
		Issues:   review.Issues,
		Verdict:  review.Verdict,
	}
	if review.Approved {
		out.Status = ArbitrationApproved
		out.Instruction = "Video approved. Proceed with revise_content."
		log.Printf("✓ Video approved after %d attempt(s)", sess.QualityAttempts)
		return out
	}
	out.Status = ArbitrationRejected
	out.Note = "best-effort video kept; the human reviewer decides at approval"
	out.Instruction = fmt.Sprintf("Video failed quality review after %d attempts. Do not regenerate it; proceed with revise_content.", sess.QualityAttempts)
	log.Printf("✗ Video not approved after %d attempts, keeping the last one", sess.QualityAttempts)
	return out
}
