package main

import "testing"

func TestSessionLifecycle(t *testing.T) {
	sess := NewSession()
	if sess.AttemptsExhausted() || sess.HasUnreviewedVideo() {
		t.Fatal("new session should have no video and attempts left")
	}

	sess.SetConcept(testConcept(), PlatformInstagram)
	sess.SetVideo("https://cdn.example.com/video-1.mp4")
	if !sess.HasUnreviewedVideo() || sess.QualityAttempts != 1 {
		t.Errorf("after SetVideo: unreviewed = %v, attempts = %d", sess.HasUnreviewedVideo(), sess.QualityAttempts)
	}

	sess.RecordQualityReview(reject("more steam"))
	if sess.HasUnreviewedVideo() {
		t.Error("reviewed video still reported as unreviewed")
	}

	sess.SetVideo("https://cdn.example.com/video-2.mp4")
	if sess.CurrentQualityReview != nil || !sess.HasUnreviewedVideo() {
		t.Error("SetVideo() kept the previous video's review")
	}
	sess.SetVideo("https://cdn.example.com/video-3.mp4")
	if !sess.AttemptsExhausted() {
		t.Errorf("AttemptsExhausted() = false after %d attempts", sess.QualityAttempts)
	}

	sess.ClearVideo()
	if sess.CurrentVideoURL != "" || sess.CurrentQualityReview != nil {
		t.Error("ClearVideo() should drop the video and its review")
	}

	sess.Approve(Draft{Caption: "Dal", Platform: PlatformInstagram})
	sess.RevokeApproval()
	if sess.ApprovedDraft != nil {
		t.Error("RevokeApproval() left an approved draft")
	}

	sess.CurrentContentReview = &ContentReview{EngagementScore: 7}
	sess.Approve(Draft{Caption: "Dal", Platform: PlatformInstagram})
	sess.Reset()
	if *sess != (Session{}) {
		t.Errorf("Reset() left %+v", sess)
	}
}

func TestSessionNewConceptStartsFreshCycle(t *testing.T) {
	sess := NewSession()
	sess.SetConcept(testConcept(), PlatformInstagram)
	for i := 0; i < MaxQualityAttempts; i++ {
		sess.SetVideo("https://cdn.example.com/v.mp4")
	}
	sess.RecordQualityReview(approve())
	sess.CurrentContentReview = &ContentReview{EngagementScore: 7}

	sess.SetConcept(testConcept(), PlatformFacebook)

	if sess.QualityAttempts != 0 || sess.CurrentVideoURL != "" || sess.CurrentQualityReview != nil || sess.CurrentContentReview != nil {
		t.Errorf("SetConcept() kept state from the previous cycle: %+v", sess)
	}
	if sess.Platform() != PlatformFacebook {
		t.Errorf("Platform() = %q, want facebook", sess.Platform())
	}
}

func TestSessionApproveCopiesDraft(t *testing.T) {
	sess := NewSession()
	draft := Draft{Caption: "Original", Platform: PlatformFacebook}

	sess.Approve(draft)
	draft.Caption = "Edited after approval"

	if sess.ApprovedDraft.Caption != "Original" {
		t.Errorf("ApprovedDraft.Caption = %q, want the approved text", sess.ApprovedDraft.Caption)
	}
}
