package main

// MaxQualityAttempts caps video synthesis attempts per content item
const MaxQualityAttempts = 3

// Session is the mutable context of one content item's lifecycle.
// It is owned by a single pipeline run and touched only by the handler currently executing.
type Session struct {
	ApprovedDraft        *Draft
	CurrentVideoConcept  *VideoConcept
	CurrentVideoURL      string
	CurrentContentReview *ContentReview
	CurrentQualityReview *QualityReview
	QualityAttempts      int

	// platform the current concept was created for
	platform Platform
	// videoReviewed is false while CurrentVideoURL awaits its first quality review
	videoReviewed bool
}

// NewSession returns a session in its initial state
func NewSession() *Session {
	return &Session{}
}

// Reset returns every field to its initial value. Called after a successful publish.
func (s *Session) Reset() {
	*s = Session{}
}

// SetConcept starts a new content cycle around concept, discarding video and review state
func (s *Session) SetConcept(concept *VideoConcept, platform Platform) {
	s.CurrentVideoConcept = concept
	s.platform = platform
	s.ClearVideo()
	s.CurrentContentReview = nil
	s.QualityAttempts = 0
}

// Platform returns the platform the current concept targets
func (s *Session) Platform() Platform {
	return s.platform
}

// SetVideo records a freshly synthesized video and counts the attempt.
// The previous video's review does not carry over.
func (s *Session) SetVideo(url string) {
	s.CurrentVideoURL = url
	s.CurrentQualityReview = nil
	s.videoReviewed = false
	s.QualityAttempts++
}

// ClearVideo drops the current video, and its review, after a failed synthesis
func (s *Session) ClearVideo() {
	s.CurrentVideoURL = ""
	s.CurrentQualityReview = nil
	s.videoReviewed = false
}

// HasUnreviewedVideo reports whether the current video has not been quality reviewed yet
func (s *Session) HasUnreviewedVideo() bool {
	return s.CurrentVideoURL != "" && !s.videoReviewed
}

// RecordQualityReview stores the verdict on the current video
func (s *Session) RecordQualityReview(review QualityReview) {
	s.CurrentQualityReview = &review
	s.videoReviewed = true
}

// AttemptsExhausted reports whether no more synthesis attempts are allowed
func (s *Session) AttemptsExhausted() bool {
	return s.QualityAttempts >= MaxQualityAttempts
}

// Approve stores draft as the approved draft, replacing any earlier approval
func (s *Session) Approve(draft Draft) {
	s.ApprovedDraft = &draft
}

// RevokeApproval drops a pending approval; a rejected cycle must not leave one behind
func (s *Session) RevokeApproval() {
	s.ApprovedDraft = nil
}
