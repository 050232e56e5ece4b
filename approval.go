package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ApprovalVerdict is the terminal state of one approval request
type ApprovalVerdict string

const (
	Accepted ApprovalVerdict = "accepted"
	Rejected ApprovalVerdict = "rejected"
)

const (
	defaultRejectionFeedback    = "Post rejected without specific feedback."
	approvalInterruptedFeedback = "Approval interrupted before the reviewer answered."
)

// ApprovalDecision is what the human decided about a draft.
// Draft is set when Accepted; Feedback when Rejected. Implicit marks free text
// that matched neither a yes nor a no token.
type ApprovalDecision struct {
	Verdict  ApprovalVerdict
	Draft    Draft
	Feedback string
	Implicit bool
}

// Approver decides whether a draft may be published
type Approver interface {
	RequestApproval(ctx context.Context, draft Draft, sess *Session) ApprovalDecision
}

var (
	yesTokens = map[string]bool{"": true, "y": true, "yes": true, "s": true, "si": true, "sì": true, "ok": true}
	noTokens  = map[string]bool{"n": true, "no": true}
)

// ApprovalGate asks a human on a terminal
type ApprovalGate struct {
	in  *bufio.Reader
	out io.Writer
}

// NewApprovalGate creates a gate reading answers from in and rendering to out
func NewApprovalGate(in io.Reader, out io.Writer) *ApprovalGate {
	return &ApprovalGate{in: bufio.NewReader(in), out: out}
}

// RequestApproval renders the draft and reads the verdict.
// A cancelled ctx never approves, even if an answer was already typed.
func (g *ApprovalGate) RequestApproval(ctx context.Context, draft Draft, sess *Session) ApprovalDecision {
	if err := ctx.Err(); err != nil {
		return interrupted(err)
	}
	fmt.Fprintln(g.out, renderApprovalPanel(draft, sess))
	fmt.Fprint(g.out, "Approve this post? [Y/n, or type feedback]: ")

	answer, err := g.readLine()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return interrupted(ctxErr)
	}
	if err != nil {
		log.Printf("✗ No answer from reviewer: %v", err)
		return rejection(defaultRejectionFeedback, false)
	}

	token := strings.ToLower(strings.TrimSpace(answer))
	switch {
	case yesTokens[token]:
		return ApprovalDecision{Verdict: Accepted, Draft: draft}
	case noTokens[token]:
		fmt.Fprint(g.out, "What should change? ")
		feedback, err := g.readLine()
		if err != nil {
			debugLog("reading rejection feedback: %v", err)
		}
		return rejection(feedback, false)
	default:
		return rejection(answer, true)
	}
}

func interrupted(err error) ApprovalDecision {
	log.Printf("✗ Approval interrupted: %v", err)
	return rejection(approvalInterruptedFeedback, false)
}

func rejection(feedback string, implicit bool) ApprovalDecision {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		feedback = defaultRejectionFeedback
	}
	return ApprovalDecision{Verdict: Rejected, Feedback: feedback, Implicit: implicit}
}

// readLine returns one line without its terminator; a final unterminated line is still returned
func (g *ApprovalGate) readLine() (string, error) {
	line, err := g.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var (
	panelTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	panelLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#888888"))
	panelBox   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func renderApprovalPanel(draft Draft, sess *Session) string {
	header := fmt.Sprintf("POST FOR %s", strings.ToUpper(string(draft.Platform)))
	if sess != nil && sess.CurrentContentReview != nil {
		header += fmt.Sprintf(" · engagement %d/10", sess.CurrentContentReview.EngagementScore)
	}

	sections := []string{panelTitle.Render(header), "", draft.FullText()}
	add := func(label, body string) {
		if body == "" {
			return
		}
		sections = append(sections, "", panelLabel.Render(label), body)
	}

	add("Image", draft.ImageURL)
	if sess != nil {
		add("Video", sess.CurrentVideoURL)
		// a zero realism score means the review was skipped after a technical error
		if q := sess.CurrentQualityReview; q != nil && q.RealismScore > 0 {
			add("Video quality", fmt.Sprintf("%s (realism %d/10, adherence %d/10)\n%s",
				strings.ToUpper(verdictLabel(q.Approved)), q.RealismScore, q.AdherenceScore, q.Verdict))
		}
		if r := sess.CurrentContentReview; r != nil && len(r.ChangesSummary) > 0 {
			add("Revisions", "- "+strings.Join(r.ChangesSummary, "\n- "))
		}
		if c := sess.CurrentVideoConcept; c != nil {
			add("Video concept", c.Summary())
		}
	}

	return panelBox.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// AutoApprover accepts every draft; used for dry runs
type AutoApprover struct{}

func (AutoApprover) RequestApproval(ctx context.Context, draft Draft, sess *Session) ApprovalDecision {
	log.Printf("[DRY RUN] Auto-approving %s draft (%d chars)", draft.Platform, len(draft.FullText()))
	return ApprovalDecision{Verdict: Accepted, Draft: draft}
}
