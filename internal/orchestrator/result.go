package orchestrator

import (
	"fmt"
	"math"
	"time"

	"legal-ease-backend/internal/llm"
)

// Outcome is the stable name of a result variant, used in logs, metrics and the ledger.
type Outcome string

const (
	OutcomeAnalysisReady    Outcome = "analysis_ready"
	OutcomeExtractionFailed Outcome = "extraction_failed"
	OutcomeAnalysisFailed   Outcome = "analysis_failed"
	OutcomeSuperseded       Outcome = "superseded"
	OutcomeQAAnswered       Outcome = "qa_answered"
	OutcomeStillProcessing  Outcome = "still_processing"
	OutcomeNoActiveDocument Outcome = "no_active_document"
	OutcomeQAFailed         Outcome = "qa_failed"
	OutcomeRateLimited      Outcome = "rate_limited"
	OutcomeInvalidInput     Outcome = "invalid_input"
	OutcomeReset            Outcome = "reset"
)

// Input rejection codes carried by InvalidInput.
const (
	CodeInvalidFile     = "invalid_file"
	CodeFileTooLarge    = "file_too_large"
	CodeInvalidQuestion = "invalid_question"
)

// Result is the closed set of orchestrator outcomes. Only types in this
// package implement it; adapters consume it through Render.
type Result interface {
	Outcome() Outcome
	result()
}

// AnalysisReady reports a completed analysis for the uploaded document.
type AnalysisReady struct {
	Analysis   llm.Analysis
	Filename   string
	PageCount  int
	TextLength int
}

// ExtractionFailed reports that no usable text could be read from the upload.
type ExtractionFailed struct {
	Reason string
}

// AnalysisFailed reports that the AI backend could not analyze the document.
type AnalysisFailed struct {
	Reason string
}

// Superseded reports that a newer upload replaced this one before it finished.
type Superseded struct{}

// Exchange is one answered question.
type Exchange struct {
	Question      string         `json:"question"`
	Answer        string         `json:"answer"`
	SourceExcerpt string         `json:"sourceExcerpt,omitempty"`
	Confidence    llm.Confidence `json:"confidence"`
}

// QAAnswered carries an answer grounded in the session's document.
type QAAnswered struct {
	Exchange Exchange
}

// StillProcessing reports that the owner's document is still being analyzed.
type StillProcessing struct{}

// NoActiveDocument reports that the owner has no ready document to ask about.
type NoActiveDocument struct{}

// QAFailed reports that the AI backend could not answer. The session is unaffected.
type QAFailed struct {
	Reason string
}

// RateLimited reports a denied admission.
type RateLimited struct {
	RetryAfter time.Duration
	Scope      string
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below one.
func (r RateLimited) RetryAfterSeconds() int {
	secs := int(math.Ceil(r.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// InvalidInput reports a request rejected before any state was touched.
type InvalidInput struct {
	Code   string
	Reason string
}

// Reset acknowledges a reset request.
type Reset struct {
	HadSession bool
}

func (AnalysisReady) Outcome() Outcome    { return OutcomeAnalysisReady }
func (ExtractionFailed) Outcome() Outcome { return OutcomeExtractionFailed }
func (AnalysisFailed) Outcome() Outcome   { return OutcomeAnalysisFailed }
func (Superseded) Outcome() Outcome       { return OutcomeSuperseded }
func (QAAnswered) Outcome() Outcome       { return OutcomeQAAnswered }
func (StillProcessing) Outcome() Outcome  { return OutcomeStillProcessing }
func (NoActiveDocument) Outcome() Outcome { return OutcomeNoActiveDocument }
func (QAFailed) Outcome() Outcome         { return OutcomeQAFailed }
func (RateLimited) Outcome() Outcome      { return OutcomeRateLimited }
func (InvalidInput) Outcome() Outcome     { return OutcomeInvalidInput }
func (Reset) Outcome() Outcome            { return OutcomeReset }

func (AnalysisReady) result()    {}
func (ExtractionFailed) result() {}
func (AnalysisFailed) result()   {}
func (Superseded) result()       {}
func (QAAnswered) result()       {}
func (StillProcessing) result()  {}
func (NoActiveDocument) result() {}
func (QAFailed) result()         {}
func (RateLimited) result()      {}
func (InvalidInput) result()     {}
func (Reset) result()            {}

// Renderer turns each outcome into a channel-specific reply. Adding a variant
// to Result breaks every Renderer until it handles the new case.
type Renderer[T any] interface {
	AnalysisReady(AnalysisReady) T
	ExtractionFailed(ExtractionFailed) T
	AnalysisFailed(AnalysisFailed) T
	Superseded(Superseded) T
	QAAnswered(QAAnswered) T
	StillProcessing(StillProcessing) T
	NoActiveDocument(NoActiveDocument) T
	QAFailed(QAFailed) T
	RateLimited(RateLimited) T
	InvalidInput(InvalidInput) T
	Reset(Reset) T
}

// Render dispatches res to the matching Renderer method.
func Render[T any](r Renderer[T], res Result) T {
	switch v := res.(type) {
	case AnalysisReady:
		return r.AnalysisReady(v)
	case ExtractionFailed:
		return r.ExtractionFailed(v)
	case AnalysisFailed:
		return r.AnalysisFailed(v)
	case Superseded:
		return r.Superseded(v)
	case QAAnswered:
		return r.QAAnswered(v)
	case StillProcessing:
		return r.StillProcessing(v)
	case NoActiveDocument:
		return r.NoActiveDocument(v)
	case QAFailed:
		return r.QAFailed(v)
	case RateLimited:
		return r.RateLimited(v)
	case InvalidInput:
		return r.InvalidInput(v)
	case Reset:
		return r.Reset(v)
	default:
		panic(fmt.Sprintf("orchestrator: unhandled result %T", res))
	}
}
