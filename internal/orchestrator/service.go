package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"legal-ease-backend/internal/extract"
	"legal-ease-backend/internal/llm"
	"legal-ease-backend/internal/ratelimit"
	"legal-ease-backend/internal/session"
	"legal-ease-backend/internal/shared/telemetry"
	"legal-ease-backend/internal/shared/util"
	"legal-ease-backend/internal/usage"
)

// Channel identifies the adapter a request arrived through.
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelCLI      Channel = "cli"
)

// Action names an orchestrator operation.
type Action string

const (
	ActionUpload Action = "upload"
	ActionAsk    Action = "ask"
	ActionReset  Action = "reset"
)

// Extractor turns PDF bytes into text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (extract.Document, error)
}

// Admitter makes all-or-nothing admission decisions across scopes.
type Admitter interface {
	AdmitAll(owner string, scopes ...ratelimit.Scope) ratelimit.Decision
}

// Recorder stores activity events.
type Recorder interface {
	Record(ctx context.Context, e usage.Event) (usage.Event, error)
}

// Observer records outcome metrics.
type Observer interface {
	ObserveOutcome(action, outcome string, elapsed time.Duration)
}

// Config holds static limits read at startup.
type Config struct {
	MaxFileSize       int64
	MaxQuestionLength int
}

// Deps wires the orchestrator's collaborators. Usage and Metrics are optional.
type Deps struct {
	Sessions  *session.Store
	Limiter   Admitter
	Extractor Extractor
	AI        llm.Client
	Usage     Recorder
	Metrics   Observer
	Config    Config
	Now       func() time.Time
}

// Service drives the document-session state machine.
type Service struct {
	sessions  *session.Store
	limiter   Admitter
	extractor Extractor
	ai        llm.Client
	usage     Recorder
	metrics   Observer
	cfg       Config
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(d Deps) *Service {
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	cfg := d.Config
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 << 20
	}
	if cfg.MaxQuestionLength <= 0 {
		cfg.MaxQuestionLength = 1000
	}
	return &Service{
		sessions:  d.Sessions,
		limiter:   d.Limiter,
		extractor: d.Extractor,
		ai:        d.AI,
		usage:     d.Usage,
		metrics:   d.Metrics,
		cfg:       cfg,
		now:       now,
	}
}

// UploadRequest carries a document submitted for analysis.
type UploadRequest struct {
	Owner    string
	Channel  Channel
	Filename string
	Data     []byte
}

// QuestionRequest carries a follow-up question.
type QuestionRequest struct {
	Owner    string
	Channel  Channel
	Question string
}

// ResetRequest asks to discard the owner's session.
type ResetRequest struct {
	Owner   string
	Channel Channel
}

// Upload admits, validates, reserves, extracts, analyzes and commits a document.
// The returned error is non-nil only when the session store is unusable.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (res Result, err error) {
	start := s.now()
	defer func() { s.finish(ctx, ActionUpload, req.Owner, req.Channel, start, res, err) }()

	if d := s.admit(req.Owner, ratelimit.ScopeUpload, req.Channel); !d.Allowed {
		return RateLimited{RetryAfter: d.RetryAfter, Scope: string(d.Scope)}, nil
	}

	filename := ""
	if strings.TrimSpace(req.Filename) != "" {
		name, nameErr := util.SanitizeFileName(req.Filename)
		if nameErr != nil {
			return InvalidInput{Code: CodeInvalidFile, Reason: "File name is invalid"}, nil
		}
		filename = name
	}
	if vErr := extract.ValidateUpload(req.Data, filename, s.cfg.MaxFileSize); vErr != nil {
		code := CodeInvalidFile
		if errors.Is(vErr, extract.ErrTooLarge) {
			code = CodeFileTooLarge
		}
		return InvalidInput{Code: code, Reason: sentence(vErr.Error())}, nil
	}

	reserved, err := s.sessions.CreateOrReplace(req.Owner, filename)
	if err != nil {
		return nil, err
	}
	token := reserved.Token

	doc, exErr := s.extractor.Extract(ctx, req.Data)
	if exErr != nil {
		reason := extractionReason(exErr)
		telemetry.Warn("orchestrator.extract_failed", map[string]any{
			"owner_hash": util.HashUserKey(req.Owner),
			"error":      exErr,
		})
		if superseded, storeErr := s.fail(req.Owner, token, reason); storeErr != nil {
			return nil, storeErr
		} else if superseded {
			return Superseded{}, nil
		}
		return ExtractionFailed{Reason: reason}, nil
	}

	if _, attachErr := s.sessions.AttachText(req.Owner, token, doc.Text, doc.PageCount); attachErr != nil {
		return s.commitFailure(attachErr)
	}

	analysis, aiErr := s.ai.Analyze(ctx, llm.AnalyzeInput{Text: doc.Text, Filename: filename})
	if aiErr != nil {
		reason := aiReason(aiErr, "The document could not be analyzed right now. Please try again.")
		telemetry.Error("orchestrator.analyze_failed", map[string]any{
			"owner_hash": util.HashUserKey(req.Owner),
			"error":      aiErr,
		})
		if superseded, storeErr := s.fail(req.Owner, token, reason); storeErr != nil {
			return nil, storeErr
		} else if superseded {
			return Superseded{}, nil
		}
		return AnalysisFailed{Reason: reason}, nil
	}

	if _, readyErr := s.sessions.MarkReady(req.Owner, token, analysis); readyErr != nil {
		return s.commitFailure(readyErr)
	}
	return AnalysisReady{
		Analysis:   analysis,
		Filename:   filename,
		PageCount:  doc.PageCount,
		TextLength: utf8.RuneCountInString(doc.Text),
	}, nil
}

// Ask answers a question against the owner's ready document.
func (s *Service) Ask(ctx context.Context, req QuestionRequest) (res Result, err error) {
	start := s.now()
	defer func() { s.finish(ctx, ActionAsk, req.Owner, req.Channel, start, res, err) }()

	if d := s.admit(req.Owner, ratelimit.ScopeQuestion, req.Channel); !d.Allowed {
		return RateLimited{RetryAfter: d.RetryAfter, Scope: string(d.Scope)}, nil
	}

	question, vErr := ValidateQuestion(req.Question, s.cfg.MaxQuestionLength)
	if vErr != nil {
		return InvalidInput{Code: CodeInvalidQuestion, Reason: sentence(vErr.Error())}, nil
	}

	sess, err := s.sessions.Get(req.Owner)
	if errors.Is(err, session.ErrSessionNotFound) {
		return NoActiveDocument{}, nil
	}
	if err != nil {
		return nil, err
	}
	switch sess.State {
	case session.StateAnalyzing:
		return StillProcessing{}, nil
	case session.StateReady:
	default:
		return NoActiveDocument{}, nil
	}

	answer, aiErr := s.ai.Answer(ctx, llm.AnswerInput{Text: sess.DocumentText, Question: question})
	if aiErr != nil {
		telemetry.Error("orchestrator.answer_failed", map[string]any{
			"owner_hash": util.HashUserKey(req.Owner),
			"error":      aiErr,
		})
		return QAFailed{Reason: aiReason(aiErr, "The question could not be answered right now. Please try again.")}, nil
	}
	return QAAnswered{Exchange: Exchange{
		Question:      question,
		Answer:        answer.Text,
		SourceExcerpt: answer.SourceExcerpt,
		Confidence:    answer.Confidence,
	}}, nil
}

// Reset discards the owner's session. It succeeds whether or not one existed.
func (s *Service) Reset(ctx context.Context, req ResetRequest) (res Result, err error) {
	start := s.now()
	defer func() { s.finish(ctx, ActionReset, req.Owner, req.Channel, start, res, err) }()

	if d := s.admit(req.Owner, "", req.Channel); !d.Allowed {
		return RateLimited{RetryAfter: d.RetryAfter, Scope: string(d.Scope)}, nil
	}
	existed, err := s.sessions.Clear(req.Owner)
	if err != nil {
		return nil, err
	}
	return Reset{HadSession: existed}, nil
}

// Describe returns the owner's live session, refreshing its lifetime.
func (s *Service) Describe(ctx context.Context, owner string) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}
	return s.sessions.Get(owner)
}

// Stats reports the session store contents.
func (s *Service) Stats() session.Stats {
	return s.sessions.Stats()
}

// admit checks the action class first and the channel ceiling second. A denied
// channel check hands the action slot back.
func (s *Service) admit(owner string, action ratelimit.Scope, channel Channel) ratelimit.Decision {
	if s.limiter == nil {
		return ratelimit.Decision{Allowed: true}
	}
	scopes := make([]ratelimit.Scope, 0, 2)
	if action != "" {
		scopes = append(scopes, action)
	}
	if channel != "" {
		scopes = append(scopes, ratelimit.ChannelScope(string(channel)))
	}
	return s.limiter.AdmitAll(owner, scopes...)
}

// fail marks the reservation failed. superseded is true when a newer upload or
// a reset already replaced it.
func (s *Service) fail(owner string, token session.Token, reason string) (superseded bool, err error) {
	_, err = s.sessions.MarkFailed(owner, token, reason)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrInvalidTransition):
		return true, nil
	default:
		return false, err
	}
}

func (s *Service) commitFailure(err error) (Result, error) {
	if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrInvalidTransition) {
		return Superseded{}, nil
	}
	return nil, err
}

func (s *Service) finish(ctx context.Context, action Action, owner string, channel Channel, start time.Time, res Result, err error) {
	elapsed := s.now().Sub(start)
	outcome := "store_error"
	if err == nil && res != nil {
		outcome = string(res.Outcome())
	}
	ownerHash := util.HashUserKey(owner)

	fields := map[string]any{
		"owner_hash":  ownerHash,
		"channel":     string(channel),
		"action":      string(action),
		"outcome":     outcome,
		"duration_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err
		telemetry.Error("orchestrator.outcome", fields)
	} else {
		telemetry.Info("orchestrator.outcome", fields)
	}

	if s.metrics != nil {
		s.metrics.ObserveOutcome(string(action), outcome, elapsed)
	}
	if s.usage != nil {
		if _, recErr := s.usage.Record(context.WithoutCancel(ctx), usage.Event{
			OwnerHash:  ownerHash,
			Channel:    string(channel),
			Action:     string(action),
			Outcome:    outcome,
			DurationMs: elapsed.Milliseconds(),
		}); recErr != nil {
			telemetry.Warn("usage.record_failed", map[string]any{"error": recErr, "action": string(action)})
		}
	}
}

func extractionReason(err error) string {
	switch {
	case errors.Is(err, extract.ErrNoText):
		return extract.ErrNoText.Error()
	case errors.Is(err, extract.ErrUnreadable):
		return "The PDF could not be read. It may be corrupted or password protected."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Text extraction was interrupted. Please try again."
	default:
		return "Failed to extract text from the PDF."
	}
}

func aiReason(err error, fallback string) string {
	if llm.IsCircuitOpen(err) {
		return "The analysis service is temporarily unavailable. Please try again in a minute."
	}
	return fallback
}

func sentence(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
