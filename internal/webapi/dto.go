package webapi

import (
	"time"

	"legal-ease-backend/internal/llm"
	"legal-ease-backend/internal/orchestrator"
	"legal-ease-backend/internal/session"
)

type analysisBody struct {
	Summary            string   `json:"summary"`
	KeyPoints          []string `json:"keyPoints"`
	Warnings           []string `json:"warnings"`
	SuggestedQuestions []string `json:"suggestedQuestions"`
}

func newAnalysisBody(a llm.Analysis) analysisBody {
	return analysisBody{
		Summary:            a.Summary,
		KeyPoints:          nonNil(a.KeyPoints),
		Warnings:           nonNil(a.Warnings),
		SuggestedQuestions: nonNil(a.SuggestedQuestions),
	}
}

type documentMetadata struct {
	PageCount  int `json:"pageCount"`
	TextLength int `json:"textLength"`
}

type analyzeResponse struct {
	Success   bool             `json:"success"`
	SessionID string           `json:"sessionId"`
	Filename  string           `json:"filename"`
	Analysis  analysisBody     `json:"analysis"`
	Metadata  documentMetadata `json:"metadata"`
}

type questionResponse struct {
	Success bool `json:"success"`
	orchestrator.Exchange
}

type resetResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	HadSession bool   `json:"hadSession"`
}

type sessionResponse struct {
	SessionID     string        `json:"sessionId"`
	State         session.State `json:"state"`
	Filename      string        `json:"filename,omitempty"`
	PageCount     int           `json:"pageCount,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	ExpiresAt     time.Time     `json:"expiresAt"`
	FailureReason string        `json:"failureReason,omitempty"`
	Analysis      *analysisBody `json:"analysis,omitempty"`
}

func toSessionResponse(id string, s session.Session) sessionResponse {
	resp := sessionResponse{
		SessionID:     id,
		State:         s.State,
		Filename:      s.Filename,
		PageCount:     s.PageCount,
		CreatedAt:     s.CreatedAt,
		ExpiresAt:     s.ExpiresAt,
		FailureReason: s.FailureReason,
	}
	if s.State == session.StateReady && s.Analysis != nil {
		body := newAnalysisBody(*s.Analysis)
		resp.Analysis = &body
	}
	return resp
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
