package whatsapp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal-ease-backend/internal/extract"
	"legal-ease-backend/internal/extract/extracttest"
	"legal-ease-backend/internal/llm"
	"legal-ease-backend/internal/orchestrator"
	"legal-ease-backend/internal/ratelimit"
	"legal-ease-backend/internal/session"
)

const user = "whatsapp:+15550001"

type outbox struct {
	mu   sync.Mutex
	sent []string
}

func (o *outbox) Send(_ context.Context, to, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, to+"|"+body)
	return nil
}

func (o *outbox) bodies() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.sent))
	for _, s := range o.sent {
		out = append(out, s[strings.Index(s, "|")+1:])
	}
	return out
}

type staticMedia struct {
	data []byte
	err  error
}

func (s staticMedia) Fetch(context.Context, string) ([]byte, error) { return s.data, s.err }

type counts struct {
	mu sync.Mutex
	m  map[string]int
}

func (c *counts) IncWhatsApp(direction, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string]int{}
	}
	c.m[direction+":"+status]++
}

var leasePDF = extracttest.PDF(
	"RESIDENTIAL LEASE AGREEMENT\nThis lease is made between Landlord and Tenant.",
	"The monthly rent is $1,200, due on the first day of each month.",
)

func newBot(media MediaFetcher, policy ratelimit.Policy) (*Bot, *outbox, *counts) {
	svc := orchestrator.NewService(orchestrator.Deps{
		Sessions:  session.NewStore(session.Config{TTL: time.Hour}),
		Limiter:   ratelimit.New(ratelimit.Config{Policy: policy}),
		Extractor: extract.NewPDFExtractor(),
		AI:        llm.MockClient{},
	})
	out := &outbox{}
	c := &counts{}
	return &Bot{Svc: svc, Sender: out, Media: media, Metrics: c, Timeout: 5 * time.Second}, out, c
}

func pdfMessage() Message {
	return Message{From: user, NumMedia: 1, MediaURL: "https://api.twilio.com/media/1", MediaContentType: "application/pdf"}
}

func TestBotUploadThenAsk(t *testing.T) {
	bot, out, c := newBot(staticMedia{data: leasePDF}, nil)
	ctx := context.Background()

	bot.Handle(ctx, pdfMessage())
	bot.Handle(ctx, Message{From: user, Body: "What is the monthly rent?"})

	bodies := out.bodies()
	require.Len(t, bodies, 3)
	assert.Equal(t, analyzingText, bodies[0])
	assert.Contains(t, bodies[1], "📄 *Document Analysis: your document*")
	assert.Contains(t, bodies[2], "$1,200")
	assert.Contains(t, bodies[2], "❓ *Your Question:*\nWhat is the monthly rent?")

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, 1, c.m["inbound:upload"])
	assert.Equal(t, 1, c.m["inbound:ask"])
	assert.Equal(t, 3, c.m["outbound:sent"])
}

func TestBotQuestionWithoutDocument(t *testing.T) {
	bot, out, _ := newBot(staticMedia{}, nil)
	bot.Handle(context.Background(), Message{From: user, Body: "What is the rent?"})
	assert.Equal(t, []string{noDocumentText}, out.bodies())
}

func TestBotCommands(t *testing.T) {
	bot, out, _ := newBot(staticMedia{}, nil)
	ctx := context.Background()
	bot.Handle(ctx, Message{From: user, Body: "help"})
	bot.Handle(ctx, Message{From: user, Body: ""})
	bot.Handle(ctx, Message{From: user, Body: "reset"})
	bot.Handle(ctx, Message{From: user, NumMedia: 1, MediaURL: "https://m/1", MediaContentType: "image/png"})

	assert.Equal(t, []string{helpText, welcomeText, resetText, unsupportedText}, out.bodies())
}

func TestBotMediaFailure(t *testing.T) {
	bot, out, _ := newBot(staticMedia{err: ErrMediaUnavailable}, nil)
	bot.Handle(context.Background(), pdfMessage())

	bodies := out.bodies()
	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[1], downloadFailed)
}

func TestBotNonPDFBytesAreRejected(t *testing.T) {
	bot, out, _ := newBot(staticMedia{data: []byte("not a pdf at all")}, nil)
	bot.Handle(context.Background(), pdfMessage())

	bodies := out.bodies()
	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[1], "❌ *Oops! Something went wrong*")
}

func TestBotChannelCeiling(t *testing.T) {
	policy := ratelimit.Policy{ratelimit.ChannelScope(string(orchestrator.ChannelWhatsApp)): {Limit: 1, Window: 5 * time.Minute}}
	bot, out, _ := newBot(staticMedia{}, policy)
	ctx := context.Background()

	bot.Handle(ctx, Message{From: user, Body: "reset"})
	bot.Handle(ctx, Message{From: user, Body: "What is the rent?"})

	bodies := out.bodies()
	require.Len(t, bodies, 2)
	assert.Equal(t, resetText, bodies[0])
	assert.Contains(t, bodies[1], "too quickly")
}

type failingSender struct{}

func (failingSender) Send(context.Context, string, string) error { return errors.New("twilio down") }

func TestBotCountsSendFailures(t *testing.T) {
	bot, _, c := newBot(staticMedia{}, nil)
	bot.Sender = failingSender{}
	bot.Handle(context.Background(), Message{From: user, Body: "help"})

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, 1, c.m["outbound:failed"])
}

type stalledAI struct{}

func (stalledAI) Analyze(ctx context.Context, _ llm.AnalyzeInput) (llm.Analysis, error) {
	<-ctx.Done()
	return llm.Analysis{}, ctx.Err()
}

func (stalledAI) Answer(ctx context.Context, _ llm.AnswerInput) (llm.Answer, error) {
	<-ctx.Done()
	return llm.Answer{}, ctx.Err()
}

// deadlineOutbox refuses sends on a finished context, like the Twilio client.
type deadlineOutbox struct {
	outbox
	dropped int
}

func (o *deadlineOutbox) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		o.mu.Lock()
		o.dropped++
		o.mu.Unlock()
		return err
	}
	return o.outbox.Send(ctx, to, body)
}

func TestBotReportsFailureAfterAnalysisTimeout(t *testing.T) {
	bot, _, _ := newBot(staticMedia{data: leasePDF}, nil)
	bot.Svc = orchestrator.NewService(orchestrator.Deps{
		Sessions:  session.NewStore(session.Config{TTL: time.Hour}),
		Extractor: extract.NewPDFExtractor(),
		AI:        stalledAI{},
	})
	out := &deadlineOutbox{}
	bot.Sender = out
	bot.Timeout = 100 * time.Millisecond

	bot.Handle(context.Background(), pdfMessage())

	bodies := out.bodies()
	require.Len(t, bodies, 2)
	assert.Equal(t, analyzingText, bodies[0])
	assert.Contains(t, bodies[1], "❌ *Oops! Something went wrong*")
	assert.Zero(t, out.dropped)
}

type recordingQueue struct {
	msgs []Message
	err  error
}

func (q *recordingQueue) Submit(m Message) error {
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, m)
	return nil
}

func webhookRouter(q Submitter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(q).RegisterRoutes(r.Group("/webhook"))
	return r
}

func postForm(r *gin.Engine, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestWebhookQueuesMessage(t *testing.T) {
	q := &recordingQueue{}
	r := webhookRouter(q)

	resp := postForm(r, url.Values{
		"From":              {user},
		"Body":              {""},
		"NumMedia":          {"1"},
		"MediaUrl0":         {"https://api.twilio.com/media/1"},
		"MediaContentType0": {"application/pdf"},
	})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"accepted"}`, resp.Body.String())
	require.Len(t, q.msgs, 1)
	assert.Equal(t, KindUpload, Classify(q.msgs[0]))
	assert.Equal(t, 1, q.msgs[0].NumMedia)
}

func TestWebhookRequiresFrom(t *testing.T) {
	r := webhookRouter(&recordingQueue{})
	resp := postForm(r, url.Values{"Body": {"hi"}})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestWebhookQueueFull(t *testing.T) {
	r := webhookRouter(&recordingQueue{err: ErrQueueFull})
	resp := postForm(r, url.Values{"From": {user}, "Body": {"hi"}})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, "5", resp.Header().Get("Retry-After"))
}

func TestWebhookReachability(t *testing.T) {
	r := webhookRouter(&recordingQueue{})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/webhook/whatsapp", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}
