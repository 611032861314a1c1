package httpserver

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"interview-lab/auth"
	"interview-lab/domain/event"
	"interview-lab/domain/script"
	"interview-lab/interview"
	"interview-lab/llm"
	"interview-lab/moderation"
	"interview-lab/observability"
	"interview-lab/repositories"
	"interview-lab/search"
	"interview-lab/services"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testReply = "Thanks. What does a typical week look like for you?"

type testStack struct {
	router  *gin.Engine
	invites services.IInviteService
}

type dropPublisher struct{}

func (dropPublisher) Publish(event.DomainEvent) {}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	req := require.New(t)
	gin.SetMode(gin.TestMode)
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)
	t.Cleanup(func() { _ = writer.Close() })

	sc := script.Script{
		SessionID:    "sess-1",
		BasePrompt:   "You are a friendly research interviewer.",
		LimitMinutes: 30,
		Model:        "gpt-4o-mini",
		Questions: []script.Question{
			{Topic: "daily tools", Prompt: "Which tools do you use every day?"},
		},
	}
	scripts := script.StaticSource{sc.SessionID: sc}

	participants := repositories.NewParticipantRepository(db)
	turns := repositories.NewTurnRepository(db, log)
	redactor, err := moderation.NewRedactor(nil, '*', log)
	req.NoError(err)

	events := dropPublisher{}
	monitor := observability.NewMonitoring()
	lifecycle := interview.NewLifecycle(participants, events, log)

	composer := interview.NewComposer(
		log,
		interview.NewGate(participants),
		lifecycle,
		interview.NewTimeBoxGuard(),
		participants,
		turns,
		llm.NewMockProvider(testReply),
		scripts,
		redactor,
		interview.NewPromptBuilder(0, log),
		events,
		monitor,
		8,
	)

	tokens := auth.NewTokenManager("a-test-signing-secret", time.Hour)
	auths := services.NewAuthService(repositories.NewOperatorRepository(db), tokens)
	_, err = auths.Bootstrap("ops@example.com", "ComplexPass123!")
	req.NoError(err)

	invites := services.NewInviteService(participants, scripts, log)
	interviews := services.NewInterviewService(composer, lifecycle, participants, turns, log)
	index := search.NewTranscriptIndex(writer, log)

	server := NewServer(log, interviews, auths, invites, index, monitor, tokens, ":0")
	return &testStack{router: server.Routes(), invites: invites}
}

func (ts *testStack) inviteToken(t *testing.T) string {
	t.Helper()
	p, err := ts.invites.Invite("sess-1")
	require.NoError(t, err)
	return p.Token
}

// closeNotifyRecorder adds the http.CloseNotifier method gin's c.Stream
// asserts on, which httptest.ResponseRecorder lacks.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func postJSON(router *gin.Engine, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(&closeNotifyRecorder{rec, make(chan bool, 1)}, req)
	return rec
}

func TestMessage_StreamsReply(t *testing.T) {
	req := require.New(t)
	ts := newTestStack(t)
	token := ts.inviteToken(t)

	rec := postJSON(ts.router, "/interviews/"+token+"/message", messageRequest{
		Messages: []llm.Message{{Role: "user", Content: "Maria"}},
	}, nil)

	req.Equal(http.StatusOK, rec.Code)
	req.Equal("Nice to meet you, Maria. "+testReply, rec.Body.String())
	req.Contains(rec.Header().Get("Content-Type"), "text/plain")
	req.NotEmpty(rec.Header().Get("X-Correlation-Id"))
}

func TestMessage_UnknownToken(t *testing.T) {
	req := require.New(t)
	ts := newTestStack(t)

	rec := postJSON(ts.router, "/interviews/not-a-token/message", messageRequest{
		Messages: []llm.Message{{Role: "user", Content: "hello"}},
	}, nil)

	req.Equal(http.StatusForbidden, rec.Code)
}

func TestMessage_EmptyBody(t *testing.T) {
	req := require.New(t)
	ts := newTestStack(t)
	token := ts.inviteToken(t)

	rec := postJSON(ts.router, "/interviews/"+token+"/message", gin.H{}, nil)
	req.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func TestComplete_ThenMessageIsGone(t *testing.T) {
	req := require.New(t)
	ts := newTestStack(t)
	token := ts.inviteToken(t)

	rec := postJSON(ts.router, "/interviews/"+token+"/complete", nil, nil)
	req.Equal(http.StatusOK, rec.Code)

	var body map[string]any
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	req.Equal("completed", body["status"])
	req.Equal("manual", body["reason"])

	// Repeating the call acknowledges the same terminal state.
	rec = postJSON(ts.router, "/interviews/"+token+"/complete", nil, nil)
	req.Equal(http.StatusOK, rec.Code)

	rec = postJSON(ts.router, "/interviews/"+token+"/message", messageRequest{
		Messages: []llm.Message{{Role: "user", Content: "one more thing"}},
	}, nil)
	req.Equal(http.StatusGone, rec.Code)
}

func TestOps_LoginAndInvite(t *testing.T) {
	req := require.New(t)
	ts := newTestStack(t)

	// Invite without a token is rejected.
	rec := postJSON(ts.router, "/ops/sessions/sess-1/participants", nil, nil)
	req.Equal(http.StatusUnauthorized, rec.Code)

	rec = postJSON(ts.router, "/ops/login", auth.LoginRequest{
		Email:    "ops@example.com",
		Password: "ComplexPass123!",
	}, nil)
	req.Equal(http.StatusOK, rec.Code)

	var login map[string]string
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &login))
	req.NotEmpty(login["token"])

	headers := map[string]string{"Authorization": "Bearer " + login["token"]}
	rec = postJSON(ts.router, "/ops/sessions/sess-1/participants", nil, headers)
	req.Equal(http.StatusCreated, rec.Code)

	var invite map[string]any
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &invite))
	req.NotEmpty(invite["token"])
	req.Equal("sess-1", invite["session_id"])

	// Unknown session yields 404.
	rec = postJSON(ts.router, "/ops/sessions/sess-nope/participants", nil, headers)
	req.Equal(http.StatusNotFound, rec.Code)
}

func TestOps_Login_WrongPassword(t *testing.T) {
	req := require.New(t)
	ts := newTestStack(t)

	rec := postJSON(ts.router, "/ops/login", auth.LoginRequest{
		Email:    "ops@example.com",
		Password: "WrongPassword123!",
	}, nil)
	req.Equal(http.StatusUnauthorized, rec.Code)
}

func TestOps_Transcript(t *testing.T) {
	req := require.New(t)
	ts := newTestStack(t)

	login := postJSON(ts.router, "/ops/login", auth.LoginRequest{
		Email:    "ops@example.com",
		Password: "ComplexPass123!",
	}, nil)
	var loginBody map[string]string
	req.NoError(json.Unmarshal(login.Body.Bytes(), &loginBody))
	headers := map[string]string{"Authorization": "Bearer " + loginBody["token"]}

	var invite map[string]any
	rec := postJSON(ts.router, "/ops/sessions/sess-1/participants", nil, headers)
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &invite))
	pid := invite["participant_id"].(string)
	token := invite["token"].(string)

	// Fresh participant: empty transcript, not an error.
	rec = getWithAuth(ts.router, "/ops/participants/"+pid+"/transcript", headers)
	req.Equal(http.StatusOK, rec.Code)

	rec = postJSON(ts.router, "/interviews/"+token+"/message", messageRequest{
		Messages: []llm.Message{{Role: "user", Content: "Maria"}},
	}, nil)
	req.Equal(http.StatusOK, rec.Code)

	// The assistant turn is persisted off the response path, so poll.
	req.Eventually(func() bool {
		rec := getWithAuth(ts.router, "/ops/participants/"+pid+"/transcript", headers)
		if rec.Code != http.StatusOK {
			return false
		}
		var transcript struct {
			Turns []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"turns"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &transcript); err != nil {
			return false
		}
		return len(transcript.Turns) == 2 &&
			transcript.Turns[1].Content == "Nice to meet you, Maria. "+testReply
	}, 2*time.Second, 20*time.Millisecond)

	// Unknown participant id is rejected.
	rec = getWithAuth(ts.router, "/ops/participants/p-unknown/transcript", headers)
	req.Equal(http.StatusForbidden, rec.Code)
}

func getWithAuth(router *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	req := require.New(t)
	ts := newTestStack(t)

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	req.Equal(http.StatusOK, rec.Code)

	var body map[string]any
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	req.Equal("ok", body["status"])
}
