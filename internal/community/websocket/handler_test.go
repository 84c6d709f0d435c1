package websocket_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaWS "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garaad/community/internal/common/constants"
	"github.com/garaad/community/internal/common/jwtverify/jwtverifytest"
	"github.com/garaad/community/internal/common/logger"
	"github.com/garaad/community/internal/community/auth"
	"github.com/garaad/community/internal/community/group"
	"github.com/garaad/community/internal/community/websocket"
)

const testSecret = "community-test-secret-0123456789abcdef"

type testEnv struct {
	server   *httptest.Server
	registry *group.Registry
	issuer   *jwtverifytest.Issuer
}

type envConfig struct {
	policy     auth.Policy
	opts       websocket.Options
	maxMembers int
	origins    []string
}

func newTestEnv(t *testing.T, cfg envConfig) *testEnv {
	t.Helper()
	log := logger.NewWithWriter(io.Discard, "test", "error")

	registry := group.NewRegistry(group.NewMemoryTransport(), log, group.Options{MaxMembers: cfg.maxMembers})
	require.NoError(t, registry.Start(context.Background()))

	authenticator := auth.NewAuthenticator(testSecret, nil, nil, cfg.policy, log)

	opts := cfg.opts
	if opts == (websocket.Options{}) {
		opts = websocket.DefaultOptions()
	}
	handler := websocket.NewHandler(authenticator, registry, opts, cfg.origins, log)

	mux := http.NewServeMux()
	mux.Handle("/ws/community/", handler)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		_ = registry.Close()
		server.Close()
	})

	return &testEnv{
		server:   server,
		registry: registry,
		issuer:   jwtverifytest.NewIssuer(testSecret, time.Minute, nil),
	}
}

func (e *testEnv) url(path string) string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + path
}

func (e *testEnv) dial(t *testing.T, header http.Header) *gorillaWS.Conn {
	t.Helper()
	conn, resp, err := gorillaWS.DefaultDialer.Dial(e.url("/ws/community/"), header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (e *testEnv) waitMembers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.registry.Members(constants.CommunityGroup) == n
	}, 2*time.Second, 5*time.Millisecond)
}

func readText(t *testing.T, conn *gorillaWS.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestHandler_AnonymousEcho(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	conn := env.dial(t, nil)
	env.waitMembers(t, 1)

	msg := `{"type": "chat", "message":"hi"}`
	require.NoError(t, conn.WriteMessage(gorillaWS.TextMessage, []byte(msg)))

	assert.Equal(t, msg, readText(t, conn))
}

func TestHandler_BroadcastReachesEveryMember(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	header := http.Header{"Authorization": {"Bearer " + env.issuer.AccessToken("42", "amina")}}
	alice := env.dial(t, header)
	bob := env.dial(t, nil)
	env.waitMembers(t, 2)

	msg := `{"type":"chat","message":"salaan"}`
	require.NoError(t, bob.WriteMessage(gorillaWS.TextMessage, []byte(msg)))

	assert.Equal(t, msg, readText(t, alice))
	assert.Equal(t, msg, readText(t, bob))
}

func TestHandler_OrderPreservedPerSender(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	sender := env.dial(t, nil)
	receiver := env.dial(t, nil)
	env.waitMembers(t, 2)

	msgs := []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}
	for _, m := range msgs {
		require.NoError(t, sender.WriteMessage(gorillaWS.TextMessage, []byte(m)))
	}
	for _, m := range msgs {
		assert.Equal(t, m, readText(t, receiver))
	}
}

func TestHandler_DisconnectLeavesGroup(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	conn := env.dial(t, nil)
	other := env.dial(t, nil)
	env.waitMembers(t, 2)

	require.NoError(t, conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, "")))
	conn.Close()
	env.waitMembers(t, 1)

	require.NoError(t, other.WriteMessage(gorillaWS.TextMessage, []byte(`{"still":"here"}`)))
	assert.Equal(t, `{"still":"here"}`, readText(t, other))
}

func TestHandler_SkipsNonObjectFrames(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	conn := env.dial(t, nil)
	env.waitMembers(t, 1)

	for _, frame := range []string{`[1,2,3]`, `"text"`, `42`, `{not json`} {
		require.NoError(t, conn.WriteMessage(gorillaWS.TextMessage, []byte(frame)))
	}
	require.NoError(t, conn.WriteMessage(gorillaWS.TextMessage, []byte(`{"ok":true}`)))

	assert.Equal(t, `{"ok":true}`, readText(t, conn))
	assert.Equal(t, 1, env.registry.Members(constants.CommunityGroup))
}

func TestHandler_TokenInSubprotocol(t *testing.T) {
	env := newTestEnv(t, envConfig{policy: auth.Policy{RequireAuthentication: true}})
	dialer := *gorillaWS.DefaultDialer
	dialer.Subprotocols = []string{"bearer", env.issuer.AccessToken("42", "amina")}

	conn, resp, err := dialer.Dial(env.url("/ws/community/"), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	assert.Equal(t, "bearer", conn.Subprotocol())
}

func TestHandler_RejectsExpiredToken(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	expired := jwtverifytest.NewIssuer(testSecret, time.Minute, func() time.Time {
		return time.Now().Add(-time.Hour)
	}).AccessToken("42", "amina")

	_, resp, err := gorillaWS.DefaultDialer.Dial(env.url("/ws/community/"), http.Header{"Authorization": {"Bearer " + expired}})

	require.ErrorIs(t, err, gorillaWS.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, env.registry.Members(constants.CommunityGroup))
}

func TestHandler_StrictPolicyRejectsAnonymous(t *testing.T) {
	env := newTestEnv(t, envConfig{policy: auth.Policy{RequireAuthentication: true}})

	_, resp, err := gorillaWS.DefaultDialer.Dial(env.url("/ws/community/"), nil)

	require.ErrorIs(t, err, gorillaWS.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "authentication_required")
}

func TestHandler_JoinFailureRefusesUpgrade(t *testing.T) {
	env := newTestEnv(t, envConfig{maxMembers: 1})
	env.dial(t, nil)
	env.waitMembers(t, 1)

	_, resp, err := gorillaWS.DefaultDialer.Dial(env.url("/ws/community/"), nil)

	require.ErrorIs(t, err, gorillaWS.ErrBadHandshake)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 1, env.registry.Members(constants.CommunityGroup))
}

func TestHandler_ForeignOriginLeavesNoMember(t *testing.T) {
	env := newTestEnv(t, envConfig{origins: []string{"https://app.garaad.org"}})

	_, resp, err := gorillaWS.DefaultDialer.Dial(env.url("/ws/community/"), http.Header{"Origin": {"https://evil.example"}})
	require.ErrorIs(t, err, gorillaWS.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, env.registry.Members(constants.CommunityGroup))

	conn, _, err := gorillaWS.DefaultDialer.Dial(env.url("/ws/community/"), http.Header{"Origin": {"https://app.garaad.org"}})
	require.NoError(t, err)
	conn.Close()
}

func TestHandler_PlainRequestIsBadRequest(t *testing.T) {
	env := newTestEnv(t, envConfig{})

	resp, err := http.Get(env.server.URL + "/ws/community/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, env.registry.Members(constants.CommunityGroup))
}

func TestHandler_RegistryCloseDisconnectsClients(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	conn := env.dial(t, nil)
	env.waitMembers(t, 1)

	require.NoError(t, env.registry.Close())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, gorillaWS.IsCloseError(err, gorillaWS.CloseGoingAway))
}
