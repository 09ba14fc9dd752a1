package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/makeitmeme/internal/api"
	"github.com/mcoot/makeitmeme/internal/cli"
	"github.com/mcoot/makeitmeme/internal/factory"
	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/testutil"
)

// cliRunner executes mimctl commands in-process against a test server
type cliRunner struct {
	serverURL string
	tokenFile string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()
	return &cliRunner{
		serverURL: serverURL,
		tokenFile: filepath.Join(t.TempDir(), "token"),
	}
}

func (r *cliRunner) args(args []string) []string {
	return append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)
}

func (r *cliRunner) run(args ...string) (string, error) {
	return r.runContext(context.Background(), &bytes.Buffer{}, args...)
}

// outputBuffer collects a command's output
type outputBuffer interface {
	io.Writer
	String() string
}

func (r *cliRunner) runContext(ctx context.Context, out outputBuffer, args ...string) (string, error) {
	cmd := cli.NewRootCmd()
	cmd.SetArgs(r.args(args))
	cmd.SetOut(out)
	cmd.SetErr(out)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// syncBuffer is a bytes.Buffer safe for a streaming command and the test to share
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testServer struct {
	app *factory.TestApp
	url string
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	router := api.NewRouter(api.RouterConfig{
		Logger:            testutil.NopLogger(),
		AuthService:       app.AuthService,
		SessionController: app.SessionController,
		TemplatePool:      app.Templates,
		Realtime:          app.Realtime,
		WSServer:          app.WSServer,
		PublicURL:         "https://meme.example",
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	t.Cleanup(func() { _ = app.Close() })

	return &testServer{app: app, url: server.URL}
}

func decode[T any](t *testing.T, output string) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal([]byte(output), &out), output)
	return out
}

func createPlayer(t *testing.T, runner *cliRunner, nickname string) cli.AuthResult {
	t.Helper()
	output, err := runner.run("player", "create", "--nickname", nickname)
	require.NoError(t, err, "output: %s", output)
	return decode[cli.AuthResult](t, output)
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	runner := newCLIRunner(t, ts.url)

	output, err := runner.run("health")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, "ok", decode[cli.HealthResult](t, output).Status)
}

func TestCLI_PlayerCommands(t *testing.T) {
	ts := startTestServer(t)
	runner := newCLIRunner(t, ts.url)

	auth := createPlayer(t, runner, "Alice")
	assert.Equal(t, "Alice", auth.Player.Nickname)
	assert.True(t, auth.Player.IsGuest)
	assert.NotEmpty(t, auth.SessionToken)

	// The token is saved to the token file
	saved, err := os.ReadFile(runner.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, auth.SessionToken, string(saved))

	output, err := runner.run("player", "me")
	require.NoError(t, err, "output: %s", output)
	me := decode[cli.Player](t, output)
	assert.Equal(t, auth.Player.ID, me.ID)
	assert.Equal(t, "Alice", me.Nickname)

	output, err = runner.run("player", "logout")
	require.NoError(t, err, "output: %s", output)
	_, err = os.Stat(runner.tokenFile)
	assert.True(t, os.IsNotExist(err))

	_, err = runner.run("player", "me")
	assert.Error(t, err)
}

func TestCLI_RegisterAndLogin(t *testing.T) {
	ts := startTestServer(t)
	runner := newCLIRunner(t, ts.url)

	output, err := runner.run("player", "register", "--user", "admin", "--pass", "password123", "--nickname", "Boss")
	require.NoError(t, err, "output: %s", output)
	registered := decode[cli.AuthResult](t, output)
	assert.False(t, registered.Player.IsGuest)
	assert.True(t, registered.IsAdmin)

	output, err = runner.run("player", "login", "--user", "admin", "--pass", "password123")
	require.NoError(t, err, "output: %s", output)
	login := decode[cli.AuthResult](t, output)
	assert.Equal(t, registered.Player.ID, login.Player.ID)

	output, err = runner.run("templates", "refresh")
	require.NoError(t, err, "output: %s", output)
	assert.Len(t, decode[[]cli.Template](t, output), 12)

	_, err = runner.run("player", "login", "--user", "admin", "--pass", "wrongpassword")
	assert.Error(t, err)
}

func TestCLI_SessionCommands(t *testing.T) {
	ts := startTestServer(t)
	alice := newCLIRunner(t, ts.url)
	bob := newCLIRunner(t, ts.url)
	createPlayer(t, alice, "Alice")
	createPlayer(t, bob, "Bob")

	ts.app.MockRandom.QueueString("ABC123")
	output, err := alice.run("session", "create")
	require.NoError(t, err, "output: %s", output)
	session := decode[cli.Session](t, output)
	assert.Equal(t, "ABC123", session.Code)
	assert.Equal(t, "waiting", session.Status)

	output, err = bob.run("session", "join", "abc123")
	require.NoError(t, err, "output: %s", output)
	assert.Len(t, decode[cli.Session](t, output).PlayerIDs, 2)

	output, err = bob.run("session", "get", "ABC123")
	require.NoError(t, err, "output: %s", output)
	snap := decode[cli.Snapshot](t, output)
	assert.Equal(t, 2, snap.PlayerCount)
	assert.False(t, snap.CanStart)

	// Only the creator may start
	_, err = bob.run("session", "start", "ABC123")
	assert.Error(t, err)

	output, err = bob.run("session", "leave", "ABC123")
	require.NoError(t, err, "output: %s", output)
	assert.Contains(t, decode[map[string]string](t, output)["message"], "Left session ABC123")

	output, err = alice.run("session", "status", "ABC123")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, 1, decode[cli.Snapshot](t, output).PlayerCount)

	qrFile := filepath.Join(t.TempDir(), "join.png")
	output, err = alice.run("session", "qr", "ABC123", "--out", qrFile)
	require.NoError(t, err, "output: %s", output)
	png, err := os.ReadFile(qrFile)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestCLI_FullGameFlow(t *testing.T) {
	ts := startTestServer(t)
	alice := newCLIRunner(t, ts.url)
	bob := newCLIRunner(t, ts.url)
	aliceAuth := createPlayer(t, alice, "Alice")
	createPlayer(t, bob, "Bob")
	players := []*cliRunner{alice, bob}

	ts.app.MockRandom.QueueString("GAME01")
	_, err := alice.run("session", "create")
	require.NoError(t, err)
	_, err = bob.run("session", "join", "GAME01")
	require.NoError(t, err)

	output, err := alice.run("session", "start", "GAME01")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, "started", decode[cli.Session](t, output).Status)

	for round := 1; round <= 3; round++ {
		for _, p := range players {
			output, err = p.run("round", "submissions", "GAME01")
			require.NoError(t, err, "output: %s", output)
			subs := decode[[]cli.Submission](t, output)
			require.NotEmpty(t, subs)

			output, err = p.run("round", "submit", "GAME01", subs[0].ID, "--text", "top text", "--text", "bottom text")
			require.NoError(t, err, "output: %s", output)
			assert.True(t, decode[cli.Submission](t, output).Selected)
		}

		output, err = alice.run("session", "status", "GAME01")
		require.NoError(t, err, "output: %s", output)
		assert.Equal(t, "voting", decode[cli.Snapshot](t, output).Phase)

		output, err = alice.run("round", "entries", "GAME01", strconv.Itoa(round))
		require.NoError(t, err, "output: %s", output)
		entries := decode[[]cli.Entry](t, output)
		require.Len(t, entries, 2)

		for _, e := range entries {
			voter := alice
			if e.Submission.PlayerID == aliceAuth.Player.ID {
				voter = bob
			}
			output, err = voter.run("round", "vote", "GAME01", e.Submission.ID, "hilarious")
			require.NoError(t, err, "output: %s", output)
			assert.Equal(t, 10, decode[cli.Vote](t, output).Points)
		}

		_, err = alice.run("session", "advance", "GAME01")
		require.NoError(t, err)
	}

	output, err = bob.run("round", "podium", "GAME01")
	require.NoError(t, err, "output: %s", output)
	podium := decode[[]cli.PodiumEntry](t, output)
	require.Len(t, podium, 6)
	assert.Equal(t, 1, podium[0].Rank)
	assert.Equal(t, 10, podium[0].Submission.TotalPoints)

	_, err = alice.run("session", "archive", "GAME01")
	require.NoError(t, err)
}

func TestCLI_EventsStream(t *testing.T) {
	ts := startTestServer(t)
	alice := newCLIRunner(t, ts.url)
	bob := newCLIRunner(t, ts.url)
	aliceAuth := createPlayer(t, alice, "Alice")
	createPlayer(t, bob, "Bob")

	ts.app.MockRandom.QueueString("EVT001")
	_, err := alice.run("session", "create")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		_, err := bob.runContext(ctx, out, "events", "EVT001")
		done <- err
	}()

	// Bob is not a member yet
	require.Error(t, <-done)

	_, err = bob.run("session", "join", "EVT001")
	require.NoError(t, err)

	go func() {
		_, err := bob.runContext(ctx, out, "events", "EVT001", "--json")
		done <- err
	}()

	// The stream is subscribed once the connected event has been received
	require.Eventually(t, func() bool {
		hub := ts.app.Realtime.GetHub("EVT001")
		return hub != nil && hub.ClientCount() > 0
	}, 5*time.Second, 10*time.Millisecond)

	// Commands share process state, so the game is started directly while the stream runs
	_, err = ts.app.SessionController.StartSession(context.Background(), "EVT001", model.PlayerID(aliceAuth.Player.ID))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"event":"game_started"`)
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("events command did not stop")
	}
}
