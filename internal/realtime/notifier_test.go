package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/testutil"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu        sync.Mutex
	published []published
	err       error
	subject   string
	handler   nats.MsgHandler
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{subject, data})
	return f.err
}

func (f *fakeConn) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	f.subject = subject
	f.handler = cb
	return &nats.Subscription{Subject: subject}, nil
}

type NotifierSuite struct {
	suite.Suite
	manager *Manager
	conn    *fakeConn
	ctx     context.Context
}

func TestNotifierSuite(t *testing.T) {
	suite.Run(t, new(NotifierSuite))
}

func (s *NotifierSuite) SetupTest() {
	s.manager = NewManager(testutil.NopLogger())
	s.conn = &fakeConn{}
	s.ctx = context.Background()
}

func (s *NotifierSuite) TearDownTest() {
	s.manager.RemoveHub("ABC123")
}

func (s *NotifierSuite) event() model.Event {
	return model.Event{
		Type:        model.EventRoundEnded,
		SessionCode: "ABC123",
		Round:       2,
		Timestamp:   testutil.Epoch,
		Payload:     model.RoundEndedPayload{SubmittedCount: 3, AllSubmitted: true},
	}
}

func (s *NotifierSuite) receive(client *Client) Message {
	select {
	case msg := <-client.Messages():
		return msg
	case <-time.After(time.Second):
		s.FailNow("no message delivered")
		return Message{}
	}
}

func (s *NotifierSuite) TestEncodeUsesSnakeCase() {
	message, err := Encode(s.event())
	s.Require().NoError(err)
	s.Equal("round_ended", message.Type)

	var body map[string]any
	s.Require().NoError(json.Unmarshal(message.Data, &body))
	s.Equal("ABC123", body["session_code"])
	s.Equal(float64(2), body["round"])
	s.NotContains(body, "player_id")
	s.Equal(map[string]any{"submitted_count": float64(3), "all_submitted": true}, body["payload"])
}

func (s *NotifierSuite) TestDecodeRejectsMalformed() {
	_, err := Decode([]byte(`not json`))
	s.Error(err)
	_, err = Decode([]byte(`{"type":"update","session_code":"bad"}`))
	s.Error(err)

	message, err := Decode([]byte(`{"type":"update","session_code":"ABC123"}`))
	s.Require().NoError(err)
	s.Equal(model.SessionCode("ABC123"), message.SessionCode)
}

func (s *NotifierSuite) TestHubNotifierDeliversToSubscribers() {
	_, client := s.manager.Subscribe("ABC123", "p1")

	NewHubNotifier(s.manager, testutil.NopLogger()).Publish(s.ctx, s.event())
	s.Equal("round_ended", s.receive(client).Type)
}

func (s *NotifierSuite) TestHubNotifierWithoutListeners() {
	NewHubNotifier(s.manager, testutil.NopLogger()).Publish(s.ctx, s.event())
	s.Equal(0, s.manager.HubCount())
}

func (s *NotifierSuite) TestNATSNotifierPublishesToSessionSubject() {
	NewNATSNotifier(s.conn, "mim", testutil.NopLogger()).Publish(s.ctx, s.event())

	s.Require().Len(s.conn.published, 1)
	s.Equal("mim.session.ABC123", s.conn.published[0].subject)
	message, err := Decode(s.conn.published[0].data)
	s.Require().NoError(err)
	s.Equal("round_ended", message.Type)
}

func (s *NotifierSuite) TestNATSNotifierSwallowsPublishErrors() {
	s.conn.err = errors.New("connection closed")
	s.NotPanics(func() {
		NewNATSNotifier(s.conn, "mim", testutil.NopLogger()).Publish(s.ctx, s.event())
	})
}

func (s *NotifierSuite) TestRelayDeliversRemoteEvents() {
	sub, err := NewRelay(s.conn, "mim", s.manager, testutil.NopLogger()).Start()
	s.Require().NoError(err)
	s.NotNil(sub)
	s.Equal("mim.session.*", s.conn.subject)

	_, client := s.manager.Subscribe("ABC123", "p1")
	message, err := Encode(s.event())
	s.Require().NoError(err)

	s.conn.handler(&nats.Msg{Subject: "mim.session.ABC123", Data: []byte("garbage")})
	s.conn.handler(&nats.Msg{Subject: "mim.session.ABC123", Data: message.Data})

	got := s.receive(client)
	s.Equal("round_ended", got.Type)
	s.JSONEq(string(message.Data), string(got.Data))
}
