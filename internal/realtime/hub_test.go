package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/testutil"
)

const waitFor = time.Second

type HubSuite struct {
	suite.Suite
	manager *Manager
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubSuite))
}

func (s *HubSuite) SetupTest() {
	s.manager = NewManager(testutil.NopLogger())
}

func (s *HubSuite) TearDownTest() {
	for _, code := range []string{"ABC123", "XYZ789"} {
		s.manager.RemoveHub(model.SessionCode(code))
	}
}

func (s *HubSuite) receive(client *Client) Message {
	select {
	case msg, ok := <-client.Messages():
		s.Require().True(ok, "client channel closed")
		return msg
	case <-time.After(waitFor):
		s.FailNow("client did not receive message")
		return Message{}
	}
}

func (s *HubSuite) TestRegisterAndBroadcast() {
	hub, client := s.manager.Subscribe("ABC123", "p1")
	s.Equal(1, hub.ClientCount())

	hub.Broadcast(Message{Type: "update", SessionCode: "ABC123", Data: []byte(`{}`)})
	s.Equal("update", s.receive(client).Type)
}

func (s *HubSuite) TestBroadcastToMultipleClients() {
	hub, c1 := s.manager.Subscribe("ABC123", "p1")
	_, c2 := s.manager.Subscribe("ABC123", "p2")
	_, c3 := s.manager.Subscribe("ABC123", "p3")
	s.Equal(3, hub.ClientCount())

	s.manager.Deliver(Message{Type: "round_ended", SessionCode: "ABC123"})
	for _, c := range []*Client{c1, c2, c3} {
		s.Equal("round_ended", s.receive(c).Type)
	}
}

func (s *HubSuite) TestUnregisterClosesClient() {
	hub, client := s.manager.Subscribe("ABC123", "p1")
	s.Equal(1, hub.ClientCount())

	hub.Unregister(client)
	s.Equal(0, hub.ClientCount())
	_, ok := <-client.Messages()
	s.False(ok)

	// Unregistering twice is harmless
	hub.Unregister(client)
}

func (s *HubSuite) TestSlowClientDropsMessages() {
	hub, slow := s.manager.Subscribe("ABC123", "slow")
	s.Equal(1, hub.ClientCount())

	for range sendBufferSize + 10 {
		hub.Broadcast(Message{Type: "update", SessionCode: "ABC123"})
	}
	s.Eventually(func() bool { return len(slow.send) == sendBufferSize }, waitFor, 5*time.Millisecond)

	// A fresh client still gets new messages
	_, fresh := s.manager.Subscribe("ABC123", "fresh")
	s.Equal(2, hub.ClientCount())
	hub.Broadcast(Message{Type: "game_finished", SessionCode: "ABC123"})
	for s.receive(fresh).Type != "game_finished" {
	}
}

func (s *HubSuite) TestCloseDisconnectsClients() {
	hub, client := s.manager.Subscribe("ABC123", "p1")
	s.Equal(1, hub.ClientCount())

	s.manager.RemoveHub("ABC123")
	select {
	case _, ok := <-client.Messages():
		s.False(ok)
	case <-time.After(waitFor):
		s.Fail("client was not disconnected")
	}
	s.False(hub.Register(NewClient("p2")))
	hub.Close()
}

func (s *HubSuite) TestDeliverWithoutHubIsNoop() {
	s.manager.Deliver(Message{Type: "update", SessionCode: "ABC123"})
	s.Nil(s.manager.GetHub("ABC123"))
}

func (s *HubSuite) TestGetOrCreateHub() {
	hub1 := s.manager.GetOrCreateHub("ABC123")
	s.Same(hub1, s.manager.GetOrCreateHub("ABC123"))
	s.NotSame(hub1, s.manager.GetOrCreateHub("XYZ789"))
	s.Same(hub1, s.manager.GetHub("ABC123"))
	s.Equal(2, s.manager.HubCount())
}

func (s *HubSuite) TestRemoveHub() {
	s.manager.GetOrCreateHub("ABC123")
	s.manager.RemoveHub("ABC123")
	s.Nil(s.manager.GetHub("ABC123"))

	s.NotPanics(func() { s.manager.RemoveHub("NOTEXIST") })
}

func (s *HubSuite) TestCleanupEmptyHubs() {
	s.manager.GetOrCreateHub("XYZ789")
	active, _ := s.manager.Subscribe("ABC123", "p1")
	s.Equal(1, active.ClientCount())

	s.Equal(1, s.manager.CleanupEmptyHubs())
	s.Nil(s.manager.GetHub("XYZ789"))
	s.Same(active, s.manager.GetHub("ABC123"))
}

func (s *HubSuite) TestSubscribeReplacesClosedHub() {
	stale := s.manager.GetOrCreateHub("ABC123")
	stale.Close()

	hub, client := s.manager.Subscribe("ABC123", "p1")
	s.NotSame(stale, hub)
	s.Equal(1, hub.ClientCount())

	s.manager.Deliver(Message{Type: "update", SessionCode: "ABC123"})
	s.Equal("update", s.receive(client).Type)
}
