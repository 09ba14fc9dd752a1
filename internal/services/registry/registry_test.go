package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/makeitmeme/internal/dependencies/mocks"
	"github.com/mcoot/makeitmeme/internal/model"
	"github.com/mcoot/makeitmeme/internal/storage"
	"github.com/mcoot/makeitmeme/internal/storage/memory"
	"github.com/mcoot/makeitmeme/internal/testutil"
)

type RegistrySuite struct {
	suite.Suite
	storage  *memory.Storage
	random   *mocks.MockRandom
	registry *Registry
	ctx      context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.storage = memory.New()
	s.random = mocks.NewMockRandom()
	s.registry = New(s.storage, s.random)
	s.ctx = context.Background()
}

func (s *RegistrySuite) saveSession(code model.SessionCode) error {
	return s.storage.Update(s.ctx, func(tx storage.Tx) error {
		tx.SaveSession(&model.Session{Code: code, Status: model.SessionWaiting})
		return nil
	})
}

func (s *RegistrySuite) TestReserveSkipsTakenAndMalformedCodes() {
	s.Require().NoError(s.saveSession("ABC123"))
	s.random.QueueString("ABC123", "abc!!!", "XYZ789")

	code, err := s.registry.Reserve(s.ctx, s.saveSession)
	s.Require().NoError(err)
	s.Equal(model.SessionCode("XYZ789"), code)

	found, err := s.registry.Find(s.ctx, code)
	s.Require().NoError(err)
	s.Equal(code, found.Code)
}

func (s *RegistrySuite) TestReserveGivesUpAfterMaxAttempts() {
	s.Require().NoError(s.saveSession("ABC123"))
	for range MaxCodeAttempts {
		s.random.QueueString("ABC123")
	}
	_, err := s.registry.Reserve(s.ctx, s.saveSession)
	s.ErrorIs(err, model.ErrCodeSpaceExhausted)
}

func (s *RegistrySuite) TestReservePropagatesCreateFailure() {
	s.random.QueueString("ABC123")
	failure := errors.New("write failed")
	_, err := s.registry.Reserve(s.ctx, func(model.SessionCode) error { return failure })
	s.ErrorIs(err, failure)
}

func (s *RegistrySuite) TestConcurrentReservationsGetDistinctCodes() {
	s.random.QueueString("AAAAAA", "AAAAAA", "BBBBBB", "BBBBBB", "CCCCCC")

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes []model.SessionCode
	)
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := s.registry.Reserve(s.ctx, s.saveSession)
			s.NoError(err)
			mu.Lock()
			codes = append(codes, code)
			mu.Unlock()
		}()
	}
	wg.Wait()
	s.ElementsMatch([]model.SessionCode{"AAAAAA", "BBBBBB", "CCCCCC"}, codes)
}

func (s *RegistrySuite) TestFindValidatesCode() {
	_, err := s.registry.Find(s.ctx, "abc")
	s.ErrorIs(err, model.ErrInvalidCode)

	_, err = s.registry.Find(s.ctx, "ZZZ999")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *RegistrySuite) TestLockIsExclusivePerKey() {
	unlock := s.registry.Lock(SessionKey("ABC123"))

	acquired := make(chan struct{})
	go func() {
		release := s.registry.Lock(SessionKey("ABC123"), PlayerKey("p1"))
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		s.Fail("lock acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	// Other keys are independent
	s.registry.Lock(SessionKey("XYZ789"))()

	unlock()
	<-acquired
	s.Eventually(func() bool { return s.registry.activeLocks() == 0 }, time.Second, 10*time.Millisecond)
}

func (s *RegistrySuite) TestUnlockIsIdempotent() {
	unlock := s.registry.Lock("a", "b", "a")
	unlock()
	unlock()
	s.Equal(0, s.registry.activeLocks())
}

// Sweeper tests

type recordingTicker struct {
	mu    sync.Mutex
	codes []model.SessionCode
}

func (t *recordingTicker) Tick(ctx context.Context, code model.SessionCode) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.codes = append(t.codes, code)
	if code == "BAD000" {
		return errors.New("tick failed")
	}
	return nil
}

func (t *recordingTicker) ticked() []model.SessionCode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.SessionCode(nil), t.codes...)
}

func (s *RegistrySuite) TestSweepTicksEverySession() {
	s.Require().NoError(s.saveSession("BAD000"))
	s.Require().NoError(s.saveSession("ABC123"))
	ticker := &recordingTicker{}
	hooks := 0
	sweeper := NewSweeper(s.storage, ticker, clockwork.NewFakeClock(), time.Second, testutil.NopLogger(), func() { hooks++ })

	sweeper.Sweep(s.ctx)
	s.Equal([]model.SessionCode{"ABC123", "BAD000"}, ticker.ticked())
	s.Equal(1, hooks)
}

func (s *RegistrySuite) TestRunSweepsOnInterval() {
	s.Require().NoError(s.saveSession("ABC123"))
	ticker := &recordingTicker{}
	clock := clockwork.NewFakeClock()
	sweeper := NewSweeper(s.storage, ticker, clock, 5*time.Second, testutil.NopLogger())

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	s.Require().NoError(clock.BlockUntilContext(ctx, 1))
	s.Empty(ticker.ticked())

	clock.Advance(5 * time.Second)
	s.Eventually(func() bool { return len(ticker.ticked()) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
