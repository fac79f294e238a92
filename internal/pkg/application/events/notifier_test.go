package events

import (
	"context"
	"net/http"
	"sync"
	"testing"

	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"
	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns

var method = expects.RequestMethod
var bodyContaining = expects.RequestBodyContaining

func TestSingleNotificationOnSessionStart(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			bodyContaining(`"type":"SessionStarted"`),
			bodyContaining(`"userId":"kalle"`),
		),
		Returns(
			response.Code(http.StatusOK),
		),
	)
	defer s.Close()

	ctx := context.Background()
	n, _ := NewNotifier(ctx, s.URL())

	n.Start()
	n.SessionStarted(ctx, "8d2d6c4e-5cf3-4a43-a8a5-5f8b6c1a1f1e", "kalle")
	n.Stop()

	is.Equal(s.RequestCount(), 1)
}

func TestSessionIDIsNotSent(t *testing.T) {
	is := is.New(t)
	const sessionID string = "8d2d6c4e-5cf3-4a43-a8a5-5f8b6c1a1f1e"

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			bodyContaining(`"type":"SessionDestroyed"`),
			bodyContaining(Fingerprint(sessionID)),
		),
		Returns(
			response.Code(http.StatusAccepted),
		),
	)
	defer s.Close()

	ctx := context.Background()
	n, _ := NewNotifier(ctx, s.URL())

	n.Start()
	n.SessionDestroyed(ctx, sessionID, "")
	n.Stop()

	is.Equal(s.RequestCount(), 1)
	is.Equal(len(Fingerprint(sessionID)), 16)
}

func TestEventsAreDroppedWhenStopped(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is),
		Returns(response.Code(http.StatusOK)),
	)
	defer s.Close()

	ctx := context.Background()
	n, _ := NewNotifier(ctx, s.URL())

	n.SessionStarted(ctx, "before-start", "")

	n.Start()
	is.True(n.Start() != nil) // starting twice should fail
	n.Stop()

	n.SessionStarted(ctx, "after-stop", "")

	is.Equal(s.RequestCount(), 0)
}

func TestStopWhileEventsAreEnqueued(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is),
		Returns(response.Code(http.StatusOK)),
	)
	defer s.Close()

	ctx := context.Background()
	n, _ := NewNotifier(ctx, s.URL())
	is.NoErr(n.Start())

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.SessionStarted(ctx, "id", "kalle")
		}()
	}

	is.NoErr(n.Stop())
	wg.Wait()

	is.True(s.RequestCount() <= 50)
}

func TestEmptyEndpointDiscardsEvents(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	n, err := NewNotifier(ctx, "")
	is.NoErr(err)
	is.NoErr(n.Start())

	n.SessionStarted(ctx, "id", "")
	is.NoErr(n.Stop())
}
