package live

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developerashishcanada/carpoolreact/internal/domain/profile"
	"github.com/developerashishcanada/carpoolreact/internal/domain/ride"
	"github.com/developerashishcanada/carpoolreact/internal/events"
	"github.com/developerashishcanada/carpoolreact/internal/service/marketplace"
	"github.com/developerashishcanada/carpoolreact/internal/store/memory"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
	"github.com/developerashishcanada/carpoolreact/pkg/websocket"
)

type pushed struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

type fixture struct {
	svc    *marketplace.Service
	topics *Topics
	hub    *websocket.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New("live-test")
	t.Cleanup(func() { s.Close() })
	log := logger.NewNop()
	svc := marketplace.NewService(s, nil, &events.Recorder{}, nil, log)
	topics := NewTopics(s, svc, nil, log)
	return &fixture{
		svc:    svc,
		topics: topics,
		hub:    websocket.NewHub(topics, websocket.Config{}, log),
	}
}

func (f *fixture) caller(t *testing.T, id string, role profile.Role) marketplace.Caller {
	t.Helper()
	in := marketplace.RegisterInput{Name: id, Email: id + "@example.com", Phone: "1", Role: role}
	if role == profile.RoleDriver {
		in.Vehicle = &profile.Vehicle{Type: "Van", Color: "White", Plate: "X1"}
		in.LicenseUploaded = true
	} else {
		in.IDUploaded = true
	}
	_, err := f.svc.Register(context.Background(), id, in)
	require.NoError(t, err)
	c, err := f.svc.Caller(context.Background(), id)
	require.NoError(t, err)
	return c
}

// next waits for a message on topic satisfying ok
func next(t *testing.T, c *websocket.Client, topic string, ok func(pushed) bool) pushed {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-c.Send:
			var msg pushed
			require.NoError(t, json.Unmarshal(data, &msg))
			if msg.Topic == topic && ok(msg) {
				return msg
			}
		case <-deadline:
			t.Fatalf("no matching message on %s", topic)
		}
	}
}

func anyMessage(pushed) bool { return true }

func TestTopics_RidesFollowWrites(t *testing.T) {
	f := newFixture(t)
	driver := f.caller(t, "driver-1", profile.RoleDriver)
	c := websocket.NewClient(f.hub, nil, "watcher", logger.NewNop())

	c.Subscribe(TopicRides)
	first := next(t, c, TopicRides, anyMessage)
	assert.JSONEq(t, `[]`, string(first.Data))
	assert.Equal(t, 1, f.topics.Active())

	_, err := f.svc.PostRide(context.Background(), driver, ride.Draft{
		From: "Toronto Downtown", To: "Mississauga",
		StartTime: time.Now().Add(time.Hour), AvailableSeats: 3,
		PricePerSeat: decimal.NewFromInt(12),
	})
	require.NoError(t, err)

	msg := next(t, c, TopicRides, func(m pushed) bool { return string(m.Data) != "[]" })
	var rides []ride.Ride
	require.NoError(t, json.Unmarshal(msg.Data, &rides))
	require.Len(t, rides, 1)
	assert.Equal(t, "Mississauga", rides[0].To)

	c.Unsubscribe(TopicRides)
	assert.Equal(t, 0, f.topics.Active())
}

func TestTopics_WalletStartsAtZero(t *testing.T) {
	f := newFixture(t)
	rider := f.caller(t, "rider-1", profile.RoleRider)
	c := websocket.NewClient(f.hub, nil, rider.ID, logger.NewNop())

	c.Subscribe(TopicWallet)
	first := next(t, c, TopicWallet, anyMessage)
	assert.Contains(t, string(first.Data), `"balance":"0"`)

	_, err := f.svc.Deposit(context.Background(), rider, decimal.NewFromInt(40))
	require.NoError(t, err)
	next(t, c, TopicWallet, func(m pushed) bool {
		return strings.Contains(string(m.Data), `"balance":"40"`)
	})
}

func TestTopics_RequestsRequireProfile(t *testing.T) {
	f := newFixture(t)
	_, err := f.topics.Subscribe(context.Background(), websocket.NewClient(f.hub, nil, "stranger", logger.NewNop()), TopicRequests)
	assert.Error(t, err)

	_, err = f.topics.Subscribe(context.Background(), websocket.NewClient(f.hub, nil, "stranger", logger.NewNop()), "bogus")
	assert.ErrorIs(t, err, ErrUnknownTopic)
	assert.Equal(t, 0, f.topics.Active())
}

func TestTopics_ThreadOnlyForParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := f.caller(t, "driver-1", profile.RoleDriver)
	rider := f.caller(t, "rider-1", profile.RoleRider)
	f.caller(t, "rider-2", profile.RoleRider)

	rd, err := f.svc.PostRide(ctx, driver, ride.Draft{
		From: "A", To: "B", StartTime: time.Now().Add(time.Hour),
		AvailableSeats: 1, PricePerSeat: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	thread, err := f.svc.SendMessage(ctx, rider, marketplace.SendInput{RideID: rd.ID, Text: "hello"})
	require.NoError(t, err)

	stranger := websocket.NewClient(f.hub, nil, "rider-2", logger.NewNop())
	_, err = f.topics.Subscribe(ctx, stranger, TopicChatPrefix+thread.ID)
	assert.Error(t, err)

	c := websocket.NewClient(f.hub, nil, driver.ID, logger.NewNop())
	c.Subscribe(TopicChatPrefix + thread.ID)
	msg := next(t, c, TopicChatPrefix+thread.ID, anyMessage)
	assert.Contains(t, string(msg.Data), "hello")

	_, err = f.svc.SendMessage(ctx, driver, marketplace.SendInput{RideID: rd.ID, ParticipantID: rider.ID, Text: "see you"})
	require.NoError(t, err)
	next(t, c, TopicChatPrefix+thread.ID, func(m pushed) bool {
		return strings.Contains(string(m.Data), "see you")
	})
}
