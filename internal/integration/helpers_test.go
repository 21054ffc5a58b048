package integration

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/eclipse/paho.golang/paho"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/require"
)

// pushMessage is one message received by the fake Pushover API.
type pushMessage struct {
	Title   string
	Message string
}

// pushoverServer records form posts and answers like the real API.
type pushoverServer struct {
	*httptest.Server

	mu       sync.Mutex
	messages []pushMessage
}

// startPushover starts a fake Pushover API.
func startPushover(t *testing.T) *pushoverServer {
	t.Helper()

	p := new(pushoverServer)
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		p.mu.Lock()
		p.messages = append(p.messages, pushMessage{Title: r.PostFormValue("title"), Message: r.PostFormValue("message")})
		p.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":1,"request":"test"}`))
	}))

	t.Cleanup(p.Close)

	return p
}

// received returns a copy of the recorded messages.
func (p *pushoverServer) received() []pushMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]pushMessage(nil), p.messages...)
}

// reserveAddress returns a free loopback address.
func reserveAddress(t *testing.T) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	address := lis.Addr().String()
	require.NoError(t, lis.Close())

	return address
}

// startBroker runs an in-process MQTT broker and returns its address.
func startBroker(t *testing.T) string {
	t.Helper()

	address := reserveAddress(t)

	broker := mochi.New(nil)
	require.NoError(t, broker.AddHook(new(auth.AllowHook), nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		ID:      "integration",
		Address: address,
	})))
	require.NoError(t, broker.Serve())

	t.Cleanup(func() { _ = broker.Close() })

	return address
}

// newPublisher connects a paho client used to play the sensor device.
func newPublisher(t *testing.T, address string) *paho.Client {
	t.Helper()

	ctx := context.Background()

	var d net.Dialer

	conn, err := d.DialContext(ctx, "tcp", address)
	require.NoError(t, err)

	client := paho.NewClient(paho.ClientConfig{ClientID: "temper-device", Conn: conn})

	_, err = client.Connect(ctx, &paho.Connect{ClientID: "temper-device", KeepAlive: 5, CleanStart: true})
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Disconnect(&paho.Disconnect{ReasonCode: 0}) })

	return client
}
