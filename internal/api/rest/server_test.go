package rest

import (
	"context"
	"net"
	"net/http"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/require"
)

// TestServe_ListenerFailure returns the accept error without waiting for ctx,
// and leaves no shutdown goroutine behind.
func TestServe_ListenerFailure(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		require.NoError(t, lis.Close())

		// A context that never ends: a watcher still waiting on it would
		// deadlock the bubble.
		err = Serve(context.Background(), lis, http.NotFoundHandler())
		require.ErrorContains(t, err, "serve HTTP")
	})
}
