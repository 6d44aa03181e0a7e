// ABOUTME: Integration test for the NATS bus against a live server
// ABOUTME: Skipped unless BDI_TEST_NATS_URL is set

package bus

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNATS_RoundTrip(t *testing.T) {
	url := os.Getenv("BDI_TEST_NATS_URL")
	if url == "" {
		t.Skip("BDI_TEST_NATS_URL not set")
	}

	b, err := NewNATS(url, "bus-test", nil)
	require.NoError(t, err)
	defer b.Close()

	rec := &recorder{}
	sub, err := b.Subscribe("bdi.test.roundtrip", rec.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, b.Publish(context.Background(), "bdi.test.roundtrip", []byte("hello")))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
}
