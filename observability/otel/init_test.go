package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = abc ,broken, =skip,team=ledger,authorization=Bearer%20t0k")
	require.Equal(t, map[string]string{
		"api-key":       "abc",
		"team":          "ledger",
		"authorization": "Bearer t0k",
	}, headers)
}

func TestInitWithoutExporters(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)

	shutdown, err := Init(context.Background(), Config{ServiceName: "stakingd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	require.NotNil(t, Tracer())
}
