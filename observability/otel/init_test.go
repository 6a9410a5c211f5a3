package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "lendledger"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitValidation(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: true})
	require.Error(t, err)

	_, err = Init(context.Background(), Config{ServiceName: "lendledger", Traces: true, SampleRatio: 2})
	require.Error(t, err)
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders("api-key = secret, ,broken, =empty,tenant=ledger")
	require.Equal(t, map[string]string{"api-key": "secret", "tenant": "ledger"}, headers)
}
