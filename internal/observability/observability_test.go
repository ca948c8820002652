package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencausal/latticegraphd/internal/config"
)

func TestInit_Stdout(t *testing.T) {
	shutdown, err := Init(context.Background(), config.OTel{Exporter: "stdout"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, shutdown(ctx))
}

func TestInit_DefaultsToStdout(t *testing.T) {
	shutdown, err := Init(context.Background(), config.OTel{})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, shutdown(ctx))
}

func TestInit_UnknownExporterErrors(t *testing.T) {
	_, err := Init(context.Background(), config.OTel{Exporter: "carrier-pigeon"})
	require.Error(t, err)
}
