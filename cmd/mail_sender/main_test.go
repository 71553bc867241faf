package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupLogger_UnknownEnv(t *testing.T) {
	require.NotNil(t, setupLogger("staging"))
}
