package comdirect_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/metabubble/go-comdirect"
)

func TestError_IsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("get transactions: %w", &comdirect.Error{
		Kind:    comdirect.KindAccountNotFound,
		Op:      "get transactions",
		Status:  404,
		Message: "account not found",
	})

	require.True(t, errors.Is(err, comdirect.ErrAccountNotFound))
	require.False(t, errors.Is(err, comdirect.ErrServer))
	require.False(t, errors.Is(err, comdirect.ErrAuthentication))
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "authentication", comdirect.KindAuthentication.String())
	require.Equal(t, "tan timeout", comdirect.KindTANTimeout.String())
	require.Equal(t, "validation", comdirect.KindValidation.String())
	require.Equal(t, "server", comdirect.KindServer.String())
	require.Equal(t, "account not found", comdirect.KindAccountNotFound.String())
	require.Equal(t, "token expired", comdirect.KindTokenExpired.String())
	require.Equal(t, "unknown", comdirect.KindUnknown.String())
}
