package twelvedata_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"stockbar/internal/provider"
	"stockbar/internal/provider/twelvedata"
)

func TestSourceFetch_Success(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(jsonResponse(http.StatusOK, `{"symbol":"ORCL","close":"120.50","previous_close":"118.00","is_market_open":true}`), nil).
		Times(1)
	client, err := twelvedata.NewClient("k", twelvedata.WithHTTPClient(httpClient))
	require.NoError(t, err)
	src := twelvedata.NewSource(client, nil)

	// Act
	q, err := src.Fetch(t.Context(), "ORCL")

	// Assert
	require.NoError(t, err)
	require.Equal(t, "ORCL", q.Symbol)
	require.True(t, q.Price.Equal(decimal.RequireFromString("120.50")))
	require.True(t, q.PreviousClose.Equal(decimal.RequireFromString("118")))
	require.True(t, q.IsLive)
	require.Equal(t, "twelvedata", q.Source)
}

func TestSourceFetch_MissingKeySkipsNetwork(t *testing.T) {
	t.Parallel()

	// Arrange: no Do call is expected
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	client, err := twelvedata.NewClient("", twelvedata.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act
	_, err = twelvedata.NewSource(client, nil).Fetch(t.Context(), "ORCL")

	// Assert
	var fe *provider.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, provider.Unreachable, fe.Kind)
}

func TestSourceFetch_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		doErr    error
		wantKind provider.Kind
		wantCode int
		wantMsg  string
	}{
		{name: "transport failure", doErr: errors.New("dial tcp: refused"), wantKind: provider.Unreachable},
		{name: "empty body", status: 200, body: "", wantKind: provider.Unreachable},
		{name: "outage 500", status: 500, wantKind: provider.HTTPOutage, wantCode: 500},
		{name: "outage 503", status: 503, wantKind: provider.HTTPOutage, wantCode: 503},
		{name: "unauthorized", status: 401, wantKind: provider.RateLimited, wantCode: 401},
		{name: "rate limited", status: 429, wantKind: provider.RateLimited, wantCode: 429},
		{name: "forbidden", status: 403, wantKind: provider.UnexpectedHTTP, wantCode: 403},
		{name: "not found", status: 404, wantKind: provider.UnexpectedHTTP, wantCode: 404},
		{
			name: "provider error", status: 200,
			body:     `{"code":401,"message":"**apikey** parameter is incorrect","status":"error"}`,
			wantKind: provider.APIError, wantMsg: "**apikey** parameter is incorrect",
		},
		{name: "missing close", status: 200, body: `{"symbol":"ORCL","previous_close":"118.00"}`, wantKind: provider.InvalidData, wantMsg: "invalid data"},
		{name: "null previous close", status: 200, body: `{"symbol":"ORCL","close":"1.00","previous_close":null}`, wantKind: provider.InvalidData, wantMsg: "invalid data"},
		{name: "empty close", status: 200, body: `{"symbol":"ORCL","close":"","previous_close":"1.00"}`, wantKind: provider.InvalidData, wantMsg: "invalid data"},
		{name: "garbage close", status: 200, body: `{"symbol":"ORCL","close":"abc","previous_close":"1.00"}`, wantKind: provider.InvalidData, wantMsg: "invalid data"},
		{name: "negative close", status: 200, body: `{"symbol":"ORCL","close":"-1","previous_close":"1.00"}`, wantKind: provider.InvalidData, wantMsg: "invalid data"},
		{name: "not json", status: 200, body: `<html>`, wantKind: provider.InvalidData, wantMsg: "invalid data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			call := httpClient.EXPECT().Do(gomock.Any()).Times(1)
			if tt.doErr != nil {
				call.Return(nil, tt.doErr)
			} else {
				call.Return(jsonResponse(tt.status, tt.body), nil)
			}
			client, err := twelvedata.NewClient("k", twelvedata.WithHTTPClient(httpClient))
			require.NoError(t, err)

			// Act
			_, err = twelvedata.NewSource(client, nil).Fetch(t.Context(), "ORCL")

			// Assert
			var fe *provider.FetchError
			require.ErrorAs(t, err, &fe)
			require.Equal(t, tt.wantKind, fe.Kind, fe.Error())
			require.Equal(t, tt.wantCode, fe.StatusCode)
			if tt.wantMsg != "" {
				require.Equal(t, tt.wantMsg, fe.Message)
			}
			if tt.doErr != nil {
				require.ErrorIs(t, err, tt.doErr)
			}
		})
	}
}
