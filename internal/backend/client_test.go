package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenmind/havend/internal/config"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(&config.BackendConfig{
		URL:            srv.URL,
		AnonKey:        "test-anon-key",
		RequestTimeout: config.Duration(5 * time.Second),
		RatePerSecond:  1000,
		RateBurst:      1000,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(&config.BackendConfig{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrNotConfigured)

	_, err = NewClient(nil, nil)
	assert.Error(t, err)
}

func TestProbe_AnyResponseProvesReachability(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"ok", http.StatusOK},
		{"auth rejection still proves the endpoint is alive", http.StatusUnauthorized},
		{"server error still proves the endpoint is alive", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			assert.True(t, c.Probe(ctx))
		})
	}
}

func TestProbe_TransportFailureReportsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c, err := NewClient(&config.BackendConfig{URL: srv.URL, AnonKey: "k"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.False(t, c.Probe(ctx))
}

func TestProbe_TimeoutReportsFalse(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.False(t, c.Probe(ctx))
}

func TestSelect_DecodesRowsAndSendsHeaders(t *testing.T) {
	var gotAuth, gotKey, gotQuery string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[{"id":"a"},{"id":"b"}]`))
	}))

	rows, err := c.Select(context.Background(), "mood_entries", Query{
		Filters:    []Filter{Eq("user_id", "u1")},
		OrderBy:    "created_at",
		Descending: true,
	})
	require.NoError(t, err)

	assert.Len(t, rows, 2)
	assert.Equal(t, "test-anon-key", gotKey)
	assert.Equal(t, "Bearer test-anon-key", gotAuth, "anon bearer before sign-in")
	assert.Contains(t, gotQuery, "user_id=eq.u1")
	assert.Contains(t, gotQuery, "order=created_at.desc")
}

func TestAPIError_PreservesWireContent(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"JWT expired","code":"PGRST301"}`))
	}))

	_, err := c.Select(context.Background(), "tasks", Query{})
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "JWT expired", apiErr.Message)
	assert.Equal(t, "PGRST301", apiErr.Code)
}

func TestAPIError_NumericCodeAndMsgField(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"msg":"invalid input","code":400}`))
	}))

	_, err := c.Select(context.Background(), "tasks", Query{})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "invalid input", apiErr.Message)
	assert.Equal(t, "400", apiErr.Code)
}

func TestInsert_ReturnsRepresentation(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_, _ = w.Write([]byte(`[{"id":"new-id","title":"` + in["title"].(string) + `"}]`))
	}))

	var out struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	err := c.Insert(context.Background(), "tasks", map[string]string{"title": "walk"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "new-id", out.ID)
	assert.Equal(t, "walk", out.Title)
}

func TestDelete_RefusesUnfiltered(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not reach the wire")
	}))

	err := c.Delete(context.Background(), "tasks", Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unfiltered delete")
}

func TestSignIn_InstallsSessionAndBearerToken(t *testing.T) {
	var gotAuth string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == authPath+"/token" {
			_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600,"user":{"id":"u1"}}`))
			return
		}
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))

	s, err := c.SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	require.NotNil(t, c.Session())

	_, err = c.Select(context.Background(), "tasks", Query{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer at-1", gotAuth)
}

func TestSignOut_ClearsLocallyEvenWhenRevokeFails(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == authPath+"/token" {
			_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":3600,"user":{"id":"u1"}}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"revoke failed"}`))
	}))

	_, err := c.SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	err = c.SignOut(context.Background())
	assert.Error(t, err, "remote failure is reported")
	assert.Nil(t, c.Session(), "local session is gone regardless")
}

func TestSignOut_NoSessionIsNoop(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	assert.NoError(t, c.SignOut(context.Background()))
}

func TestRefreshSession(t *testing.T) {
	calls := 0
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("grant_type") == "refresh_token" {
			_, _ = w.Write([]byte(`{"access_token":"at-2","refresh_token":"rt-2","expires_in":3600}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600,"user":{"id":"u1"}}`))
	}))

	_, err := c.SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	s, err := c.RefreshSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-2", s.AccessToken)
	assert.Equal(t, "u1", s.UserID, "user id carried over when refresh omits it")
	assert.Equal(t, 2, calls)
}

func TestRefreshSession_NoSession(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := c.RefreshSession(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}
