package research

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  bool
		wantJSON string
	}{
		{"success", http.StatusOK, `{"results":{"industry":"software"}}`, false, `{"industry":"software"}`},
		{"list results", http.StatusOK, `{"results":[{"title":"Acme raises"}]}`, false, `[{"title":"Acme raises"}]`},
		{"server error", http.StatusBadGateway, `upstream down`, true, ""},
		{"malformed", http.StatusOK, `<html>`, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/findnews", r.URL.Path)
				assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
				var in map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
				assert.Equal(t, "https://acmecorp.com", in["websiteurl"])
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewClient(srv.URL+"/", "k").Call(context.Background(), FindNews, "https://acmecorp.com")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.wantJSON, string(got))
		})
	}
}

func TestCall_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Call(context.Background(), FetchFunding, "https://acmecorp.com")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, FetchFunding, se.Endpoint)
	assert.Equal(t, http.StatusServiceUnavailable, se.HTTPStatus())
}

func TestResearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/fetchfunding") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"results":{"endpoint":"` + strings.TrimPrefix(r.URL.Path, "/") + `"}}`))
	}))
	defer srv.Close()

	rep, err := Research(context.Background(), NewClient(srv.URL, ""), "https://acmecorp.com")
	require.NoError(t, err)
	assert.Len(t, rep.Results, len(AllEndpoints)-1)
	assert.Contains(t, rep.Errors, FetchFunding)
	assert.JSONEq(t, `{"endpoint":"findsocials"}`, string(rep.Results[FindSocials]))
}

func TestResearch_AllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rep, err := Research(context.Background(), NewClient(srv.URL, ""), "https://acmecorp.com", ScrapeWebsite, FindNews)
	assert.ErrorIs(t, err, ErrNoResults)
	assert.Len(t, rep.Errors, 2)
}
