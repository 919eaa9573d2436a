package llm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEventData(t *testing.T) {
	cases := []struct {
		name string
		body string
		want []string
	}{
		{"terminated events", "data: a\n\ndata: b\n\n", []string{"a", "b"}},
		{"multi line event", "data: a\ndata: b\n\n", []string{"a\nb"}},
		{"comments and crlf", ": ping\r\n\r\ndata: a\r\n\r\n", []string{"a"}},
		{"last line without newline", "data: a\n\ndata: b", []string{"a", "b"}},
		{"multi line event cut at eof", "data: a\ndata: b", []string{"a\nb"}},
		{"eof after data lines", "data: a\ndata: b\n", []string{"a\nb"}},
		{"empty", "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tc.body))
			var got []string
			for {
				data, err := readEventData(r)
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				got = append(got, string(data))
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestChatStreamKeepsUnterminatedFinalEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"},\n")
		fmt.Fprint(w, "data: \"finish_reason\":\"stop\"}]}")
	}))
	defer srv.Close()

	var deltas []string
	res, err := newTestClient().ChatStream(context.Background(), Endpoint{BaseURL: srv.URL, Model: "m"}, []Message{{Role: "user", Content: "hi"}},
		func(d string) error {
			deltas = append(deltas, d)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	assert.Equal(t, "Hello", res.Content)
	assert.Equal(t, "stop", res.FinishReason)
}
