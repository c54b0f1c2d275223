package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Dues", SheetName("Dues!A1"))
	assert.Equal(t, "'My Tab'", SheetName("'My Tab'!A1:F"))
	assert.Equal(t, "Dues", SheetName("Dues"))
}

func TestReplaceRangeClearsThenWrites(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
		rows  [][]interface{}
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
			calls = append(calls, "clear")
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodPut:
			calls = append(calls, "update")
			var body sheetsapi.ValueRange
			_ = json.NewDecoder(r.Body).Decode(&body)
			rows = body.Values
			assert.Equal(t, "USER_ENTERED", r.URL.Query().Get("valueInputOption"))
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	repo, err := newRepository(context.Background(), "sheet-1", nil,
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	err = repo.ReplaceRange(context.Background(), "Dues!A1", [][]interface{}{{"Name", "Due"}, {"Raj", 400}})
	require.NoError(t, err)

	assert.Equal(t, []string{"clear", "update"}, calls)
	require.Len(t, rows, 2)
	assert.Equal(t, "Raj", rows[1][0])
}

func TestReplaceRangeRequiresRange(t *testing.T) {
	repo := &GoogleSheetRepository{}
	assert.Error(t, repo.ReplaceRange(context.Background(), "", nil))
}
