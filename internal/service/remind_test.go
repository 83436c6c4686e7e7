package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"outreach/internal/config"
	"outreach/internal/google"
	"outreach/internal/models"
	"outreach/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestRemindWhenReportSheetHangs(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	store, err := google.NewSheetsStoreWithOptions(context.Background(), config.GoogleConfig{
		LeadsSpreadsheetID: "leads_tid",
		LeadsRange:         "Sheet1!A:Z",
	}, option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)

	env := &testEnv{}
	svc := newTestService(t, env, func(o *Options) {
		o.Reports = store.Reports("Reports!A:B", worker.RetryPolicy{
			MaxRetries:     1,
			InitialDelay:   time.Millisecond,
			AttemptTimeout: 50 * time.Millisecond,
		})
	})

	start := time.Now()
	res, err := svc.Run(context.Background(), models.TaskRemind)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	// unknown status means everyone is reminded
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, env.messenger.chats())
	assert.Len(t, res.Report.Sent, len(team))
}
