package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
	"invoiceapi/internal/export"
	"invoiceapi/pkg/models"
)

func TestExtractSpreadsheetID(t *testing.T) {
	id, err := extractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-d_9", id)

	_, err = extractSpreadsheetID("https://example.com/not-a-sheet")
	assert.Error(t, err)
}

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", columnLetter(1))
	assert.Equal(t, "N", columnLetter(14))
	assert.Equal(t, "Z", columnLetter(26))
	assert.Equal(t, "AA", columnLetter(27))
	assert.Equal(t, "N", lastColumn())
}

type fakeSheetsAPI struct {
	mu        sync.Mutex
	calls     []string
	appended  [][]any
	headerSet bool
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-1"):
		f.calls = append(f.calls, "get")
		io.WriteString(w, `{"spreadsheetId":"sheet-1","sheets":[{"properties":{"sheetId":1,"title":"Other"}}]}`)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		f.calls = append(f.calls, "batchUpdate")
		io.WriteString(w, `{"replies":[{"addSheet":{"properties":{"sheetId":7,"title":"Invoices"}}}]}`)
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		f.calls = append(f.calls, "getValues")
		io.WriteString(w, `{"range":"Invoices!A1:N1"}`)
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		f.calls = append(f.calls, "update")
		f.headerSet = true
		io.WriteString(w, `{}`)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		f.calls = append(f.calls, "append")
		var body sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, row := range body.Values {
			f.appended = append(f.appended, row)
		}
		io.WriteString(w, `{}`)
	default:
		http.Error(w, `{"error":{"code":404,"message":"unexpected call"}}`, http.StatusNotFound)
	}
}

func TestAppendEntries(t *testing.T) {
	api := &fakeSheetsAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	ctx := context.Background()
	svc, err := sheets.NewService(ctx, option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	s := newService(svc, "sheet-1")
	s.now = func() time.Time { return time.Date(2024, 11, 29, 10, 30, 0, 0, time.UTC) }

	entries := []export.Entry{
		{
			Source: "factura.pdf",
			Record: &models.InvoiceRecord{
				InvoiceNumber: models.NewText("F43289956"),
				Shipments: []models.ShipmentLine{
					{ShipmentID: models.NewText("43/4262436/4")},
					{ShipmentID: models.NewText("43/4262437/2")},
				},
			},
		},
		{Source: "broken.pdf", Error: "could not extract text from PDF"},
	}

	require.NoError(t, s.AppendEntries(ctx, entries, "Invoices"))

	assert.Equal(t, []string{"get", "batchUpdate", "getValues", "update", "batchUpdate", "append"}, api.calls)
	assert.True(t, api.headerSet)
	require.Len(t, api.appended, 3)
	assert.Equal(t, "43/4262436/4", api.appended[0][5])
	assert.Equal(t, "broken.pdf", api.appended[2][0])
}

func TestAppendEntriesNothingToWrite(t *testing.T) {
	s := newService(nil, "sheet-1")
	assert.NoError(t, s.AppendEntries(context.Background(), nil, "Invoices"))
}
