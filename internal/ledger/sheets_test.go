package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// fakeSpreadsheet serves the subset of the Sheets v4 API the ledger uses.
type fakeSpreadsheet struct {
	mu   sync.Mutex
	id   string
	tabs map[string][][]string
	// order keeps tab creation order for the metadata listing.
	order []string
}

func (f *fakeSpreadsheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := "/v4/spreadsheets/" + f.id
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, prefix)

	switch {
	case rest == "" && r.Method == http.MethodGet:
		var sheetsOut []map[string]any
		for _, name := range f.order {
			sheetsOut = append(sheetsOut, map[string]any{"properties": map[string]any{"title": name}})
		}
		writeJSON(w, http.StatusOK, map[string]any{"spreadsheetId": f.id, "sheets": sheetsOut})

	case rest == ":batchUpdate" && r.Method == http.MethodPost:
		var req sheets.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, item := range req.Requests {
			if item.AddSheet == nil {
				continue
			}
			title := item.AddSheet.Properties.Title
			if _, ok := f.tabs[title]; ok {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{
					"code": 400, "message": "A sheet with the name \"" + title + "\" already exists.",
				}})
				return
			}
			f.tabs[title] = nil
			f.order = append(f.order, title)
		}
		writeJSON(w, http.StatusOK, map[string]any{"spreadsheetId": f.id})

	case strings.HasPrefix(rest, "/values/"):
		rng := strings.TrimPrefix(rest, "/values/")
		appendCall := r.Method == http.MethodPost && strings.HasSuffix(rng, ":append")
		rng = strings.TrimSuffix(rng, ":append")
		tab, headerOnly := parseRange(rng)
		rows, ok := f.tabs[tab]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{
				"code": 400, "message": "Unable to parse range: " + rng,
			}})
			return
		}

		switch {
		case r.Method == http.MethodGet:
			if headerOnly && len(rows) > 1 {
				rows = rows[:1]
			}
			writeJSON(w, http.StatusOK, map[string]any{"range": rng, "majorDimension": "ROWS", "values": rows})
		case r.Method == http.MethodPut || appendCall:
			var vr sheets.ValueRange
			_ = json.NewDecoder(r.Body).Decode(&vr)
			for _, values := range vr.Values {
				row := make([]string, len(values))
				for i, v := range values {
					row[i], _ = v.(string)
				}
				if r.Method == http.MethodPut && len(f.tabs[tab]) > 0 {
					f.tabs[tab][0] = row
				} else {
					f.tabs[tab] = append(f.tabs[tab], row)
				}
			}
			writeJSON(w, http.StatusOK, map[string]any{"spreadsheetId": f.id})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	default:
		http.NotFound(w, r)
	}
}

func parseRange(rng string) (tab string, headerOnly bool) {
	name, cells, _ := strings.Cut(rng, "!")
	name = strings.TrimSuffix(strings.TrimPrefix(name, "'"), "'")
	return strings.ReplaceAll(name, "''", "'"), cells == "1:1"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSheetsLedgerContract(t *testing.T) {
	fake := &fakeSpreadsheet{id: "sheet-1", tabs: map[string][][]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	l := NewSheets(svc, "sheet-1")
	ledgerContract(t, l)
	require.Equal(t, []string{"Depot 12"}, fake.order)
	require.Equal(t, busStopHeader, fake.tabs["Depot 12"][0])
	require.NoError(t, l.Ping(context.Background()))
}
