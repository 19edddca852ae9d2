package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"uplift/internal/api"
	"uplift/internal/run"
)

func TestClientDecodesResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/runs/run_ab12cd34/status":
			w.Write([]byte(`{"stage":"TRAINING","progress":40}`))
		case "/api/runs":
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if got := r.Header.Get("Content-Type"); got != "application/json" {
				t.Errorf("unexpected content type %q", got)
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"run_ab12cd34","dataset_id":"ds_1","stage":"CREATED","progress":0,"created_at":"2024-01-01T00:00:00Z","spec":{"dataset_id":"ds_1","grain":"WEEK"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"run \"run_nope\" not found"}`))
		}
	}))
	defer srv.Close()

	client := New(strings.TrimPrefix(srv.URL, "http://"))
	ctx := context.Background()

	status, err := client.RunStatus(ctx, "run_ab12cd34")
	if err != nil {
		t.Fatalf("RunStatus: %v", err)
	}
	if status.Stage != run.StageTraining || status.Progress != 40 {
		t.Fatalf("unexpected status %+v", status)
	}

	detail, err := client.CreateRun(ctx, api.CreateRunRequest{DatasetID: "ds_1"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if detail.ID != "run_ab12cd34" || detail.Spec.Grain != run.GrainWeek {
		t.Fatalf("unexpected run detail %+v", detail)
	}

	_, err = client.RunStatus(ctx, "run_nope")
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
	if !IsNotFound(err) {
		t.Fatalf("expected not-found classification, got %v", err)
	}
	if !strings.Contains(err.Error(), "run_nope") {
		t.Fatalf("expected decoded daemon message, got %q", err.Error())
	}
}

func TestClientConnectionError(t *testing.T) {
	client := New("127.0.0.1:1")
	if _, err := client.Datasets(context.Background()); err == nil {
		t.Fatal("expected connection error")
	} else if !strings.Contains(err.Error(), "upliftd") {
		t.Fatalf("expected hint about the daemon, got %q", err.Error())
	}
}
