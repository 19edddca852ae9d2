package sampler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"uplift/internal/features"
	"uplift/internal/run"
	"uplift/internal/sampler"
	"uplift/internal/services"
)

func testRequest() sampler.Request {
	return sampler.Request{
		Design: sampler.Design{
			YLog:         []float64{1, 2},
			Channels:     [][]float64{{0.1}, {0.2}},
			Controls:     [][]float64{{1}, {1}},
			ChannelNames: []string{"X_act_tv"},
			ControlNames: []string{"trend"},
		},
		Priors:   sampler.DefaultPriors(),
		Sampling: run.Sampling{Draws: 2, Tune: 1, Chains: 1, TargetAccept: 0.9},
	}
}

func testResult() sampler.Result {
	return sampler.Result{
		Posterior: sampler.Posterior{
			Intercept: [][]float64{{0.1, 0.2}},
			Beta:      [][][]float64{{{0.5}, {0.6}}},
			Gamma:     [][][]float64{{{0.0}, {0.1}}},
			Sigma:     [][]float64{{1, 1}},
			Nu:        [][]float64{{10, 11}},
			SigmaBeta: [][]float64{{0.4, 0.5}},
		},
		Stats: sampler.SampleStats{
			Diverging: [][]bool{{false, false}},
			Energy:    [][]float64{{-1, -2}},
			TreeSize:  [][]float64{{7, 15}},
		},
	}
}

func TestClientSample(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req sampler.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Design.ChannelNames) != 1 || req.Design.ChannelNames[0] != "X_act_tv" {
			t.Errorf("unexpected channel names: %v", req.Design.ChannelNames)
		}
		_ = json.NewEncoder(w).Encode(testResult())
	}))
	defer srv.Close()

	client := sampler.NewClient(srv.URL, 5)
	result, err := client.Sample(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if gotPath != "/sample" {
		t.Fatalf("request path = %q, want /sample", gotPath)
	}
	if result.Posterior.Chains() != 1 || result.Posterior.DrawsPerChain() != 2 {
		t.Fatalf("unexpected draw layout: %d chains, %d draws",
			result.Posterior.Chains(), result.Posterior.DrawsPerChain())
	}
}

func TestClientSampleEngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sampler crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := sampler.NewClient(srv.URL, 5)
	_, err := client.Sample(context.Background(), testRequest())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestClientSampleRejectsEmptyDraws(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sampler.Result{})
	}))
	defer srv.Close()

	client := sampler.NewClient(srv.URL, 5)
	_, err := client.Sample(context.Background(), testRequest())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error for empty posterior, got %v", err)
	}
}

func TestClientSampleUnreachable(t *testing.T) {
	client := sampler.NewClient("http://127.0.0.1:1", 1)
	_, err := client.Sample(context.Background(), testRequest())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestNewDesignColumnOrder(t *testing.T) {
	result := &features.Result{
		Matrix: features.Matrix{
			YLog: []float64{1, 2},
			Columns: map[string][]float64{
				"X_act_tv":  {0.1, 0.2},
				"X_act_ooh": {0.3, 0.4},
				"X_ctrl_p":  {5, 6},
				"trend":     {-1, 1},
			},
		},
		Metadata: features.Metadata{
			NPeriods:        2,
			DriverFeatures:  []string{"X_act_tv", "X_act_ooh"},
			ControlFeatures: []string{"X_ctrl_p"},
			TrendFeatures:   []string{"trend"},
		},
	}

	design := sampler.NewDesign(result)
	if len(design.Channels) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(design.Channels))
	}
	if design.Channels[1][0] != 0.2 || design.Channels[1][1] != 0.4 {
		t.Fatalf("channel row = %v", design.Channels[1])
	}
	if design.Controls[0][0] != 5 || design.Controls[0][1] != -1 {
		t.Fatalf("control row = %v", design.Controls[0])
	}
	if design.ControlNames[1] != "trend" {
		t.Fatalf("control names = %v", design.ControlNames)
	}
}
