package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() Request {
	return Request{Lat: 27.98, Lon: 86.92, Before: "2020-01-01", After: "2024-01-01"}
}

func TestAnalyzeSendsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 27.98, body["lat"])
		assert.Equal(t, "2020-01-01", body["before"])
		_, _ = w.Write([]byte(`{"area_type":"glacier","before_url":"b.png","after_url":"a.png","change_map_url":"c.png"}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, time.Second, 0).Analyze(context.Background(), ModuleGlacialLakes, validRequest())
	require.NoError(t, err)
	assert.Equal(t, ModuleGlacialLakes, res.Module)
	assert.Equal(t, "glacier", res.AreaType)
	assert.Equal(t, "c.png", res.ChangeMapURL)
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	c := NewClient("http://unused", time.Second, 0)
	ctx := context.Background()

	_, err := c.Analyze(ctx, "volcanoes", validRequest())
	require.ErrorIs(t, err, ErrUnknownModule)

	req := validRequest()
	req.Lat = 91
	_, err = c.Analyze(ctx, ModuleRoadNetworks, req)
	require.Error(t, err)

	req = validRequest()
	req.Before = "01/01/2020"
	_, err = c.Analyze(ctx, ModuleRoadNetworks, req)
	require.Error(t, err)

	req = validRequest()
	req.Before, req.After = req.After, req.Before
	_, err = c.Analyze(ctx, ModuleRoadNetworks, req)
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestAnalyzeMapsFastAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"Model not loaded"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, 0).Analyze(context.Background(), ModuleDrainageSystems, validRequest())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, "Model not loaded", statusErr.Detail)
}

func TestCompareSatelliteSendsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/satellite/compare", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "27.98", r.PostForm.Get("latitude"))
		assert.Equal(t, "86.92", r.PostForm.Get("longitude"))
		assert.Equal(t, "2020-01-01", r.PostForm.Get("start_date"))
		assert.Equal(t, "2024-01-01", r.PostForm.Get("end_date"))
		_, _ = w.Write([]byte(`{
			"timestamp":"2024-05-01T10:00:00",
			"location":{"lat":27.98,"lon":86.92},
			"date_range":{"start":"2020-01-01","end":"2024-01-01"},
			"ai_analysis":{"change_percentage": 12.5},
			"change_detection":"Satellite comparison completed"
		}`))
	}))
	defer srv.Close()

	cmp, err := NewClient(srv.URL, time.Second, 0).CompareSatellite(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, Text(`{"change_percentage":12.5}`), cmp.AIAnalysis)
	assert.Equal(t, Text("Satellite comparison completed"), cmp.ChangeDetection)
	assert.Equal(t, "2020-01-01", cmp.DateRange["start"])
}

func TestDetailValidationList(t *testing.T) {
	got := detail([]byte(`{"detail":[{"loc":["body","latitude"],"msg":"field required"},{"msg":"value is not a valid float"}]}`))
	assert.Equal(t, "field required; value is not a valid float", got)
	assert.Empty(t, detail([]byte(`<html>`)))
}

func TestTextAcceptsStrings(t *testing.T) {
	var v struct {
		A Text `json:"a"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"Model not available"}`), &v))
	assert.Equal(t, Text("Model not available"), v.A)
}
