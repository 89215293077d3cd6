package dashboard

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoscope/ecoscope/internal/analysis"
	"github.com/ecoscope/ecoscope/internal/session"
	"github.com/ecoscope/ecoscope/internal/sos"
	"github.com/ecoscope/ecoscope/internal/weather"
)

type memoryIdentity struct {
	mu        sync.Mutex
	passwords map[string]string
	current   string
}

func (m *memoryIdentity) CreateAccount(_ context.Context, email, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.passwords[email]; ok {
		return "", errors.New("The email address is already in use by another account.")
	}
	m.passwords[email] = password
	m.current = "id-" + email
	return m.current, nil
}

func (m *memoryIdentity) VerifyCredentials(_ context.Context, email, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pw, ok := m.passwords[email]; !ok || pw != password {
		return "", errors.New("The email or password is incorrect.")
	}
	m.current = "id-" + email
	return m.current, nil
}

func (m *memoryIdentity) CurrentAccountID(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

func (m *memoryIdentity) SignOut(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = ""
	return errors.New("network unreachable")
}

type memoryProfiles struct {
	mu       sync.Mutex
	docs     map[string]session.ProfileDocument
	writeErr error
}

func (m *memoryProfiles) Write(_ context.Context, id string, doc session.ProfileDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.docs[id] = doc
	return nil
}

func (m *memoryProfiles) Read(_ context.Context, id string) (session.ProfileDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return session.ProfileDocument{}, session.ErrProfileNotFound
	}
	return doc, nil
}

type stubAnalyzer struct{ err error }

func (s stubAnalyzer) Analyze(_ context.Context, module string, _ analysis.Request) (*analysis.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &analysis.Result{Module: module, AreaType: "glacier"}, nil
}

func (s stubAnalyzer) CompareSatellite(context.Context, analysis.Request) (*analysis.Comparison, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &analysis.Comparison{ChangeDetection: "done"}, nil
}

type stubWeather struct{ err error }

func (s stubWeather) Current(context.Context, float64, float64) (*weather.Conditions, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &weather.Conditions{TemperatureC: 12, Summary: "Clear"}, nil
}

type recordingReporter struct {
	mu     sync.Mutex
	emails []string
}

func (r *recordingReporter) ReportOrphan(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, email)
	return nil
}

type fixture struct {
	router   chi.Router
	profiles *memoryProfiles
	reporter *recordingReporter
	handler  *Handler
}

func newFixture(t *testing.T, analyzer Analyzer, wx WeatherSource) *fixture {
	t.Helper()
	profiles := &memoryProfiles{docs: map[string]session.ProfileDocument{}}
	idp := &memoryIdentity{passwords: map[string]string{}}
	controller := session.NewController(session.NewManager(idp, profiles))
	reporter := &recordingReporter{}
	if analyzer == nil {
		analyzer = stubAnalyzer{}
	}
	if wx == nil {
		wx = stubWeather{}
	}
	h := NewHandler(nil, controller, analyzer, wx, reporter)
	r := chi.NewRouter()
	h.MountRoutes(r)
	h.MountStreams(r)
	return &fixture{router: r, profiles: profiles, reporter: reporter, handler: h}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

const janeSignUp = `{"firstName":" Jane ","lastName":"Doe","email":"jane@x.io","phoneNumber":"555-123-4567","preferredLanguage":"hi","password":"secret1","confirmPassword":"secret1"}`

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestSignUpPreconditions(t *testing.T) {
	f := newFixture(t, nil, nil)
	cases := map[string]struct {
		body  string
		field string
		msg   string
	}{
		"email":    {`{"firstName":"J","lastName":"D","email":"nope","phoneNumber":"5551234567","password":"secret1","confirmPassword":"secret1"}`, "email", "Please enter a valid email address"},
		"password": {`{"firstName":"J","lastName":"D","email":"j@x.io","phoneNumber":"5551234567","password":"abc","confirmPassword":"abc"}`, "password", "Password must be at least 6 characters long"},
		"confirm":  {`{"firstName":"J","lastName":"D","email":"j@x.io","phoneNumber":"5551234567","password":"secret1","confirmPassword":"secret2"}`, "confirmPassword", "Passwords do not match"},
		"phone":    {`{"firstName":"J","lastName":"D","email":"j@x.io","phoneNumber":"555-1234","password":"secret1","confirmPassword":"secret1"}`, "phoneNumber", "Please enter a valid phone number"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, "/auth/signup", tc.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			errs := decodeBody(t, rr)["errors"].(map[string]any)
			assert.Equal(t, tc.msg, errs[tc.field])
		})
	}
	assert.Empty(t, f.profiles.docs)
}

func TestSignUpSucceeds(t *testing.T) {
	f := newFixture(t, nil, nil)

	rr := f.do(t, http.MethodPost, "/auth/signup", janeSignUp)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, "authenticated", body["state"])
	profile := body["profile"].(map[string]any)
	assert.Equal(t, "Jane", profile["firstName"])
	assert.Equal(t, "Hindi", profile["preferredLanguage"])
}

func TestSignUpProfileWriteFailureReportsOrphan(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.profiles.writeErr = errors.New("store unavailable")

	rr := f.do(t, http.MethodPost, "/auth/signup", janeSignUp)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "store unavailable", decodeBody(t, rr)["detail"])
	assert.Equal(t, []string{"jane@x.io"}, f.reporter.emails)
}

func TestSignInFailureIsUnauthorized(t *testing.T) {
	f := newFixture(t, nil, nil)

	rr := f.do(t, http.MethodPost, "/auth/signin", `{"email":"jane@x.io","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "The email or password is incorrect.", decodeBody(t, rr)["detail"])

	rr = f.do(t, http.MethodGet, "/session", "")
	body := decodeBody(t, rr)
	assert.Equal(t, "failed", body["state"])
	assert.Equal(t, false, body["informational"])

	rr = f.do(t, http.MethodPost, "/auth/reset", "")
	assert.Equal(t, "unauthenticated", decodeBody(t, rr)["state"])
}

func TestSignOutAlwaysOK(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/auth/signup", janeSignUp).Code)

	rr := f.do(t, http.MethodPost, "/auth/signout", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decodeBody(t, rr)["ok"])

	body := decodeBody(t, f.do(t, http.MethodGet, "/session", ""))
	assert.Equal(t, "unauthenticated", body["state"])
	assert.Equal(t, "User signed out", body["reason"])
	assert.Equal(t, true, body["informational"])
}

func TestUpdateProfileRequiresSession(t *testing.T) {
	f := newFixture(t, nil, nil)
	update := `{"firstName":"Janet","lastName":"Doe","email":"jane@x.io","phoneNumber":"5551234567","preferredLanguage":"English"}`

	rr := f.do(t, http.MethodPut, "/profile", update)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/auth/signup", janeSignUp).Code)
	rr = f.do(t, http.MethodPut, "/profile", update)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, "Janet", body["firstName"])
	assert.Equal(t, "id-jane@x.io", body["uid"])
	assert.Equal(t, "English", body["preferredLanguage"])
}

func TestSOSFallsBackToProfilePhone(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/auth/signup", janeSignUp).Code)

	rr := f.do(t, http.MethodPost, "/sos", `{"location":{"lat":27.7,"lon":85.3}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var alert sos.Alert
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &alert))
	assert.Equal(t, "🚨 SOS! I need help. My location: https://maps.google.com/?q=27.7,85.3", alert.Message)
	require.Len(t, alert.Links, 1)
	assert.Equal(t, "555-123-4567", alert.Links[0].Phone)
}

func TestAnalysisErrors(t *testing.T) {
	signedIn := func(t *testing.T, analyzer Analyzer) *fixture {
		f := newFixture(t, analyzer, nil)
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/auth/signup", janeSignUp).Code)
		return f
	}
	body := `{"lat":27.9,"lon":86.9,"before":"2020-01-01","after":"2024-01-01"}`

	rr := signedIn(t, nil).do(t, http.MethodPost, "/analysis/glacial-lakes", body)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "glacial-lakes", decodeBody(t, rr)["module"])

	rr = signedIn(t, stubAnalyzer{err: analysis.ErrUnknownModule}).do(t, http.MethodPost, "/analysis/volcanoes", body)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = signedIn(t, stubAnalyzer{err: &analysis.StatusError{Code: 500, Detail: "Model not loaded"}}).do(t, http.MethodPost, "/satellite/compare", body)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "Model not loaded", decodeBody(t, rr)["detail"])

	rr = signedIn(t, stubAnalyzer{err: analysis.ErrInvalidRange}).do(t, http.MethodPost, "/satellite/compare", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWeatherNotConfigured(t *testing.T) {
	f := newFixture(t, nil, stubWeather{err: weather.ErrNotConfigured})
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/auth/signup", janeSignUp).Code)

	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/weather?lat=1&lon=2", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/weather?lat=abc&lon=2", "").Code)
}

func TestSessionEventsStreamsState(t *testing.T) {
	f := newFixture(t, nil, nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/session/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	readEvent := func() map[string]any {
		for lines.Scan() {
			line := lines.Text()
			if strings.HasPrefix(line, "data: ") {
				var out map[string]any
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &out))
				return out
			}
		}
		t.Fatal("stream ended")
		return nil
	}

	assert.Equal(t, "unauthenticated", readEvent()["state"])

	f.handler.controller.Reset()
	go func() {
		f.do(t, http.MethodPost, "/auth/signin", `{"email":"ghost@x.io","password":"wrong"}`)
	}()
	for {
		ev := readEvent()
		if ev["state"] == "failed" {
			assert.Equal(t, "The email or password is incorrect.", ev["reason"])
			break
		}
	}
}

func TestNormalizeLanguage(t *testing.T) {
	cases := map[string]string{
		"":         "English",
		"en":       "English",
		"en-US":    "English",
		"hi":       "Hindi",
		"hindi":    "Hindi",
		" French ": "French",
		"ja":       "Japanese",
		"Elvish":   "Elvish",
		"und":      "und",
		"bn":       "Bengali",
		"Bengali":  "Bengali",
		"bangla":   "Bengali",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeLanguage(in), in)
	}
}
