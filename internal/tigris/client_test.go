package tigris

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// newPortalServer builds a fake portal serving both the login origin and the
// API origin, implementing the happy path of the whole handshake.
func newPortalServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("login method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("login form parse error: %v", err)
		}
		if got := r.PostFormValue("loginId"); got != "user@example.com" {
			t.Errorf("loginId = %q, want user@example.com", got)
		}
		if got := r.PostFormValue("passwd"); got != "hunter2" {
			t.Errorf("passwd = %q, want hunter2", got)
		}

		http.SetCookie(w, &http.Cookie{Name: "_tigris_sid", Value: "sid-123", Path: "/"})
		fmt.Fprint(w, `{"code":0,"message":"","data":{"siteId":"SITE42"}}`)
	})

	mux.HandleFunc("/hr/index", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("_tigris_sid"); err != nil {
			t.Error("index request missing _tigris_sid cookie")
		}
		io.WriteString(w, `{"data":"https://api.example.com/sso.do?loginUserId=user%40example.com&loginPassword=constpw99"}`)
	})

	mux.HandleFunc("/cloudSsologinUser.do", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("siteId"); got != "SITE42" {
			t.Errorf("siteId = %q, want SITE42", got)
		}
		if got := q.Get("loginPassword"); got != "constpw99" {
			t.Errorf("loginPassword = %q, want constpw99", got)
		}
		if got := q.Get("userMailId"); got != "user@example.com" {
			t.Errorf("userMailId = %q, want user@example.com", got)
		}

		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "jsid-456", Path: "/"})
		w.Header().Set("Location", "/Main.do?result=")
		w.WriteHeader(http.StatusFound)
	})

	mux.HandleFunc("/chkLoginSession.do", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("JSESSIONID"); err != nil {
			t.Error("session check missing JSESSIONID cookie")
		}
		fmt.Fprint(w, `{"loginInfo":"Login!"}`)
	})

	mux.HandleFunc("/setLocationProgCdforLog.do", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("menu location form parse error: %v", err)
		}
		if got := r.PostFormValue("progCd"); got != "TAA-0370" {
			t.Errorf("progCd = %q, want TAA-0370", got)
		}
		if got := r.PostFormValue("menuCd"); got != "100-0124" {
			t.Errorf("menuCd = %q, want 100-0124", got)
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/TAADclzVcatnCldrMgr.do", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("cmd"); got != "getTAADclzVcatnCldrMgr" {
			t.Errorf("cmd = %q, want getTAADclzVcatnCldrMgr", got)
		}
		if ref := r.Header.Get("Referer"); !strings.HasSuffix(ref, "/Main.do?result=") {
			t.Errorf("Referer = %q, want */Main.do?result=", ref)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("calendar form parse error: %v", err)
		}
		if got := r.PostFormValue("searchSYmd"); got == "" {
			t.Error("searchSYmd form field is empty")
		}
		if got := r.PostFormValue("orgSearchType"); got != "N" {
			t.Errorf("orgSearchType = %q, want N", got)
		}

		fmt.Fprint(w, `{"DATA":[
			{"kind":"leave","title":"Annual leave","staYmd":"2025-01-13","endYmd":"2025-01-14","staHm":"T09:00:00","endHm":"T18:00:00","leavCd":1010},
			{"kind":"holiday","title":"New Year","staYmd":"20250101","endYmd":"20250101"}
		]}`)
	})

	return httptest.NewServer(mux)
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	client, err := NewClient(serverURL, serverURL, "user@example.com", "hunter2", testLoc, logger)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestClient_Login(t *testing.T) {
	srv := newPortalServer(t)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if got := client.siteID.reveal(); got != "SITE42" {
		t.Errorf("derived site ID = %q, want SITE42", got)
	}
	if got := client.constPW.reveal(); got != "constpw99" {
		t.Errorf("derived constant password = %q, want constpw99", got)
	}
}

func TestClient_Login_BadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		// The portal answers HTTP 200 on bad credentials too.
		fmt.Fprint(w, `{"code":401,"message":"wrong password","data":null}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.Login(context.Background())

	var loginErr *LoginError
	if !errors.As(err, &loginErr) {
		t.Fatalf("Login() error = %v, want *LoginError", err)
	}
	if loginErr.Message != "wrong password" {
		t.Errorf("LoginError.Message = %q, want server message", loginErr.Message)
	}
}

func TestClient_FetchSSOPassword_NoSessionCookie(t *testing.T) {
	srv := newPortalServer(t)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	// Skipping initial login means no _tigris_sid cookie in the jar.
	err := client.fetchSSOPassword(context.Background())

	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("fetchSSOPassword() error = %v, want *CallError", err)
	}
}

func TestClient_CloudSSOLogin_NoMatchingData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/cloudSsologinUser.do", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/comm/NoMatchingData.do")
		w.WriteHeader(http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	err := client.CloudSSOLogin(context.Background(), SSOOverride{
		SiteID:   "SITE42",
		Password: "constpw99",
	})

	var loginErr *LoginError
	if !errors.As(err, &loginErr) {
		t.Fatalf("CloudSSOLogin() error = %v, want *LoginError", err)
	}
}

func TestClient_CloudSSOLogin_MissingState(t *testing.T) {
	srv := newPortalServer(t)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	// No login happened and no override given: must fail fast without a
	// network call.
	err := client.CloudSSOLogin(context.Background(), SSOOverride{})

	var loginErr *LoginError
	if !errors.As(err, &loginErr) {
		t.Fatalf("CloudSSOLogin() error = %v, want *LoginError", err)
	}
	if !strings.Contains(loginErr.Message, "constant password") {
		t.Errorf("LoginError.Message = %q, want constant password hint", loginErr.Message)
	}
}

func TestClient_GetCalendar(t *testing.T) {
	srv := newPortalServer(t)
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	ctx := context.Background()

	if err := client.Login(ctx); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	events, err := client.GetCalendar(ctx, CalendarQuery{
		From: time.Date(2025, 1, 1, 0, 0, 0, 0, testLoc),
		To:   time.Date(2025, 1, 31, 0, 0, 0, 0, testLoc),
	})
	if err != nil {
		t.Fatalf("GetCalendar() error = %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("GetCalendar() returned %d events, want 2", len(events))
	}

	leave := events[0]
	if leave.IsGlobal() {
		t.Error("personal leave reported as global")
	}
	start, err := leave.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	want := time.Date(2025, 1, 13, 9, 0, 0, 0, testLoc)
	if !start.Equal(want) {
		t.Errorf("Start() = %v, want %v", start, want)
	}
	if got := leave.Data().LeaveCode.String(); got != "1010" {
		t.Errorf("LeaveCode = %q, want 1010", got)
	}

	holiday := events[1]
	if !holiday.IsGlobal() {
		t.Error("compact-date holiday not reported as global")
	}
}

func TestClient_GetCalendar_TeammateOnly(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chkLoginSession.do", func(w http.ResponseWriter, r *http.Request) {
		t.Error("session check must be skipped in teammate-only mode")
	})
	mux.HandleFunc("/setLocationProgCdforLog.do", func(w http.ResponseWriter, r *http.Request) {
		t.Error("menu location must be skipped in teammate-only mode")
	})
	mux.HandleFunc("/TAADclzVcatnCldrMgr.do", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"DATA":[{"title":"Teammate leave","staYmd":"2025-01-13","endYmd":"2025-01-13"}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	events, err := client.GetCalendar(context.Background(), CalendarQuery{
		From:         time.Date(2025, 1, 1, 0, 0, 0, 0, testLoc),
		To:           time.Date(2025, 1, 31, 0, 0, 0, 0, testLoc),
		TeammateOnly: true,
	})
	if err != nil {
		t.Fatalf("GetCalendar() error = %v", err)
	}
	if len(events) != 1 {
		t.Errorf("GetCalendar() returned %d events, want 1", len(events))
	}
}

func TestClient_SetMenuLocation_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chkLoginSession.do", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"loginInfo":"Login!"}`)
	})
	mux.HandleFunc("/setLocationProgCdforLog.do", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	client.httpClient.Jar.SetCookies(client.apiURL, []*http.Cookie{
		{Name: "JSESSIONID", Value: "jsid-456"},
	})

	// Full fetch runs the menu location step; its 500 is a call error,
	// not an unexpected one.
	_, err := client.GetCalendar(context.Background(), CalendarQuery{
		From: time.Date(2025, 1, 1, 0, 0, 0, 0, testLoc),
		To:   time.Date(2025, 1, 31, 0, 0, 0, 0, testLoc),
	})

	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("GetCalendar() error = %v, want *CallError", err)
	}
}

func TestClient_GetCalendar_Redirected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/TAADclzVcatnCldrMgr.do", func(w http.ResponseWriter, r *http.Request) {
		// The portal answers 302 when it dislikes the request headers.
		w.Header().Set("Location", "/Main.do")
		w.WriteHeader(http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.GetCalendar(context.Background(), CalendarQuery{
		From:         time.Date(2025, 1, 1, 0, 0, 0, 0, testLoc),
		To:           time.Date(2025, 1, 31, 0, 0, 0, 0, testLoc),
		TeammateOnly: true,
	})

	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("GetCalendar() error = %v, want *CallError", err)
	}
}

func TestClient_GetCalendar_EmptyData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/TAADclzVcatnCldrMgr.do", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"DATA":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.GetCalendar(context.Background(), CalendarQuery{
		From:         time.Date(2025, 1, 1, 0, 0, 0, 0, testLoc),
		To:           time.Date(2025, 1, 31, 0, 0, 0, 0, testLoc),
		TeammateOnly: true,
	})

	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("GetCalendar() error = %v, want *CallError", err)
	}
}

func TestClient_CheckSession_NotLoggedIn(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chkLoginSession.do", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"loginInfo":"Anonymous"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	// Prime the jar with a stale JSESSIONID so the cookie assertion passes
	// and the response-shape check is what fails.
	client.httpClient.Jar.SetCookies(client.apiURL, []*http.Cookie{
		{Name: "JSESSIONID", Value: "stale"},
	})

	err := client.checkSession(context.Background())

	var loginErr *LoginError
	if !errors.As(err, &loginErr) {
		t.Fatalf("checkSession() error = %v, want *LoginError", err)
	}
}
