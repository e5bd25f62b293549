package tigris

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultLoginURL is the portal's interactive login origin.
	DefaultLoginURL = "https://www.tigrison.com"
	// DefaultAPIURL is the portal's HR API origin reached after SSO.
	DefaultAPIURL = "https://api.tigris5240.com"

	defaultTimeout = 30 * time.Second

	// Session cookies the portal sets along the login choreography.
	// Presence of each one is the completion signal for its step.
	portalSessionCookie = "_tigris_sid"
	apiSessionCookie    = "JSESSIONID"

	// ISO 8601 with offset, matching what the calendar endpoint expects
	// in its searchSYmd/searchEYmd form fields.
	isoDateTimeFormat = "2006-01-02T15:04:05-07:00"
)

// Magic form fields of the "menu location" call. The calendar endpoint only
// returns the full organization's events after this exact menu has been
// reported as visited; otherwise it falls back to teammates only.
const (
	calendarMenuLocation = "직원 Self Service > 직원(SelfService) > 인사정보 > <span>휴가자조회(달력)  [ TAA-0370 ]</span>"
	calendarProgCode     = "TAA-0370"
	calendarMenuCode     = "100-0124"
)

// Client represents a Tigris HR portal session. Login mutates it in place:
// the site ID and SSO constant password are derived during the handshake and
// the cookie jar accumulates the two session cookies.
type Client struct {
	loginURL *url.URL
	apiURL   *url.URL

	email    secret
	password secret

	// WARNING - never log the site ID. It is seemingly the only thing
	// holding the tenant boundary of the entire portal.
	siteID secret

	// SSO constant password. Does not change between logins but is only
	// obtainable at runtime from the index redirect URL.
	constPW secret

	loc        *time.Location
	httpClient *http.Client
	logger     *zap.Logger
}

// SSOOverride supplies pre-derived SSO parameters so CloudSSOLogin can be
// called without running the earlier steps. Zero-value fields fall back to
// the state derived by Login.
type SSOOverride struct {
	SiteID   string
	Email    string
	Password string
}

// NewClient creates a new portal client. Empty URLs fall back to the
// production portal origins; a nil location defaults to time.Local.
func NewClient(loginURL, apiURL, email, password string, loc *time.Location, logger *zap.Logger) (*Client, error) {
	if loginURL == "" {
		loginURL = DefaultLoginURL
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	lu, err := url.Parse(loginURL)
	if err != nil {
		return nil, fmt.Errorf("invalid login URL: %w", err)
	}
	au, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		loginURL: lu,
		apiURL:   au,
		email:    mangle(email),
		password: mangle(password),
		loc:      loc,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
			// The SSO and calendar endpoints answer with redirects whose
			// target URL is the actual result signal, so never follow them.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}, nil
}

// portalSessionID returns the _tigris_sid cookie set by the initial login.
func (c *Client) portalSessionID() (string, error) {
	for _, ck := range c.httpClient.Jar.Cookies(c.loginURL) {
		if ck.Name == portalSessionCookie {
			return ck.Value, nil
		}
	}
	return "", &CallError{Message: portalSessionCookie + " cookie not found - is user logged in?"}
}

// apiSessionID returns the JSESSIONID cookie set by the SSO login.
func (c *Client) apiSessionID() (string, error) {
	for _, ck := range c.httpClient.Jar.Cookies(c.apiURL) {
		if ck.Name == apiSessionCookie {
			return ck.Value, nil
		}
	}
	return "", &CallError{Message: apiSessionCookie + " cookie not found - is user logged in?"}
}

// Login performs the full login choreography: initial login, index call to
// derive the SSO constant password, then the Cloud SSO login.
func (c *Client) Login(ctx context.Context) error {
	if err := c.initialLogin(ctx); err != nil {
		return err
	}
	if err := c.fetchSSOPassword(ctx); err != nil {
		return err
	}
	return c.CloudSSOLogin(ctx, SSOOverride{})
}

// initialLogin posts the credentials to the portal login form and derives
// the site ID from the response.
func (c *Client) initialLogin(ctx context.Context) error {
	form := url.Values{
		"loginId": {c.email.reveal()},
		"passwd":  {c.password.reveal()},
	}

	resp, body, err := c.postForm(ctx, c.loginURL.JoinPath("login"), form, nil)
	if err != nil {
		return &UnexpectedError{Message: "login request failed", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UnexpectedError{Message: fmt.Sprintf("login returned status %d", resp.StatusCode)}
	}

	// The portal answers HTTP 200 on bad credentials too; the embedded
	// code field is the real verdict.
	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			SiteID string `json:"siteId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &UnexpectedError{Message: "failed to parse login response", Err: err}
	}
	if payload.Code != 0 {
		return &LoginError{Message: payload.Message}
	}

	c.siteID = mangle(payload.Data.SiteID)

	c.logger.Info("Initial login succeeded",
		zap.String("email", c.email.reveal()))

	return nil
}

// fetchSSOPassword performs the authenticated index request. The response
// body carries a redirect URL whose loginPassword query parameter is the
// constant password used by the SSO step.
func (c *Client) fetchSSOPassword(ctx context.Context) error {
	// The jar replays the cookie automatically; the lookup is the
	// logged-in assertion.
	if _, err := c.portalSessionID(); err != nil {
		return err
	}

	resp, body, err := c.get(ctx, c.loginURL.JoinPath("hr", "index"))
	if err != nil {
		return &UnexpectedError{Message: "index request failed", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UnexpectedError{Message: fmt.Sprintf("index returned status %d", resp.StatusCode)}
	}

	var payload struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &UnexpectedError{Message: "failed to parse index response", Err: err}
	}

	redirect, err := url.Parse(payload.Data)
	if err != nil {
		return &UnexpectedError{Message: "failed to parse index redirect URL", Err: err}
	}

	constPW := redirect.Query().Get("loginPassword")
	if constPW == "" {
		return &UnexpectedError{Message: "index redirect URL has no loginPassword parameter"}
	}

	c.constPW = mangle(constPW)

	c.logger.Info("SSO constant password derived from index redirect")

	return nil
}

// CloudSSOLogin performs the Cloud SSO login. Callable standalone when the
// site ID and constant password are already known via the override.
func (c *Client) CloudSSOLogin(ctx context.Context, ov SSOOverride) error {
	// Fail fast before touching the network.
	if ov.Password == "" && c.constPW.empty() {
		return &LoginError{Message: "missing constant password - either pass it or login first"}
	}
	if ov.SiteID == "" && c.siteID.empty() {
		return &LoginError{Message: "missing site ID - either pass it or login first"}
	}
	if ov.Email == "" && c.email.empty() {
		return &LoginError{Message: "missing email - either pass it or login first"}
	}

	siteID := ov.SiteID
	if siteID == "" {
		siteID = c.siteID.reveal()
	}
	email := ov.Email
	if email == "" {
		email = c.email.reveal()
	}
	constPW := ov.Password
	if constPW == "" {
		constPW = c.constPW.reveal()
	}

	u := c.apiURL.JoinPath("cloudSsologinUser.do")
	u.RawQuery = url.Values{
		"siteId":        {siteID},
		"userMailId":    {email},
		"loginUserId":   {email},
		"loginPassword": {constPW},
	}.Encode()

	resp, _, err := c.get(ctx, u)
	if err != nil {
		return &UnexpectedError{Message: "SSO login request failed", Err: err}
	}

	// Success and failure are both redirects; only the target tells them
	// apart. Anything else is not something we can handle.
	if resp.StatusCode == http.StatusFound {
		if strings.Contains(resp.Header.Get("Location"), "NoMatchingData.do") {
			return &LoginError{Message: "invalid login info"}
		}
	} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UnexpectedError{Message: fmt.Sprintf("SSO login returned status %d", resp.StatusCode)}
	}

	c.logger.Info("Cloud SSO login succeeded")

	return nil
}

// checkSession verifies the API session is still accepted before a calendar
// request.
func (c *Client) checkSession(ctx context.Context) error {
	if _, err := c.apiSessionID(); err != nil {
		return err
	}

	resp, body, err := c.get(ctx, c.apiURL.JoinPath("chkLoginSession.do"))
	if err != nil {
		return &LoginError{Message: "session check request failed", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &LoginError{Message: fmt.Sprintf("session check returned status %d", resp.StatusCode)}
	}

	var payload struct {
		LoginInfo string `json:"loginInfo"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &LoginError{Message: "failed to parse session check response", Err: err}
	}
	if payload.LoginInfo != "Login!" {
		return &LoginError{Message: "invalid login info - please login again"}
	}

	return nil
}

// setMenuLocation reports the calendar menu as the current location.
// ABSOLUTELY NEEDED before a full calendar fetch - without it the calendar
// endpoint only returns the logged-in user's teammates.
func (c *Client) setMenuLocation(ctx context.Context) error {
	form := url.Values{
		"location":   {calendarMenuLocation},
		"progCd":     {calendarProgCode},
		"menuCd":     {calendarMenuCode},
		"dataRwType": {"R"},
	}

	resp, _, err := c.postForm(ctx, c.apiURL.JoinPath("setLocationProgCdforLog.do"), form, nil)
	if err != nil {
		return &UnexpectedError{Message: "menu location request failed", Err: err}
	}
	if resp.StatusCode == http.StatusInternalServerError {
		return &CallError{Message: "request is missing sufficient data or is an actual server error"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UnexpectedError{Message: fmt.Sprintf("menu location returned status %d", resp.StatusCode)}
	}

	return nil
}

// CalendarQuery describes a calendar fetch.
type CalendarQuery struct {
	From time.Time
	To   time.Time

	OrgCode       string
	OrgSearchType string // defaults to "N"
	PosCode       string
	ResCode       string

	// TeammateOnly skips the session check and menu location call, which
	// limits results to the logged-in user's teammates.
	TeammateOnly bool
}

// GetCalendar fetches calendar events for the query range.
func (c *Client) GetCalendar(ctx context.Context, q CalendarQuery) ([]*Event, error) {
	if !q.TeammateOnly {
		if err := c.checkSession(ctx); err != nil {
			return nil, err
		}
		if err := c.setMenuLocation(ctx); err != nil {
			return nil, err
		}
	}

	orgSearchType := q.OrgSearchType
	if orgSearchType == "" {
		orgSearchType = "N"
	}

	form := url.Values{
		"searchSYmd":     {q.From.Format(isoDateTimeFormat)},
		"searchEYmd":     {q.To.Format(isoDateTimeFormat)},
		"cmmSearchOrgCd": {q.OrgCode},
		"orgSearchType":  {orgSearchType},
		"searchPosCd":    {q.PosCode},
		"searchResCd":    {q.ResCode},
	}

	u := c.apiURL.JoinPath("TAADclzVcatnCldrMgr.do")
	u.RawQuery = url.Values{"cmd": {"getTAADclzVcatnCldrMgr"}}.Encode()

	headers := map[string]string{
		"Referer":      c.apiURL.JoinPath("Main.do").String() + "?result=",
		"Content-Type": "application/x-www-form-urlencoded; charset=UTF-8",
	}

	resp, body, err := c.postForm(ctx, u, form, headers)
	if err != nil {
		return nil, &UnexpectedError{Message: "calendar request failed", Err: err}
	}
	if resp.StatusCode == http.StatusFound {
		return nil, &CallError{Message: "possibly invalid request header"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UnexpectedError{Message: fmt.Sprintf("calendar returned status %d", resp.StatusCode)}
	}

	var payload struct {
		Data []EventData `json:"DATA"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &UnexpectedError{Message: "failed to parse calendar response", Err: err}
	}
	if len(payload.Data) == 0 {
		return nil, &CallError{Message: "DATA is empty - potentially invalid request cookies"}
	}

	events := make([]*Event, 0, len(payload.Data))
	for _, d := range payload.Data {
		events = append(events, NewEvent(d, c.loc))
	}

	c.logger.Info("Calendar events fetched",
		zap.Time("from", q.From),
		zap.Time("to", q.To),
		zap.Bool("teammate_only", q.TeammateOnly),
		zap.Int("count", len(events)))

	return events, nil
}

// postForm performs a single form POST. Redirects are never followed.
func (c *Client) postForm(ctx context.Context, u *url.URL, form url.Values, headers map[string]string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.do(req)
}

// get performs a single GET. Redirects are never followed.
func (c *Client) get(ctx context.Context, u *url.URL) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp, body, nil
}
