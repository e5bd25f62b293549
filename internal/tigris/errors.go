package tigris

import "fmt"

// LoginError indicates the portal rejected the credentials or the session
// is no longer accepted (wrong password, expired cookies, failed SSO hop).
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tigris login failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("tigris login failed: %s", e.Message)
}

func (e *LoginError) Unwrap() error { return e.Err }

// CallError indicates a request was rejected for reasons we can name:
// missing session cookie, missing form data, or the portal returning an
// empty result set where it never legitimately does.
type CallError struct {
	Message string
	Err     error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tigris call failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("tigris call failed: %s", e.Message)
}

func (e *CallError) Unwrap() error { return e.Err }

// UnexpectedError indicates the portal answered in a shape this client does
// not know how to handle (unknown status code, malformed body).
type UnexpectedError struct {
	Message string
	Err     error
}

func (e *UnexpectedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tigris unexpected response: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("tigris unexpected response: %s", e.Message)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }
