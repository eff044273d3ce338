package server

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync/atomic"

	"golang.org/x/oauth2"

	"github.com/desertthunder/cratedig/internal/shared"
)

// CallbackPath is where Google redirects after the user grants access.
const CallbackPath = "/callback"

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
<title>CrateDig</title>
<style>
body { font-family: system-ui, sans-serif; background: #111; color: #aaa; display: grid; place-items: center; height: 100vh; margin: 0; }
main { background: #1c1c1c; padding: 2rem 3rem; border-radius: 8px; text-align: center; }
h1 { color: {{if .OK}}#ff0033{{else}}#888{{end}}; }
</style>
</head>
<body><main><h1>{{.Heading}}</h1><p>{{.Body}}</p></main></body>
</html>
`))

type callbackView struct {
	OK      bool
	Heading string
	Body    string
}

// OAuthResult is the outcome of one authorization attempt. Exactly one of Token and Err is set.
type OAuthResult struct {
	Token *oauth2.Token
	Err   error
}

// OAuthCallback finishes the Google authorization code flow. The first request to reach it
// decides the result; later requests are turned away.
type OAuthCallback struct {
	config *oauth2.Config
	state  string
	done   chan OAuthResult
	used   atomic.Bool
}

// NewOAuthCallback expects state to be the unguessable value sent with the authorization URL.
func NewOAuthCallback(config *oauth2.Config, state string) *OAuthCallback {
	return &OAuthCallback{
		config: config,
		state:  state,
		done:   make(chan OAuthResult, 1),
	}
}

func (c *OAuthCallback) Patterns() []string {
	return []string{http.MethodGet + " " + CallbackPath}
}

// Done delivers the single result and is then closed.
func (c *OAuthCallback) Done() <-chan OAuthResult {
	return c.done
}

func (c *OAuthCallback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !c.used.CompareAndSwap(false, true) {
		http.Error(w, "authorization already handled", http.StatusConflict)
		return
	}

	token, err := c.exchange(r)
	c.done <- OAuthResult{Token: token, Err: err}
	close(c.done)

	view := callbackView{OK: true, Heading: "YouTube Connected",
		Body: "CrateDig can now create playlists. Close this tab and head back to the terminal."}
	status := http.StatusOK
	if err != nil {
		view = callbackView{Heading: "Not Connected", Body: err.Error()}
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	callbackPage.Execute(w, view)
}

func (c *OAuthCallback) exchange(r *http.Request) (*oauth2.Token, error) {
	q := r.URL.Query()
	if q.Get("state") != c.state {
		return nil, fmt.Errorf("%w: state mismatch", shared.ErrAuthFailed)
	}

	switch reason := q.Get("error"); {
	case reason == "access_denied":
		return nil, fmt.Errorf("%w: access was denied in the browser", shared.ErrAuthFailed)
	case reason != "":
		return nil, fmt.Errorf("%w: %s %s", shared.ErrAuthFailed, reason, q.Get("error_description"))
	case q.Get("code") == "":
		return nil, fmt.Errorf("%w: callback carried no code", shared.ErrAuthFailed)
	}

	token, err := c.config.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode != "" {
			return nil, fmt.Errorf("%w: token exchange: %s", shared.ErrAuthFailed, re.ErrorCode)
		}
		return nil, fmt.Errorf("%w: token exchange: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}
