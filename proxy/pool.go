package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"leadsweep/config"
	"leadsweep/httputil"
)

var (
	ErrNoSessions   = errors.New("no proxy sessions configured")
	ErrSelfTestFail = errors.New("proxy self-test failed")
)

const selfTestURL = "http://httpbin.org/ip"

// Pool holds the named egress sessions of the proxy gate. Each session
// presents a different apparent origin; selection is random per attempt with
// no affinity, and rotation just means picking a different name.
type Pool struct {
	cfg     config.ProxyConfig
	clients map[string]*http.Client
	timeout time.Duration
}

func NewPool(cfg config.ProxyConfig, timeout time.Duration) *Pool {
	p := &Pool{
		cfg:     cfg,
		clients: make(map[string]*http.Client, len(cfg.Sessions)),
		timeout: timeout,
	}
	for _, name := range cfg.Sessions {
		p.clients[name] = httputil.NewProxiedClient(p.sessionURL(name), timeout)
	}
	return p
}

func (p *Pool) Size() int {
	return len(p.cfg.Sessions)
}

// Pick returns a random session name and its client.
func (p *Pool) Pick() (string, *http.Client, error) {
	if len(p.cfg.Sessions) == 0 {
		return "", nil, ErrNoSessions
	}
	name := p.cfg.Sessions[rand.Intn(len(p.cfg.Sessions))]
	return name, p.clients[name], nil
}

// Rotate returns a session different from current when more than one exists.
func (p *Pool) Rotate(current string) (string, *http.Client, error) {
	if len(p.cfg.Sessions) == 0 {
		return "", nil, ErrNoSessions
	}
	if len(p.cfg.Sessions) == 1 {
		name := p.cfg.Sessions[0]
		return name, p.clients[name], nil
	}
	for {
		name := p.cfg.Sessions[rand.Intn(len(p.cfg.Sessions))]
		if name != current {
			return name, p.clients[name], nil
		}
	}
}

// sessionURL builds the gate URL for one session. The session name rides on
// the username, which is how the gate assigns a sticky egress identity.
func (p *Pool) sessionURL(name string) string {
	user := name
	if p.cfg.User != "" {
		user = fmt.Sprintf("%s-session-%s", p.cfg.User, name)
	}
	u := &url.URL{
		Scheme: "http",
		User:   url.UserPassword(user, p.cfg.Password),
		Host:   fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port),
	}
	return u.String()
}

// SelfTest verifies one randomly chosen session can reach the outside world
// and logs the apparent origin. Runs before the pipeline unless skipped.
func (p *Pool) SelfTest(ctx context.Context) error {
	name, client, err := p.Pick()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", selfTestURL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: session %s: %v", ErrSelfTestFail, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: session %s: status %d", ErrSelfTestFail, name, resp.StatusCode)
	}

	var body struct {
		Origin string `json:"origin"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: session %s: %v", ErrSelfTestFail, name, err)
	}

	log.Printf("Proxy self-test ok: session %s, origin %s", name, body.Origin)
	return nil
}
