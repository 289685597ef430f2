package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNilProxy is returned when a nil URL is reported to the pool.
	ErrNilProxy = errors.New("proxy: url cannot be nil")
	// ErrUnknownProxy is returned when a reported URL was never added.
	ErrUnknownProxy = errors.New("proxy: not found in pool")
)

const (
	defaultMaxFailures = 3
	defaultCooldown    = 5 * time.Minute
)

// Config defines settings for the proxy Pool.
type Config struct {
	// MaxFailures before a proxy is benched.
	MaxFailures int
	// Cooldown is how long a benched proxy stays out of rotation.
	Cooldown time.Duration
}

type entry struct {
	url       *url.URL
	failures  int
	successes int
	benchedTo time.Time
}

func (e *entry) benched(now time.Time) bool {
	return now.Before(e.benchedTo)
}

// Pool rotates through proxies round-robin, skipping benched ones.
// It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	entries     []*entry
	byURL       map[string]*entry
	next        int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// NewPool creates an empty pool. Zero config values fall back to defaults.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	return &Pool{
		byURL:       make(map[string]*entry),
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// LoadFile adds proxies from a file with one URL per line.
// Blank lines and lines starting with '#' are skipped.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: open %s: %w", path, err)
	}
	defer f.Close()

	var raws []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raws = append(raws, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("proxy: read %s: %w", path, err)
	}

	return p.Add(raws...)
}

// Add parses raw proxy URLs and appends them to the rotation. A missing
// scheme defaults to http. Duplicates are ignored.
func (p *Pool) Add(raws ...string) error {
	parsed := make([]*url.URL, 0, len(raws))
	for _, raw := range raws {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("proxy: parse %q: %w", raw, err)
		}
		parsed = append(parsed, u)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range parsed {
		key := u.String()
		if _, ok := p.byURL[key]; ok {
			continue
		}
		e := &entry{url: u}
		p.entries = append(p.entries, e)
		p.byURL[key] = e
	}
	return nil
}

// Len reports the number of proxies in the pool, benched or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next proxy that is not benched, or nil when the pool is
// empty or every proxy is cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range p.entries {
		e := p.entries[p.next]
		p.next = (p.next + 1) % len(p.entries)

		if e.benched(now) {
			continue
		}
		if !e.benchedTo.IsZero() {
			// back from the bench with a clean slate
			e.benchedTo = time.Time{}
			e.failures = 0
		}
		return e.url
	}
	return nil
}

// MarkSuccess records a successful request through u and forgives one failure.
func (p *Pool) MarkSuccess(u *url.URL) error {
	return p.update(u, func(e *entry) {
		e.successes++
		if e.failures > 0 {
			e.failures--
		}
	})
}

// MarkFailure records a failed request through u. Once failures reach the
// configured maximum the proxy is benched for the cooldown period.
func (p *Pool) MarkFailure(u *url.URL) error {
	return p.update(u, func(e *entry) {
		e.failures++
		if e.failures >= p.maxFailures {
			e.benchedTo = p.now().Add(p.cooldown)
		}
	})
}

func (p *Pool) update(u *url.URL, fn func(*entry)) error {
	if u == nil {
		return ErrNilProxy
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.byURL[u.String()]
	if !ok {
		return ErrUnknownProxy
	}
	fn(e)
	return nil
}
