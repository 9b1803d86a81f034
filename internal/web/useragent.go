package web

import (
	"math/rand/v2"
	"sync/atomic"
)

var userAgents = []string{
	// Desktop Chrome (Windows, macOS, Linux)
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",

	// Desktop Safari
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",

	// Desktop Firefox
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:130.0) Gecko/20100101 Firefox/130.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:129.0) Gecko/20100101 Firefox/129.0",

	// Desktop Edge
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36 Edg/129.0.0.0",

	// Mobile
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_6_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Mobile Safari/537.36",
}

// UserAgents hands out user-agent strings, mostly round-robin with an
// occasional random pick.
type UserAgents struct {
	list    []string
	counter atomic.Uint64
	// randomRate is the share of picks made at random.
	randomRate float64
}

// DefaultUserAgents is shared by fetchers and searchers.
var DefaultUserAgents = NewUserAgents(userAgents, 0.2)

func NewUserAgents(list []string, randomRate float64) *UserAgents {
	return &UserAgents{list: list, randomRate: randomRate}
}

// Next returns the next user-agent string.
func (u *UserAgents) Next() string {
	if rand.Float64() < u.randomRate {
		return u.list[rand.IntN(len(u.list))]
	}
	idx := u.counter.Add(1)
	return u.list[int(idx%uint64(len(u.list)))]
}
