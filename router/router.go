package router

import (
	"fmt"

	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/kv"
)

// SiteEntry groups the routes served for a set of hosts.
type SiteEntry struct {
	Hosts  []string
	Routes []*RouteEntry
	// ErrorPages are used when the matched route has no page for the code.
	ErrorPages map[status.Code]string
}

// ErrorPage returns the document for the code, looking at the route first.
func (s *SiteEntry) ErrorPage(route *RouteEntry, code status.Code) (string, bool) {
	if route != nil {
		if page, found := route.ErrorPages[code]; found {
			return page, true
		}
	}

	if s == nil {
		return "", false
	}

	page, found := s.ErrorPages[code]
	return page, found
}

// MapRouter picks the site by the Host header and the route by the path.
type MapRouter struct {
	Sites []*SiteEntry
	// Default serves requests whose host matches none of the sites.
	Default *SiteEntry

	hosts    map[string]*SiteEntry
	compiled bool
}

func New(sites ...*SiteEntry) *MapRouter {
	return &MapRouter{Sites: sites}
}

// Compile prepares the router for serving. It must be called exactly once, before the
// first request.
func (m *MapRouter) Compile() error {
	m.hosts = make(map[string]*SiteEntry)

	for _, site := range m.Sites {
		for i, host := range site.Hosts {
			host = NormalizeHost(host)
			site.Hosts[i] = host
			if TrimPort(host) == "0.0.0.0" {
				m.Default = site
				continue
			}

			if _, dup := m.hosts[host]; dup {
				return fmt.Errorf("router: duplicate host %q", host)
			}

			m.hosts[host] = site
		}
	}

	if m.Default != nil && !m.known(m.Default) {
		m.Sites = append(m.Sites, m.Default)
	}

	for _, site := range m.Sites {
		for _, route := range site.Routes {
			if err := route.compile(); err != nil {
				return fmt.Errorf("router: route %q: %w", route.Pattern, err)
			}
		}
	}

	m.compiled = true
	return nil
}

func (m *MapRouter) known(site *SiteEntry) bool {
	for _, s := range m.Sites {
		if s == site {
			return true
		}
	}

	return false
}

// Site returns the site serving the host, or nil if neither it nor the default one exists.
func (m *MapRouter) Site(host string) *SiteEntry {
	if site, found := m.hosts[NormalizeHost(host)]; found {
		return site
	}

	return m.Default
}

// Match picks the site and its first route matching the path. Named groups of the route's
// pattern are added into vars. Route is nil when nothing matched.
func (m *MapRouter) Match(host, path string, vars *kv.Storage) (*SiteEntry, *RouteEntry) {
	if !m.compiled {
		panic("router: Match called before Compile")
	}

	site := m.Site(host)
	if site == nil {
		return nil, nil
	}

	for _, route := range site.Routes {
		if route.match(path, vars) {
			return site, route
		}
	}

	return site, nil
}
