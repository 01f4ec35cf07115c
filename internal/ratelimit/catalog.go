package ratelimit

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Policy names referenced by route registration.
const (
	AuthRegister      = "AUTH_REGISTER"
	AuthLogin         = "AUTH_LOGIN"
	AuthPasswordReset = "AUTH_PASSWORD_RESET"
	APIRead           = "API_READ"
	APIWrite          = "API_WRITE"
	UploadMedia       = "UPLOAD_MEDIA"
	UploadMod         = "UPLOAD_MOD"
	Reports           = "REPORTS"
)

var defaultPolicies = []Policy{
	{Name: AuthRegister, Identifier: "auth-register", MaxRequests: 5, WindowSeconds: 3600},
	{Name: AuthLogin, Identifier: "auth-login", MaxRequests: 10, WindowSeconds: 900},
	{Name: AuthPasswordReset, Identifier: "auth-password-reset", MaxRequests: 3, WindowSeconds: 3600},
	{Name: APIRead, Identifier: "api-read", MaxRequests: 100, WindowSeconds: 60},
	{Name: APIWrite, Identifier: "api-write", MaxRequests: 30, WindowSeconds: 60},
	{Name: UploadMedia, Identifier: "upload-media", MaxRequests: 20, WindowSeconds: 3600},
	{Name: UploadMod, Identifier: "upload-mod", MaxRequests: 10, WindowSeconds: 3600},
	{Name: Reports, Identifier: "reports", MaxRequests: 10, WindowSeconds: 3600},
}

// Catalog is an immutable set of named policies.
type Catalog struct {
	policies map[string]Policy
}

// NewCatalog validates policies and builds a catalog. Names and identifiers
// must be unique: two policies sharing an identifier would share quotas.
func NewCatalog(policies ...Policy) (*Catalog, error) {
	byName := make(map[string]Policy, len(policies))
	identifiers := make(map[string]string, len(policies))

	for _, p := range policies {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: policy without a name", ErrInvalidPolicy)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byName[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate policy name %q", ErrInvalidPolicy, p.Name)
		}
		if other, dup := identifiers[p.Identifier]; dup {
			return nil, fmt.Errorf("%w: %q and %q share identifier %q", ErrInvalidPolicy, other, p.Name, p.Identifier)
		}
		byName[p.Name] = p
		identifiers[p.Identifier] = p.Name
	}

	return &Catalog{policies: byName}, nil
}

// DefaultCatalog returns the built-in policies.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultPolicies...)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the named policy.
func (c *Catalog) Get(name string) (Policy, error) {
	p, ok := c.policies[name]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	return p, nil
}

// MustGet returns the named policy and panics if it does not exist.
// Intended for route registration at startup.
func (c *Catalog) MustGet(name string) Policy {
	p, err := c.Get(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Names returns the policy names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.policies))
	for name := range c.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Policies returns every policy sorted by name.
func (c *Catalog) Policies() []Policy {
	out := make([]Policy, 0, len(c.policies))
	for _, name := range c.Names() {
		out = append(out, c.policies[name])
	}
	return out
}

// catalogFile is the YAML layout accepted by LoadCatalogFile:
//
//	policies:
//	  AUTH_LOGIN:
//	    max_requests: 5
//	    window_seconds: 900
type catalogFile struct {
	Policies map[string]struct {
		Identifier    string `yaml:"identifier"`
		MaxRequests   *int   `yaml:"max_requests"`
		WindowSeconds *int   `yaml:"window_seconds"`
	} `yaml:"policies"`
}

// LoadCatalogFile reads policy overrides from a YAML file and applies them on
// top of the built-in policies. Omitted fields keep their defaults; unknown
// names add new policies and must specify every field.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog is LoadCatalogFile for an in-memory document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	merged := make(map[string]Policy, len(defaultPolicies)+len(file.Policies))
	for _, p := range defaultPolicies {
		merged[p.Name] = p
	}

	for name, override := range file.Policies {
		p, ok := merged[name]
		if !ok {
			p = Policy{Name: name}
		}
		if override.Identifier != "" {
			p.Identifier = override.Identifier
		}
		if override.MaxRequests != nil {
			p.MaxRequests = *override.MaxRequests
		}
		if override.WindowSeconds != nil {
			p.WindowSeconds = *override.WindowSeconds
		}
		merged[name] = p
	}

	policies := make([]Policy, 0, len(merged))
	for _, p := range merged {
		policies = append(policies, p)
	}
	return NewCatalog(policies...)
}
