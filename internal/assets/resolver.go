package assets

import (
	"path"
	"strings"
)

// Resolver builds public asset URLs. The zero value serves paths relative
// to "/" without consulting a manifest. A Resolver is immutable and safe for
// concurrent use.
type Resolver struct {
	base        string
	manifest    Manifest
	useManifest bool
}

// NewResolver returns a resolver rooted at baseURL. When useManifest is set,
// PNG references are rewritten to their hashed WebP names found in m.
func NewResolver(baseURL string, m Manifest, useManifest bool) *Resolver {
	copied := make(Manifest, len(m))
	for k, v := range m {
		copied[k] = v
	}
	return &Resolver{base: normalizeBase(baseURL), manifest: copied, useManifest: useManifest}
}

// BaseURL returns the normalised base, always ending in "/".
func (r *Resolver) BaseURL() string {
	if r == nil || r.base == "" {
		return "/"
	}
	return r.base
}

// Resolve maps a quiz image reference to a URL. Empty stays empty and
// absolute http(s) references are returned unchanged.
func (r *Resolver) Resolve(ref string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http") {
		return ref
	}
	target := ref
	if r != nil && r.useManifest {
		if hashed, ok := r.lookup(ref); ok {
			dir, _ := path.Split(ref)
			target = dir + hashed
		}
	}
	return r.BaseURL() + strings.TrimPrefix(target, "/")
}

func (r *Resolver) lookup(ref string) (string, bool) {
	key := ref
	if strings.HasSuffix(strings.ToLower(key), ".png") {
		key = key[:len(key)-len(".png")] + ".webp"
	}
	if hashed, ok := r.manifest[key]; ok && hashed != "" {
		return hashed, true
	}
	if trimmed := strings.TrimPrefix(key, "/"); trimmed != key {
		hashed, ok := r.manifest[trimmed]
		return hashed, ok && hashed != ""
	}
	return "", false
}

func normalizeBase(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return "/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}
