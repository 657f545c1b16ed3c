// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-cst.
//
// go-cst is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.
package pkcs11

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/jeremyhahn/go-cst/pkg/types"
)

// URIScheme prefixes RFC 7512 token references.
const URIScheme = "pkcs11:"

// Reference identifies a token object by label, CKA_ID or both.
type Reference struct {
	Label string
	ID    []byte
}

func (r Reference) String() string {
	var parts []string
	if r.Label != "" {
		parts = append(parts, "object="+url.PathEscape(r.Label))
	}
	if len(r.ID) > 0 {
		var sb strings.Builder
		for _, b := range r.ID {
			fmt.Fprintf(&sb, "%%%02x", b)
		}
		parts = append(parts, "id="+sb.String())
	}
	return URIScheme + strings.Join(parts, ";")
}

// IsURI reports whether ref is a PKCS#11 URI.
func IsURI(ref string) bool {
	return strings.HasPrefix(strings.ToLower(ref), URIScheme)
}

// ParseReference parses a PKCS#11 URI or a bare object label.
//
// In URIs the object attribute is percent decoded. The id attribute may be
// percent encoded bytes ("%01%a0") or plain hex ("01a0"). Query attributes
// such as pin-value are ignored; the PIN comes from configuration.
func ParseReference(ref string) (Reference, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Reference{}, fmt.Errorf("%w: %w: empty reference", types.ErrInvalidArgument, ErrInvalidURI)
	}
	if !IsURI(ref) {
		return Reference{Label: ref}, nil
	}

	path := ref[len(URIScheme):]
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	var r Reference
	for _, attr := range strings.Split(path, ";") {
		if attr == "" {
			continue
		}
		name, value, ok := strings.Cut(attr, "=")
		if !ok {
			return Reference{}, fmt.Errorf("%w: %w: attribute %q", types.ErrInvalidArgument, ErrInvalidURI, attr)
		}
		switch strings.ToLower(name) {
		case "object":
			label, err := url.PathUnescape(value)
			if err != nil {
				return Reference{}, fmt.Errorf("%w: %w: %w", types.ErrInvalidArgument, ErrInvalidURI, err)
			}
			r.Label = label
		case "id":
			id, err := parseID(value)
			if err != nil {
				return Reference{}, fmt.Errorf("%w: %w: id %q", types.ErrInvalidArgument, ErrInvalidURI, value)
			}
			r.ID = id
		}
	}
	if r.Label == "" && len(r.ID) == 0 {
		return Reference{}, fmt.Errorf("%w: %w: %s names no object", types.ErrInvalidArgument, ErrInvalidURI, ref)
	}
	return r, nil
}

func parseID(value string) ([]byte, error) {
	if strings.Contains(value, "%") {
		s, err := url.PathUnescape(value)
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	}
	return hex.DecodeString(value)
}
