package key

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/Belphemur/tagcache/internal/apperrors"
)

const (
	// Delimiter separates the segments of a canonical key.
	Delimiter = "|"

	// FlagCompressed marks keys whose payload is stored compressed.
	FlagCompressed = "compressed"
)

var (
	// The escape for the delimiter contains an ampersand, so "&" must be
	// escaped first and "&#124;" must be recognised before "&amp;" when
	// decoding. strings.Replacer tries pairs in argument order at each
	// position, which gives exactly that.
	escaper   = strings.NewReplacer("&", "&amp;", "|", "&#124;")
	unescaper = strings.NewReplacer("&#124;", "|", "&amp;", "&")
)

// Key is the structured form of a cache key.
//
// Flags ride alongside the key in its canonical string but never take part
// in element matching.
type Key struct {
	Name        string
	Fingerprint string
	Elements    []string
	Flags       map[string]string
}

// New builds a key with no flags.
func New(name, fingerprint string, elements ...string) Key {
	return Key{
		Name:        name,
		Fingerprint: fingerprint,
		Elements:    slices.Clone(elements),
	}
}

// Parse decodes a canonical key string produced by String.
func Parse(s string) (Key, error) {
	segments := strings.Split(s, Delimiter)
	if len(segments) < 3 {
		return Key{}, &apperrors.ErrMalformedKey{
			Key:    s,
			Reason: fmt.Sprintf("expected at least 3 segments, got %d", len(segments)),
		}
	}
	for i, seg := range segments {
		segments[i] = unescaper.Replace(seg)
	}

	last := len(segments) - 1
	flags, err := decodeFlags(segments[last])
	if err != nil {
		return Key{}, &apperrors.ErrMalformedKey{Key: s, Reason: err.Error()}
	}

	k := Key{
		Name:        segments[0],
		Fingerprint: segments[1],
		Flags:       flags,
	}
	if last > 2 {
		k.Elements = slices.Clone(segments[2:last])
	}
	return k, nil
}

// String returns the canonical form: name|fingerprint|elements...|flags.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(escaper.Replace(k.Name))
	b.WriteString(Delimiter)
	b.WriteString(escaper.Replace(k.Fingerprint))
	for _, e := range k.Elements {
		b.WriteString(Delimiter)
		b.WriteString(escaper.Replace(e))
	}
	b.WriteString(Delimiter)
	b.WriteString(escaper.Replace(encodeFlags(k.Flags)))
	return b.String()
}

// AddFlag sets a flag on the key.
func (k *Key) AddFlag(name, value string) {
	if k.Flags == nil {
		k.Flags = make(map[string]string, 1)
	}
	k.Flags[name] = value
}

// RemoveFlag deletes a flag from the key.
func (k *Key) RemoveFlag(name string) {
	delete(k.Flags, name)
}

// HasFlag reports whether the flag is set.
func (k Key) HasFlag(name string) bool {
	_, ok := k.Flags[name]
	return ok
}

// Compressed reports whether the key carries the compression flag.
func (k Key) Compressed() bool {
	return k.Flags[FlagCompressed] == "true"
}

// WithCompressed returns a copy of the key with the compression flag set or removed.
func (k Key) WithCompressed(compressed bool) Key {
	c := k.Clone()
	if compressed {
		c.AddFlag(FlagCompressed, "true")
	} else {
		c.RemoveFlag(FlagCompressed)
	}
	return c
}

// Clone returns a deep copy of the key.
func (k Key) Clone() Key {
	return Key{
		Name:        k.Name,
		Fingerprint: k.Fingerprint,
		Elements:    slices.Clone(k.Elements),
		Flags:       maps.Clone(k.Flags),
	}
}

// Equal compares every field. Nil and empty collections are equal.
func (k Key) Equal(o Key) bool {
	return k.Name == o.Name &&
		k.Fingerprint == o.Fingerprint &&
		slices.Equal(k.Elements, o.Elements) &&
		maps.Equal(k.Flags, o.Flags)
}

// HasElement reports whether value is the key's name or one of its elements.
func (k Key) HasElement(value string) bool {
	return k.Name == value || slices.Contains(k.Elements, value)
}

// HasElementType reports whether the key's name is typePrefix or one of its
// elements is an instance tag of that type, i.e. starts with "typePrefix[".
func (k Key) HasElementType(typePrefix string) bool {
	if k.Name == typePrefix {
		return true
	}
	prefix := typePrefix + "["
	return slices.ContainsFunc(k.Elements, func(e string) bool {
		return strings.HasPrefix(e, prefix)
	})
}

// encodeFlags serialises the flags as k1=v1&k2=v2 sorted by name. Names and
// values are query-escaped so "&", "=" and "|" inside them survive.
func encodeFlags(flags map[string]string) string {
	if len(flags) == 0 {
		return ""
	}
	values := make(url.Values, len(flags))
	for name, value := range flags {
		values.Set(name, value)
	}
	return values.Encode()
}

func decodeFlags(blob string) (map[string]string, error) {
	if blob == "" {
		return nil, nil
	}
	values, err := url.ParseQuery(blob)
	if err != nil {
		return nil, fmt.Errorf("invalid flags %q: %w", blob, err)
	}
	flags := make(map[string]string, len(values))
	for name, vs := range values {
		flags[name] = vs[len(vs)-1]
	}
	return flags, nil
}
