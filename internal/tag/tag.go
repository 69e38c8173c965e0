package tag

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Belphemur/tagcache/internal/apperrors"
)

// Kind identifies which of the three tag shapes a Tag carries.
type Kind int

const (
	// KindType is a bare type with no instance. It encodes as the pluralised
	// type name and stands for the whole collection.
	KindType Kind = iota + 1
	// KindLiteral is a bare string tag. It only matches by exact equality.
	KindLiteral
	// KindInstance is a value with an identity. It encodes as type[id] and is
	// the only kind that supports type-prefix matching.
	KindInstance
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindLiteral:
		return "literal"
	case KindInstance:
		return "instance"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Identifiable is implemented by values that can be tagged as instances.
type Identifiable interface {
	CacheID() string
}

// Tag is a resolved related object.
//
// Type always holds the singular snake_case type name for KindType and
// KindInstance tags. Value holds the literal text or the instance identity.
type Tag struct {
	Kind  Kind
	Type  string
	Value string
}

// Literal returns a literal tag for s.
func Literal(s string) Tag {
	return Tag{Kind: KindLiteral, Value: Underscore(s)}
}

// TypeNamed returns a type tag for the given type name. The name may be in
// CamelCase or already snake_case.
func TypeNamed(name string) Tag {
	return Tag{Kind: KindType, Type: Underscore(name)}
}

// TypeOf returns the type tag for T.
func TypeOf[T any]() Tag {
	return TypeNamed(typeName(reflect.TypeFor[T]()))
}

// Instance returns an instance tag for the given type name and identity.
func Instance(typeName string, id any) Tag {
	return Tag{Kind: KindInstance, Type: Underscore(typeName), Value: fmt.Sprint(id)}
}

// Parse reads a raw tag string as typed on a command line: "type[id]" is an
// instance tag and anything else a literal.
func Parse(raw string) Tag {
	if open := strings.IndexByte(raw, '['); open > 0 && strings.HasSuffix(raw, "]") {
		return Tag{Kind: KindInstance, Type: Underscore(raw[:open]), Value: raw[open+1 : len(raw)-1]}
	}
	return Literal(raw)
}

// Plural returns the collection form of the tag's type name.
func (t Tag) Plural() string {
	return Pluralize(t.Type)
}

// String returns the canonical tag string embedded in cache keys.
func (t Tag) String() string {
	switch t.Kind {
	case KindType:
		return t.Plural()
	case KindInstance:
		return t.Type + "[" + t.Value + "]"
	default:
		return t.Value
	}
}

// Of resolves a single related object into a Tag.
func Of(v any) (Tag, error) {
	switch o := v.(type) {
	case Tag:
		return o, nil
	case *Tag:
		if o != nil {
			return *o, nil
		}
	case string:
		return Literal(o), nil
	case reflect.Type:
		if o != nil {
			return TypeNamed(typeName(o)), nil
		}
	case Identifiable:
		if !isNil(o) {
			return Instance(typeName(reflect.TypeOf(o)), o.CacheID()), nil
		}
	default:
		if id, ok := idMethod(v); ok {
			return Instance(typeName(reflect.TypeOf(v)), id), nil
		}
		// Values whose identity methods have pointer receivers.
		if p, ok := pointerTo(v); ok {
			if o, ok := p.(Identifiable); ok {
				return Instance(typeName(reflect.TypeOf(v)), o.CacheID()), nil
			}
			if id, ok := idMethod(p); ok {
				return Instance(typeName(reflect.TypeOf(v)), id), nil
			}
		}
	}
	return Tag{}, apperrors.NewInvalidTagError(v)
}

// pointerTo returns a pointer to a copy of v when v is not a pointer.
func pointerTo(v any) (any, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() == reflect.Pointer {
		return nil, false
	}
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)
	return p.Interface(), true
}

// Resolve flattens nested slices of related objects into one ordered list
// and resolves each of them. The first invalid object aborts resolution.
func Resolve(objs ...any) ([]Tag, error) {
	tags := make([]Tag, 0, len(objs))
	var walk func(v any) error
	walk = func(v any) error {
		if v == nil {
			return apperrors.NewInvalidTagError(v)
		}
		if _, isTag := v.(Tag); !isTag {
			rv := reflect.ValueOf(v)
			if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
				for i := 0; i < rv.Len(); i++ {
					if err := walk(rv.Index(i).Interface()); err != nil {
						return err
					}
				}
				return nil
			}
		}
		t, err := Of(v)
		if err != nil {
			return err
		}
		tags = append(tags, t)
		return nil
	}
	for _, o := range objs {
		if err := walk(o); err != nil {
			return nil, err
		}
	}
	return tags, nil
}

// Encode resolves the related objects and returns their tag strings.
func Encode(objs ...any) ([]string, error) {
	tags, err := Resolve(objs...)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out, nil
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	// Generic instantiations carry their type arguments in brackets, which
	// would collide with the instance tag syntax.
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}

// idMethod looks for an exported ID() method returning a single value.
func idMethod(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || isNil(v) {
		return "", false
	}
	m := rv.MethodByName("ID")
	if !m.IsValid() || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 {
		return "", false
	}
	return fmt.Sprint(m.Call(nil)[0].Interface()), true
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
