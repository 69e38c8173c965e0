package tag

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Belphemur/tagcache/internal/apperrors"
)

type SampleType struct {
	id int
}

func (s SampleType) ID() int { return s.id }

type Category struct {
	slug string
}

func (c *Category) CacheID() string { return c.slug }

type Ledger struct {
	num int
}

func (l *Ledger) ID() int { return l.num }

type HTTPServer struct{}

func (HTTPServer) ID() string { return "main" }

type noIdentity struct {
	Name string
}

func TestUnderscore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"SampleType", "sample_type"},
		{"HTTPServer", "http_server"},
		{"pkg::Thing", "pkg/thing"},
		{"some-tag", "some_tag"},
		{"already_snake", "already_snake"},
		{"Version2Update", "version2_update"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := Underscore(tt.in); got != tt.want {
				t.Errorf("Underscore(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPluralize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"sample_type", "sample_types"},
		{"category", "categories"},
		{"http_server", "http_servers"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Pluralize(tt.in); got != tt.want {
			t.Errorf("Pluralize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		in       any
		wantKind Kind
		want     string
	}{
		{"literal string", "SomeTag", KindLiteral, "some_tag"},
		{"type via reflect", reflect.TypeFor[SampleType](), KindType, "sample_types"},
		{"type via pointer reflect", reflect.TypeFor[*Category](), KindType, "categories"},
		{"instance with ID method", SampleType{id: 2}, KindInstance, "sample_type[2]"},
		{"instance with CacheID", &Category{slug: "books"}, KindInstance, "category[books]"},
		{"CacheID with pointer receiver on value", Category{slug: "music"}, KindInstance, "category[music]"},
		{"ID with pointer receiver on value", Ledger{num: 5}, KindInstance, "ledger[5]"},
		{"ID with pointer receiver on pointer", &Ledger{num: 6}, KindInstance, "ledger[6]"},
		{"instance with acronym name", HTTPServer{}, KindInstance, "http_server[main]"},
		{"generic type helper", TypeOf[SampleType](), KindType, "sample_types"},
		{"explicit instance", Instance("SampleType", 7), KindInstance, "sample_type[7]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Of(tt.in)
			if err != nil {
				t.Fatalf("Of(%v) returned error: %v", tt.in, err)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.String() != tt.want {
				t.Errorf("String() = %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestOf_Invalid(t *testing.T) {
	t.Parallel()
	invalid := []any{
		42,
		3.14,
		noIdentity{Name: "x"},
		(*Category)(nil),
		map[string]int{"a": 1},
		nil,
	}

	for _, v := range invalid {
		_, err := Of(v)
		if !errors.Is(err, &apperrors.ErrInvalidTag{}) {
			t.Errorf("Of(%#v) error = %v, want ErrInvalidTag", v, err)
		}
	}
}

func TestResolve_FlattensNestedSlices(t *testing.T) {
	t.Parallel()
	got, err := Encode(
		"first",
		[]any{SampleType{id: 1}, []string{"nested", "Deeper"}},
		reflect.TypeFor[Category](),
	)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	want := []string{"first", "sample_type[1]", "nested", "deeper", "categories"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Encode() = %v, want %v", got, want)
	}
}

func TestResolve_FailsOnNestedInvalid(t *testing.T) {
	t.Parallel()
	_, err := Resolve("ok", []any{"fine", 12})
	if !errors.Is(err, &apperrors.ErrInvalidTag{}) {
		t.Fatalf("expected ErrInvalidTag, got %v", err)
	}
}

func TestResolve_Empty(t *testing.T) {
	t.Parallel()
	got, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no tags, got %v", got)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw      string
		wantKind Kind
		wantType string
		want     string
	}{
		{"sample_type[2]", KindInstance, "sample_type", "sample_type[2]"},
		{"SampleType[abc]", KindInstance, "sample_type", "sample_type[abc]"},
		{"plain", KindLiteral, "", "plain"},
		{"[odd]", KindLiteral, "", "[odd]"},
		{"open[", KindLiteral, "", "open["},
	}

	for _, tt := range tests {
		got := Parse(tt.raw)
		if got.Kind != tt.wantKind || got.Type != tt.wantType || got.String() != tt.want {
			t.Errorf("Parse(%q) = %+v (%q), want kind %v type %q string %q",
				tt.raw, got, got.String(), tt.wantKind, tt.wantType, tt.want)
		}
	}
}

func TestKind_String(t *testing.T) {
	t.Parallel()
	if KindType.String() != "type" || KindLiteral.String() != "literal" || KindInstance.String() != "instance" {
		t.Error("unexpected Kind names")
	}
	if Kind(99).String() != "Kind(99)" {
		t.Errorf("unexpected name for unknown kind: %s", Kind(99))
	}
}
