// Package fingerprint identifies the version of the logic behind a cached
// computation. Two computes with the same fingerprint are considered
// interchangeable by the cache; any structural change to the logic must
// produce a different fingerprint.
package fingerprint

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"os"
	"reflect"
	"runtime"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Source supplies the logic fingerprint for a compute function.
type Source interface {
	Fingerprint(fn any) string
}

// None disables logic-change invalidation: every compute gets the empty fingerprint.
type None struct{}

func (None) Fingerprint(any) string { return "" }

// Static returns the same caller-supplied version for every compute.
type Static string

func (s Static) Fingerprint(any) string { return string(s) }

// defaultMemoSize bounds the number of remembered compute functions.
const defaultMemoSize = 4096

// SourceHash fingerprints a compute by hashing its Go source. The smallest
// function literal or declaration enclosing the compute's entry line is
// tokenised before hashing, so whitespace and comments do not change the
// result while any change to the code does.
//
// When the source file is not readable (stripped deployments), the symbol
// name is hashed instead.
//
// The zero value is ready to use and logs nothing.
type SourceHash struct {
	once   sync.Once
	memo   *lru.Cache[uintptr, string]
	logger zerolog.Logger
}

// NewSourceHash creates a SourceHash that logs fallbacks to logger.
func NewSourceHash(logger zerolog.Logger) *SourceHash {
	return &SourceHash{logger: logger}
}

func (s *SourceHash) cache() *lru.Cache[uintptr, string] {
	s.once.Do(func() {
		s.memo, _ = lru.New[uintptr, string](defaultMemoSize)
	})
	return s.memo
}

// Fingerprint returns the hash for fn, or "" when fn is not a function.
func (s *SourceHash) Fingerprint(fn any) string {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return ""
	}
	pc := rv.Pointer()
	memo := s.cache()
	if fp, ok := memo.Get(pc); ok {
		return fp
	}

	f := runtime.FuncForPC(pc)
	if f == nil {
		return ""
	}
	file, line := f.FileLine(f.Entry())

	src, err := functionSource(file, line)
	if err != nil {
		s.logger.Debug().Err(err).Str("func", f.Name()).Msg("Compute source unavailable, fingerprinting symbol name")
		src = []byte(f.Name())
	}

	fp := strconv.FormatUint(xxhash.Sum64(src), 16)
	memo.Add(pc, fp)
	return fp
}

// functionSource returns the token stream of the innermost function that
// spans line in file. Comments and automatically inserted semicolons are
// dropped, so only the code itself contributes to the fingerprint.
func functionSource(file string, line int) ([]byte, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, file, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}

	var best ast.Node
	bestSpan := -1
	ast.Inspect(parsed, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.FuncLit, *ast.FuncDecl:
		default:
			return true
		}
		start := fset.Position(n.Pos()).Line
		end := fset.Position(n.End()).Line
		if start <= line && line <= end {
			if span := end - start; bestSpan < 0 || span < bestSpan {
				best, bestSpan = n, span
			}
		}
		return true
	})
	if best == nil {
		return nil, &notFoundError{file: file, line: line}
	}

	body := src[fset.Position(best.Pos()).Offset:fset.Position(best.End()).Offset]
	return tokens(body), nil
}

func tokens(src []byte) []byte {
	fset := token.NewFileSet()
	f := fset.AddFile("", fset.Base(), len(src))

	var s scanner.Scanner
	s.Init(f, src, nil, 0)

	var buf bytes.Buffer
	for {
		_, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.SEMICOLON && lit == "\n" {
			continue
		}
		if lit == "" {
			lit = tok.String()
		}
		buf.WriteString(lit)
		buf.WriteByte(' ')
	}
	return buf.Bytes()
}

type notFoundError struct {
	file string
	line int
}

func (e *notFoundError) Error() string {
	return "no function found at " + e.file + ":" + strconv.Itoa(e.line)
}
