package project

import (
	"os"

	"github.com/sunscript-lang/sunscript/bytecode"
	"github.com/sunscript-lang/sunscript/compiler"
	"github.com/sunscript-lang/sunscript/parser"
)

// Builder compiles project entry sources, consulting the disk cache when
// one is attached.
type Builder struct {
	BuildKind compiler.BuildKind
	Cache     *Cache
}

// Build compiles the manifest's entry source into a chunk.
func (b *Builder) Build(m *Manifest) (*bytecode.Chunk, error) {
	entry := m.EntryPath()
	raw, err := os.ReadFile(entry)
	if err != nil {
		return nil, err
	}
	source := string(raw)

	digest := Digest(source, uint8(b.BuildKind))
	if b.Cache != nil {
		if chunk, ok := b.Cache.Get(digest); ok {
			return chunk, nil
		}
	}

	prog, err := parser.Parse(source, parser.WithFile(entry))
	if err != nil {
		return nil, err
	}
	chunk, err := compiler.Compile(prog,
		compiler.WithBuildKind(b.BuildKind),
		compiler.WithSourceFile(entry),
	)
	if err != nil {
		return nil, err
	}
	if b.Cache != nil {
		// Cache write failures are not build failures.
		_ = b.Cache.Put(digest, entry, uint8(b.BuildKind), chunk)
	}
	return chunk, nil
}
