// Command ssc is the SunScript project compiler.
//
// Usage:
//
//	ssc -compile:<Debug|Release> -in <project.ssproj>
//
// It writes <name>.ssasm next to the manifest, where name is the manifest's
// name entry, or the manifest file stem when that entry is empty. Exit
// codes: 0 on success, 1 on usage error, 2 on compile error.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/sunscript-lang/sunscript/bytecode"
	"github.com/sunscript-lang/sunscript/compiler"
	"github.com/sunscript-lang/sunscript/project"
)

const (
	exitOK      = 0
	exitUsage   = 1
	exitCompile = 2
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ssc -compile:<Debug|Release> -in <project.ssproj>")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if os.Getenv("SSC_VERBOSE") == "" {
		logger = zerolog.Nop()
	}

	buildKind := compiler.BuildKind(-1)
	inPath := ""
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "-compile:"):
			switch strings.TrimPrefix(arg, "-compile:") {
			case "Debug":
				buildKind = compiler.Debug
			case "Release":
				buildKind = compiler.Release
			default:
				usage()
				return exitUsage
			}
		case arg == "-in":
			if i+1 >= len(args) {
				usage()
				return exitUsage
			}
			i++
			inPath = args[i]
		default:
			usage()
			return exitUsage
		}
	}
	if buildKind < 0 || inPath == "" {
		usage()
		return exitUsage
	}

	manifest, err := project.LoadManifest(inPath)
	if err != nil {
		color.Red("%v", err)
		return exitCompile
	}
	logger.Info().Str("project", manifest.Name).Str("entry", manifest.Entry).Msg("compiling")

	cache, err := project.OpenCache(os.Getenv("SSC_CACHE_DIR"))
	if err != nil {
		// The cache is an optimization; compilation proceeds without it.
		logger.Warn().Err(err).Msg("build cache unavailable")
		cache = nil
	}

	builder := &project.Builder{BuildKind: buildKind, Cache: cache}
	chunk, err := builder.Build(manifest)
	if err != nil {
		color.Red("%v", err)
		return exitCompile
	}

	out := manifest.ArtifactPath()
	if err := bytecode.Save(out, chunk); err != nil {
		color.Red("%v", err)
		return exitCompile
	}
	logger.Info().Str("artifact", out).Msg("compiled")
	fmt.Println(out)
	return exitOK
}
