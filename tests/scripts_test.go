package tests

import (
	"testing"

	"github.com/sunscript-lang/sunscript/scripttest"
)

func TestGoldenScripts(t *testing.T) {
	scripttest.RunDir(t, "scripts")
}
