package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/gnolang/matchall/analyzer"
)

func main() {
	singlechecker.Main(analyzer.Analyzer)
}
