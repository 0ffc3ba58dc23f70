package main

import (
	"os"

	"github.com/soundprediction/lexigraph/cmd/lexigraph"
)

func main() {
	if err := lexigraph.Execute(); err != nil {
		os.Exit(1)
	}
}
