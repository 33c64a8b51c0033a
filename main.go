package main

import (
	"os"

	"github.com/shouni/gemini-photo-studio/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
