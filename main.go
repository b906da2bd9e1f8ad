package main

import (
	"log"

	"github.com/thiagokokada/gitmerge-go/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("gitmerge: %v", err)
	}
}
