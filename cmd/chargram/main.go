package main

import (
	"log"
)

func main() {
	log.SetFlags(0)
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("chargram: %v", err)
	}
}
