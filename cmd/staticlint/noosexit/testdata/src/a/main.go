package main

import (
	"log"
	"os"
)

func helper() {
	os.Exit(1)
}

func main() {
	defer helper()

	os.Exit(1)               // want `avoid using os.Exit in main.main`
	log.Fatal("boom")        // want `avoid using log.Fatal in main.main`
	log.Fatalf("%s", "boom") // want `avoid using log.Fatalf in main.main`

	logger := log.New(os.Stderr, "", 0)
	logger.Println("methods are fine")

	go func() {
		os.Exit(3)
	}()
}
