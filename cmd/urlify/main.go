// The urlify command runs the console: a local web front end for the URL
// shortener service that keeps the signed-in session of this device.
package main

import (
	"github.com/patric-chuzhbe/urlify/internal/app"
)

func main() {
	theApp, err := app.New()
	if err != nil {
		panic(err)
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		panic(err)
	}
}
