package main

import (
	"os"

	"horse.fit/catalog/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
