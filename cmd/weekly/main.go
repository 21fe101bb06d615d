package main

import (
	"os"

	"horse.fit/weekly/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
