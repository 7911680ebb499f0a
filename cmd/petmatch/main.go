package main

import (
	"os"

	"github.com/PaulChelaru/petfinder-matching-service/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
