package main

import (
	"os"

	"microboard/internal/app"
	"microboard/internal/config"
)

func main() {
	os.Exit(app.Main(config.ServiceAuth))
}
