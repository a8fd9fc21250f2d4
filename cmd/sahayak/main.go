package main

import (
	"github.com/joho/godotenv"

	"sahayak/internal/cli"
)

func main() {
	_ = godotenv.Load()
	cli.Execute()
}
