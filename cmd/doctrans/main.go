package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/transtools/doctrans/pkg/log"
)

func main() {
	// a missing .env file is fine, environment variables still apply
	_ = godotenv.Load()
	log.InitLogger(log.ParseLevel(os.Getenv("LOG_LEVEL")))

	Execute()
}
